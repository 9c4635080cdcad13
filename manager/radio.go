package manager

import (
	"time"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/scan"
	"github.com/the-lightning-land/wifid/wifi"
)

// EnableRadio switches the radio on and scans once it is up. A radio that
// gets switched off while being watched aborts everything in flight.
func (m *Manager) EnableRadio() error {
	err := m.bridge.SetRadioStateListener(m.onRadioState)
	if err != nil {
		return errors.Errorf("could not listen for radio state: %v", err)
	}

	err = m.radio.SetEnabled(true)
	if err != nil {
		return errors.Errorf("could not enable radio: %v", err)
	}

	return nil
}

func (m *Manager) onRadioState(event platform.RadioStateEvent) {
	switch {
	case event.Enabled:
		m.log.Infof("Radio enabled, scanning in %v", m.scanDelay)

		m.bridge.RemoveRadioStateListener()

		m.mtx.Lock()
		if m.scanTimer != nil {
			m.scanTimer.Stop()
		}
		m.scanTimer = time.AfterFunc(m.scanDelay, m.scheduledScan)
		m.mtx.Unlock()

	case event.Replay:
		m.log.Infof("Radio is disabled, enabling")

		err := m.radio.SetEnabled(true)
		if err != nil {
			m.log.Errorf("Could not enable radio: %v", err)
		}

	default:
		m.log.Warnf("Radio was disabled")
		m.Abort()
	}
}

func (m *Manager) scheduledScan() {
	m.mtx.Lock()
	m.scanTimer = nil
	m.mtx.Unlock()

	err := m.scanner.StartScan()
	if err != nil {
		m.log.Errorf("Could not scan: %v", err)
	}
}

// RequestScan asks the radio for a scan.
func (m *Manager) RequestScan() error {
	return m.scanner.StartScan()
}

// SetScanListener calls listener once the next scan results are in,
// replacing a listener still waiting.
func (m *Manager) SetScanListener(listener scan.Listener) error {
	return m.scanner.SetListener(listener)
}

func (m *Manager) RemoveScanListener() {
	m.scanner.RemoveListener()
}

// SetScanFilter sets the filter GetScanResults applies by default.
func (m *Manager) SetScanFilter(filter scan.Filter) {
	m.scanner.SetFilter(filter)
}

// GetScanResults returns the last scan results. With filterEmpty set they
// are deduplicated by ssid and stripped of hidden networks, narrowed by
// filter or else the filter set through SetScanFilter.
func (m *Manager) GetScanResults(filterEmpty bool, filter scan.Filter) ([]wifi.AccessPoint, error) {
	if filter == nil {
		return m.scanner.Results(filterEmpty)
	}

	return m.scanner.FilteredResults(filterEmpty, filter)
}

// ListenNetworkInfo forwards every change of the wireless link to listener,
// replacing a previous one.
func (m *Manager) ListenNetworkInfo(listener NetworkInfoListener) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	err := m.bridge.SetNetworkStateListener(m.onNetworkState)
	if err != nil {
		return errors.Errorf("could not listen for network state: %v", err)
	}

	m.networkInfo = listener

	return nil
}

// RemoveNetworkInfoListener detaches the network info listener and clears
// any network binding. The link keeps being watched while a connection
// attempt is pending.
func (m *Manager) RemoveNetworkInfoListener() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.networkInfo = nil

	if m.pending == nil {
		m.bridge.RemoveNetworkStateListener()
	}

	err := m.bridge.ClearBinding()
	if err != nil {
		m.log.Warnf("Could not clear network binding: %v", err)
	}
}

// BoundNetwork returns the network this process is bound to, if any.
func (m *Manager) BoundNetwork() *wifi.Network {
	return m.bridge.CurrentBinding()
}

// CheckBoundNetworkConnectivity reports how the bound network performs.
func (m *Manager) CheckBoundNetworkConnectivity() error {
	err := m.bridge.ReportBoundConnectivity()
	if err != nil {
		return errors.Errorf("could not report connectivity: %v", err)
	}

	return nil
}

// IsWifiActive reports whether the active network is a wireless one.
func (m *Manager) IsWifiActive() (bool, error) {
	networkType, err := m.radio.ActiveNetworkType()
	if err != nil {
		return false, errors.Errorf("could not get active network type: %v", err)
	}

	return networkType == wifi.NetworkTypeWifi, nil
}
