// Package mock simulates a wifi platform. Saved networks live in a bbolt
// file; access points, credentials and link transitions are scripted.
package mock

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
)

// check Mock compliance to its interface during compile time
var _ platform.Platform = (*Mock)(nil)

// Calls recorded by the mock, in the order they were made.
const (
	CallSetEnabled   = "SetEnabled"
	CallStartScan    = "StartScan"
	CallAddOrUpdate  = "AddOrUpdateNetwork"
	CallEnable       = "EnableNetwork"
	CallDisconnect   = "Disconnect"
	CallReconnect    = "Reconnect"
	CallBind         = "Bind"
	CallReportStatus = "Report"
)

type Config struct {
	DataDir   string
	Interface string
	Binding   platform.BindingCapability
	// AutoConnect plays the link transitions of a connection attempt on
	// Reconnect, against the access points added with AddAccessPoint.
	AutoConnect bool
	Logger      Logger
}

type accessPoint struct {
	ap       wifi.AccessPoint
	password string
}

type Mock struct {
	platform.Feed

	log       Logger
	dataDir   string
	ifname    string
	binding   platform.BindingCapability
	autoConn  bool
	store     *store
	simulated sync.WaitGroup

	mtx            sync.Mutex
	radioEnabled   bool
	accessPoints   map[string]*accessPoint
	info           *wifi.ConnectionInfo
	selected       string
	bound          *wifi.Network
	processDefault *wifi.Network
	calls          []string

	// FailRegistration makes AddOrUpdateNetwork fail.
	FailRegistration bool
	// RejectEnable makes EnableNetwork refuse every network.
	RejectEnable bool
}

func New(config *Config) *Mock {
	m := &Mock{
		dataDir:      config.DataDir,
		ifname:       config.Interface,
		binding:      config.Binding,
		autoConn:     config.AutoConnect,
		accessPoints: make(map[string]*accessPoint),
		info:         &wifi.ConnectionInfo{State: wifi.SupplicantDisconnected},
	}

	if m.ifname == "" {
		m.ifname = "wlan0"
	}

	if config.Logger != nil {
		m.log = config.Logger
	} else {
		m.log = noopLogger{}
	}

	return m
}

func (m *Mock) Start() error {
	s, err := openStore(m.dataDir)
	if err != nil {
		return errors.Errorf("could not open network store: %v", err)
	}

	m.store = s

	return nil
}

func (m *Mock) Stop() error {
	m.simulated.Wait()

	if m.store == nil {
		return nil
	}

	err := m.store.Close()
	if err != nil {
		return errors.Errorf("could not close network store: %v", err)
	}

	return nil
}

func (m *Mock) record(call string) {
	m.mtx.Lock()
	m.calls = append(m.calls, call)
	m.mtx.Unlock()
}

// Calls lists every mutating call made so far.
func (m *Mock) Calls() []string {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return append([]string(nil), m.calls...)
}

// AddAccessPoint makes ap visible to scans and joinable with password.
func (m *Mock) AddAccessPoint(ap wifi.AccessPoint, password string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.accessPoints[ap.Bssid+"/"+ap.Ssid] = &accessPoint{ap: ap, password: password}
}

// SetConnectionInfo overrides what ConnectionInfo reports.
func (m *Mock) SetConnectionInfo(info *wifi.ConnectionInfo) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.info = info
}

// EmitRadioState publishes a radio transition without changing the radio.
func (m *Mock) EmitRadioState(enabled bool) {
	m.Publish(platform.RadioStateEvent{Enabled: enabled})
}

func (m *Mock) EmitNetworkState(state wifi.State, detail wifi.DetailedState, ssid string) {
	m.Publish(platform.NetworkStateEvent{
		State:   state,
		Detail:  detail,
		Network: &wifi.Network{Interface: m.ifname, Ssid: ssid},
	})
}

func (m *Mock) EmitAuthError() {
	m.Publish(platform.AuthErrorEvent{Code: 1})
}

func (m *Mock) EmitNetworkAvailable(ssid string) {
	m.Publish(platform.NetworkAvailableEvent{
		Network: &wifi.Network{Interface: m.ifname, Ssid: ssid},
	})
}

func (m *Mock) SetEnabled(enabled bool) error {
	m.record(CallSetEnabled)

	m.mtx.Lock()
	changed := m.radioEnabled != enabled
	m.radioEnabled = enabled
	m.mtx.Unlock()

	if changed {
		m.log.Infof("Radio switched %v", onOff(enabled))
		m.Publish(platform.RadioStateEvent{Enabled: enabled})
	}

	return nil
}

func (m *Mock) Enabled() (bool, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.radioEnabled, nil
}

func (m *Mock) StartScan() error {
	m.record(CallStartScan)

	m.mtx.Lock()
	enabled := m.radioEnabled
	m.mtx.Unlock()

	if !enabled {
		return errors.New("radio is disabled")
	}

	m.Publish(platform.ScanResultsEvent{Success: true})

	return nil
}

func (m *Mock) ScanResults() ([]wifi.AccessPoint, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	var results []wifi.AccessPoint
	for _, ap := range m.accessPoints {
		results = append(results, ap.ap)
	}

	return results, nil
}

func (m *Mock) ConfiguredNetworks() ([]*wifi.NetworkConfig, error) {
	if m.store == nil {
		return nil, errors.New("network store is not open")
	}

	return m.store.networks()
}

func (m *Mock) AddOrUpdateNetwork(config *wifi.NetworkConfig) (string, error) {
	m.record(CallAddOrUpdate)

	if m.FailRegistration {
		return "", errors.New("registration refused")
	}

	if m.store == nil {
		return "", errors.New("network store is not open")
	}

	id, err := m.store.put(config)
	if err != nil {
		return "", errors.Errorf("could not save network: %v", err)
	}

	return id, nil
}

func (m *Mock) EnableNetwork(id string, exclusive bool) (bool, error) {
	m.record(CallEnable)

	if m.RejectEnable {
		return false, nil
	}

	if m.store == nil {
		return false, errors.New("network store is not open")
	}

	config, err := m.store.network(id)
	if err != nil {
		return false, err
	}

	if config == nil {
		return false, nil
	}

	err = m.store.setStatuses(func(other string, status wifi.ConfigStatus) wifi.ConfigStatus {
		switch {
		case other == id:
			return wifi.StatusEnabled
		case exclusive:
			return wifi.StatusDisabled
		default:
			return status
		}
	})
	if err != nil {
		return false, errors.Errorf("could not update network statuses: %v", err)
	}

	m.mtx.Lock()
	m.selected = id
	m.mtx.Unlock()

	return true, nil
}

func (m *Mock) Disconnect() error {
	m.record(CallDisconnect)

	m.mtx.Lock()
	m.info = &wifi.ConnectionInfo{State: wifi.SupplicantDisconnected}
	m.mtx.Unlock()

	return nil
}

func (m *Mock) Reconnect() error {
	m.record(CallReconnect)

	m.mtx.Lock()
	selected := m.selected
	m.mtx.Unlock()

	if !m.autoConn || selected == "" {
		return nil
	}

	config, err := m.store.network(selected)
	if err != nil || config == nil {
		return errors.Errorf("could not load selected network %v: %v", selected, err)
	}

	m.simulated.Add(1)
	go m.simulateConnection(config)

	return nil
}

// simulateConnection plays the transitions a real link goes through when
// joining config.
func (m *Mock) simulateConnection(config *wifi.NetworkConfig) {
	defer m.simulated.Done()

	ssid := wifi.TrimQuotes(config.Ssid)

	m.mtx.Lock()
	var target *accessPoint
	for _, ap := range m.accessPoints {
		if wifi.SSIDEqual(ap.ap.Ssid, ssid) {
			target = ap
			break
		}
	}
	m.mtx.Unlock()

	m.EmitNetworkState(wifi.StateConnecting, wifi.DetailConnecting, ssid)

	if target == nil {
		m.log.Warnf("Network %v is out of range", ssid)
		m.EmitNetworkState(wifi.StateDisconnected, wifi.DetailFailed, ssid)
		return
	}

	m.EmitNetworkState(wifi.StateConnecting, wifi.DetailAuthenticating, ssid)

	if target.ap.Security() != wifi.SecurityNone && target.password != credential(config) {
		m.EmitAuthError()
		m.EmitNetworkState(wifi.StateDisconnected, wifi.DetailFailed, ssid)
		return
	}

	m.mtx.Lock()
	m.info = &wifi.ConnectionInfo{
		Ssid:  config.Ssid,
		Bssid: target.ap.Bssid,
		State: wifi.SupplicantCompleted,
	}
	m.mtx.Unlock()

	m.EmitNetworkState(wifi.StateConnecting, wifi.DetailObtainingAddress, ssid)
	m.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, ssid)
	m.EmitNetworkAvailable(ssid)
}

func credential(config *wifi.NetworkConfig) string {
	switch config.Security {
	case wifi.SecurityWPA:
		return wifi.TrimQuotes(config.PreSharedKey)
	case wifi.SecurityWEP, wifi.SecurityEAP:
		return wifi.TrimQuotes(config.WepKeys[config.WepTxKeyIndex])
	default:
		return ""
	}
}

func (m *Mock) ConnectionInfo() (*wifi.ConnectionInfo, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	info := *m.info
	return &info, nil
}

func (m *Mock) ActiveNetworkType() (wifi.NetworkType, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.info.State == wifi.SupplicantCompleted {
		return wifi.NetworkTypeWifi, nil
	}

	return wifi.NetworkTypeNone, nil
}

func (m *Mock) BindingCapability() platform.BindingCapability {
	return m.binding
}

func (m *Mock) WatchNetworks() (*platform.Subscription, error) {
	if m.binding == platform.BindingNone {
		return nil, errors.New("network watches are not supported")
	}

	return m.Feed.Subscribe(platform.NetworkAvailability), nil
}

func (m *Mock) Subscribe(category platform.Category) (*platform.Subscription, error) {
	if category == platform.NetworkAvailability {
		return m.WatchNetworks()
	}

	return m.Feed.Subscribe(category), nil
}

func (m *Mock) BindProcessToNetwork(network *wifi.Network) error {
	if m.binding != platform.BindingExplicit {
		return errors.New("explicit binding is not supported")
	}

	m.record(CallBind)

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.bound = network
	return nil
}

func (m *Mock) BoundNetworkForProcess() *wifi.Network {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.bound
}

func (m *Mock) SetProcessDefaultNetwork(network *wifi.Network) error {
	if m.binding == platform.BindingNone {
		return errors.New("binding is not supported")
	}

	m.record(CallBind)

	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.processDefault = network
	return nil
}

func (m *Mock) ProcessDefaultNetwork() *wifi.Network {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.processDefault
}

func (m *Mock) ReportNetworkConnectivity(network *wifi.Network, hasConnectivity bool) error {
	m.record(CallReportStatus)
	m.log.Infof("Connectivity of %v reported as %v", network, hasConnectivity)

	return nil
}

func (m *Mock) ReportBadNetwork(network *wifi.Network) error {
	m.record(CallReportStatus)
	m.log.Infof("Network %v reported as bad", network)

	return nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}
