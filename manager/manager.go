// Package manager orchestrates joining a wireless network: it registers the
// credentials, arms the event listeners, issues the connect commands and
// resolves the caller exactly once when a matching event arrives.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/google/uuid"
	"github.com/the-lightning-land/wifid/netconf"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/scan"
	"github.com/the-lightning-land/wifid/wifi"
)

// DefaultScanDelay is how long after the radio came up a scan is requested.
const DefaultScanDelay = 200 * time.Millisecond

// EventBridge is the event source and binding capability the manager drives.
type EventBridge interface {
	scan.ResultsNotifier

	SetRadioStateListener(handle func(platform.RadioStateEvent)) error
	RemoveRadioStateListener()
	SetNetworkStateListener(handle func(platform.NetworkStateEvent)) error
	RemoveNetworkStateListener()
	SetAuthErrorListener(handle func(platform.AuthErrorEvent)) error
	RemoveAuthErrorListener()
	WatchNetwork(ssid string, handle func(*wifi.Network)) error
	RemoveNetworkWatch()
	RemoveAll()

	BindingSupported() bool
	BindToNetwork(network *wifi.Network) error
	ClearBinding() error
	CurrentBinding() *wifi.Network
	ReportBoundConnectivity() error
}

// Platform is the radio plus the one connectivity query the manager needs.
type Platform interface {
	platform.Radio
	ActiveNetworkType() (wifi.NetworkType, error)
}

// NetworkInfoListener is told about every change of the wireless link.
type NetworkInfoListener func(event platform.NetworkStateEvent)

type Config struct {
	Platform       Platform
	Bridge         EventBridge
	BindingEnabled bool
	// ScanDelay defaults to DefaultScanDelay.
	ScanDelay time.Duration
	Supersede SupersedePolicy
	Logger    Logger
}

type request struct {
	id   string
	ssid string
	kind wifi.SecurityKind
	bind bool
	sink Sink
	// bindPending is set while the network watch armed for this request
	// has not fired yet.
	bindPending bool
	// linkConnected is set once the link to ssid came up while the
	// binding was still pending.
	linkConnected bool
}

type Manager struct {
	log       Logger
	radio     Platform
	bridge    EventBridge
	scanner   *scan.Scanner
	scanDelay time.Duration
	policy    SupersedePolicy

	mtx            sync.Mutex
	bindingEnabled bool
	pending        *request
	state          ConnectionState
	networkInfo    NetworkInfoListener
	scanTimer      *time.Timer
}

func New(config *Config) *Manager {
	m := &Manager{
		radio:          config.Platform,
		bridge:         config.Bridge,
		scanDelay:      config.ScanDelay,
		policy:         config.Supersede,
		bindingEnabled: config.BindingEnabled,
		state:          StateIdle,
	}

	if config.Logger != nil {
		m.log = config.Logger
	} else {
		m.log = noopLogger{}
	}

	if m.scanDelay <= 0 {
		m.scanDelay = DefaultScanDelay
	}

	m.scanner = scan.NewScanner(&scan.Config{
		Radio:    config.Platform,
		Notifier: config.Bridge,
		Logger:   m.log,
	})

	return m
}

// State returns the phase of the latest connection attempt.
func (m *Manager) State() ConnectionState {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.state
}

// Pending returns the id of the connection attempt awaiting an outcome.
func (m *Manager) Pending() (string, bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.pending == nil {
		return "", false
	}

	return m.pending.id, true
}

func (m *Manager) SetBindingEnabled(enabled bool) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.bindingEnabled = enabled
}

func (m *Manager) BindingEnabled() bool {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	return m.bindingEnabled
}

// ConnectAccessPoint joins ap, binding to it when binding is enabled.
func (m *Manager) ConnectAccessPoint(ap wifi.AccessPoint, password string, sink Sink) string {
	return m.Connect(ap.Security(), ap.Ssid, password, m.BindingEnabled(), sink)
}

// Connect starts joining ssid and returns the id of the attempt. It does not
// block: sink is called once with the outcome, either before Connect returns
// or later from the event loop. A pending attempt that gets superseded never
// reaches its sink.
func (m *Manager) Connect(kind wifi.SecurityKind, ssid string, password string, bind bool, sink Sink) string {
	req := &request{
		id:   uuid.NewString(),
		ssid: wifi.TrimQuotes(ssid),
		kind: kind,
		bind: bind,
		sink: sink,
	}

	m.log.Infof("Connecting to %v (%v, bind %v) as request %v", req.ssid, kind, bind, req.id)

	for _, o := range m.connect(req, password) {
		m.resolve(o.req, o.result)
	}

	return req.id
}

// outcome is a resolution decided under the lock and delivered after it.
type outcome struct {
	req    *request
	result Result
}

// connect runs the synchronous part of an attempt. Until req supersedes the
// pending request, the pending request keeps its state, its listeners and
// its network watch: an attempt failing early leaves it untouched.
func (m *Manager) connect(req *request, password string) []outcome {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	prev := m.pending

	if prev != nil && m.policy == SupersedeReject {
		m.log.Warnf("Rejecting request %v, request %v is still pending", req.id, prev.id)
		return []outcome{{req, failed(false, ErrConnectInProgress)}}
	}

	info, err := m.radio.ConnectionInfo()
	if err != nil {
		m.log.Warnf("Could not get connection info: %v", err)
	} else if info.ConnectedTo(req.ssid) {
		m.log.Infof("Already connected to %v", req.ssid)
		m.supersede(req)
		m.state = StateConnected
		return []outcome{{req, connected()}}
	}

	m.progress(StateRegistering)

	configured, err := m.radio.ConfiguredNetworks()
	if err != nil {
		m.log.Warnf("Could not get configured networks: %v", err)
	}

	existing := netconf.FindExistingBySSID(req.ssid, configured)

	var existingID string
	if existing != nil {
		existingID = existing.ID
	}

	config := netconf.BuildOrUpdate(existing, req.kind, req.ssid, password, configured)

	id, err := m.radio.AddOrUpdateNetwork(config)
	if err != nil {
		if existingID == "" {
			m.log.Errorf("Could not register network %v: %v", req.ssid, err)
			m.progress(StateFailed)
			return []outcome{{req, failed(false, ErrRegistration)}}
		}

		m.log.Warnf("Could not update network %v, using existing network %v: %v", req.ssid, existingID, err)
		id = existingID
	}

	// Arming a watch for req replaces the one of the pending request.
	rewatch := req.bind && m.bridge.BindingSupported()
	if rewatch {
		if err := m.watch(req); err != nil {
			m.log.Warnf("Could not watch for network %v, not binding: %v", req.ssid, err)
		}
	} else if req.bind {
		m.log.Warnf("Network binding requested but not supported")
	}

	// A pending request implies both listeners are installed already.
	if prev == nil {
		err = m.bridge.SetNetworkStateListener(m.onNetworkState)
		if err == nil {
			err = m.bridge.SetAuthErrorListener(m.onAuthError)
		}
		if err != nil {
			m.log.Errorf("Could not listen for network events: %v", err)
			m.bridge.RemoveNetworkWatch()
			m.state = StateFailed
			return []outcome{{req, failed(false, ErrSubscription)}}
		}
	}

	m.progress(StateEnabling)

	if err := m.radio.Disconnect(); err != nil {
		m.log.Warnf("Could not disconnect: %v", err)
	}

	enabled, enableErr := m.radio.EnableNetwork(id, true)

	if err := m.radio.Reconnect(); err != nil {
		m.log.Warnf("Could not reconnect: %v", err)
	}

	if enableErr != nil || !enabled {
		m.log.Errorf("Could not enable network %v: %v", id, enableErr)
		outcomes := []outcome{{req, failed(false, ErrEnableRejected)}}

		switch {
		case prev == nil:
			m.bridge.RemoveNetworkWatch()
			m.state = StateFailed
		case rewatch && prev.bindPending:
			if err := m.watch(prev); err != nil {
				m.log.Errorf("Could not watch for network %v again: %v", prev.ssid, err)
				m.takePending(prev, StateFailed)
				outcomes = append(outcomes, outcome{prev, failed(false, ErrBind)})
			}
		}

		return outcomes
	}

	if !req.bindPending {
		m.bridge.RemoveNetworkWatch()
	}

	m.supersede(req)
	m.pending = req
	m.state = StateAwaitingNetworkEvent

	return nil
}

// watch arms the network watch for req and marks its binding pending.
func (m *Manager) watch(req *request) error {
	err := m.bridge.WatchNetwork(req.ssid, func(network *wifi.Network) {
		m.onNetworkAvailable(req, network)
	})
	if err != nil {
		req.bindPending = false
		return err
	}

	req.bindPending = true

	return nil
}

// progress records the phase of an attempt that has not yet taken over
// from a pending request. The pending request's phase wins while it lasts.
func (m *Manager) progress(state ConnectionState) {
	if m.pending != nil {
		return
	}

	m.state = state
}

// supersede drops the pending request, if any, without resolving it.
func (m *Manager) supersede(by *request) {
	if m.pending == nil {
		return
	}

	m.log.Infof("Request %v superseded by %v", m.pending.id, by.id)
	m.pending = nil
}

// takePending hands out req for resolution if it still is the pending
// request, and clears it so it is resolved at most once.
func (m *Manager) takePending(req *request, state ConnectionState) bool {
	if req == nil || m.pending != req {
		return false
	}

	m.pending = nil
	m.state = state

	return true
}

func (m *Manager) resolve(req *request, result Result) {
	if result.Connected {
		m.log.Infof("Request %v connected to %v", req.id, req.ssid)
	} else {
		m.log.Warnf("Request %v failed: %v", req.id, result.Reason)
	}

	if req.sink != nil {
		req.sink(result)
	}
}

func (m *Manager) onNetworkState(event platform.NetworkStateEvent) {
	m.mtx.Lock()
	listener := m.networkInfo
	req := m.pending

	resolved := false
	if req != nil && event.State == wifi.StateConnected && targets(event.Network, req.ssid) {
		if req.bindPending {
			m.log.Debugf("Connected to %v, waiting for network binding", req.ssid)
			req.linkConnected = true
			m.state = StateAwaitingBind
		} else {
			resolved = m.takePending(req, StateConnected)
		}
	}
	m.mtx.Unlock()

	if listener != nil {
		listener(event)
	}

	if resolved {
		m.resolve(req, connected())
	}
}

// targets reports whether a network state change concerns ssid. Events
// that do not name a network are taken to concern the attempt in flight.
func targets(network *wifi.Network, ssid string) bool {
	if network == nil || network.Ssid == "" {
		return true
	}

	return wifi.SSIDEqual(network.Ssid, ssid)
}

func (m *Manager) onAuthError(event platform.AuthErrorEvent) {
	m.mtx.Lock()
	req := m.pending
	resolved := m.takePending(req, StateFailed)
	if resolved && req.bindPending {
		m.bridge.RemoveNetworkWatch()
	}
	m.mtx.Unlock()

	if resolved {
		m.log.Debugf("Authentication failed with code %v", event.Code)
		m.resolve(req, failed(true, ErrAuthentication))
	}
}

func (m *Manager) onNetworkAvailable(req *request, network *wifi.Network) {
	m.mtx.Lock()

	if m.pending != req {
		m.mtx.Unlock()
		return
	}

	req.bindPending = false

	err := m.bridge.BindToNetwork(network)
	if err != nil {
		m.log.Errorf("Could not bind to %v: %v", network, err)
		m.takePending(req, StateFailed)
		m.mtx.Unlock()

		m.resolve(req, failed(false, ErrBind))
		return
	}

	resolved := false
	if req.linkConnected {
		resolved = m.takePending(req, StateConnected)
	}
	m.mtx.Unlock()

	if resolved {
		m.resolve(req, connected())
	}
}

// ConnectWait is Connect blocking until the attempt resolves or ctx ends.
// A superseded attempt only returns once ctx ends.
func (m *Manager) ConnectWait(ctx context.Context, kind wifi.SecurityKind, ssid string, password string, bind bool) (Result, error) {
	results := make(chan Result, 1)

	m.Connect(kind, ssid, password, bind, func(result Result) {
		results <- result
	})

	select {
	case result := <-results:
		return result, nil
	case <-ctx.Done():
		return Result{}, errors.Errorf("gave up waiting for %v: %w", ssid, ctx.Err())
	}
}

// Disconnect drops the current link. A pending attempt stays pending.
func (m *Manager) Disconnect() error {
	err := m.radio.Disconnect()
	if err != nil {
		return errors.Errorf("could not disconnect: %v", err)
	}

	return nil
}

// Abort tears down every listener, forgets the pending attempt without
// resolving it and clears any network binding. It is safe to call at any
// time and repeatedly.
func (m *Manager) Abort() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.bridge.RemoveAll()

	if m.pending != nil {
		m.log.Infof("Aborted request %v", m.pending.id)
	}

	m.pending = nil
	m.state = StateIdle

	if m.scanTimer != nil {
		m.scanTimer.Stop()
		m.scanTimer = nil
	}

	err := m.bridge.ClearBinding()
	if err != nil {
		m.log.Warnf("Could not clear network binding: %v", err)
	}
}

// Stop aborts everything in flight.
func (m *Manager) Stop() {
	m.Abort()
}
