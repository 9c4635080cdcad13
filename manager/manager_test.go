package manager

import (
	"context"
	"testing"
	"time"

	"github.com/go-errors/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-lightning-land/wifid/bridge"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/platform/mock"
	"github.com/the-lightning-land/wifid/scan"
	"github.com/the-lightning-land/wifid/wifi"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type testOptions struct {
	binding     platform.BindingCapability
	autoConnect bool
	policy      SupersedePolicy
}

func newTestManager(t *testing.T, opts testOptions) (*Manager, *mock.Mock, *bridge.Bridge) {
	t.Helper()

	p := mock.New(&mock.Config{
		DataDir:     t.TempDir(),
		Binding:     opts.binding,
		AutoConnect: opts.autoConnect,
	})
	require.NoError(t, p.Start())

	b := bridge.New(&bridge.Config{Platform: p})
	require.NoError(t, b.Start())

	m := New(&Config{
		Platform:  p,
		Bridge:    b,
		ScanDelay: 10 * time.Millisecond,
		Supersede: opts.policy,
	})

	t.Cleanup(func() {
		m.Stop()
		require.NoError(t, b.Stop())
		require.NoError(t, p.Stop())
	})

	return m, p, b
}

// results collects what a sink receives.
type results chan Result

func newResults() results {
	return make(results, 4)
}

func (r results) sink(result Result) {
	r <- result
}

func (r results) wait(t *testing.T) Result {
	t.Helper()

	select {
	case result := <-r:
		return result
	case <-time.After(waitFor):
		t.Fatal("sink not called")
		return Result{}
	}
}

func (r results) none(t *testing.T) {
	t.Helper()

	select {
	case result := <-r:
		t.Fatalf("unexpected result %+v", result)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectResolvesOnNetworkState(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})

	r := newResults()
	id := m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, id, pending)
	assert.Equal(t, StateAwaitingNetworkEvent, m.State())

	assert.Equal(t, []string{
		mock.CallAddOrUpdate,
		mock.CallDisconnect,
		mock.CallEnable,
		mock.CallReconnect,
	}, p.Calls())

	configs, err := p.ConfiguredNetworks()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, `"A"`, configs[0].Ssid)
	assert.Equal(t, `"pw"`, configs[0].PreSharedKey)
	assert.Equal(t, wifi.StatusEnabled, configs[0].Status)

	assert.True(t, b.Active(platform.NetworkState))
	assert.True(t, b.Active(platform.AuthError))

	p.EmitNetworkState(wifi.StateConnecting, wifi.DetailAuthenticating, "A")
	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")

	result := r.wait(t)
	assert.True(t, result.Connected)
	assert.False(t, result.PasswordError)
	assert.Equal(t, StateConnected, m.State())

	_, ok = m.Pending()
	assert.False(t, ok)
}

func TestConnectIgnoresOtherNetworks(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "B")
	p.EmitNetworkState(wifi.StateDisconnected, wifi.DetailFailed, "A")
	r.none(t)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, `"A"`)
	assert.True(t, r.wait(t).Connected)
}

func TestConnectRegistrationFailure(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})
	p.FailRegistration = true

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	require.Len(t, r, 1)
	result := <-r
	assert.False(t, result.Connected)
	assert.False(t, result.PasswordError)
	assert.Equal(t, "could not register network", result.Reason)
	assert.True(t, errors.Is(result.Err, ErrRegistration))
	assert.Equal(t, StateFailed, m.State())

	assert.False(t, b.Active(platform.NetworkState))
	assert.False(t, b.Active(platform.AuthError))
	assert.NotContains(t, p.Calls(), mock.CallEnable)
}

func TestConnectRegistrationFailureFallsBackToExisting(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	m.Connect(wifi.SecurityWPA, "A", "pw", false, nil)
	m.Abort()

	p.FailRegistration = true

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "other", false, r.sink)
	assert.Len(t, r, 0)
	assert.Equal(t, StateAwaitingNetworkEvent, m.State())

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	assert.True(t, r.wait(t).Connected)
}

func TestConnectAuthError(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "wrong", false, r.sink)

	p.EmitAuthError()

	result := r.wait(t)
	assert.False(t, result.Connected)
	assert.True(t, result.PasswordError)
	assert.Equal(t, "password error", result.Reason)
	assert.True(t, errors.Is(result.Err, ErrAuthentication))

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	r.none(t)
}

func TestConnectAlreadyConnected(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})

	p.SetConnectionInfo(&wifi.ConnectionInfo{
		Ssid:  `"A"`,
		Bssid: "aa:bb",
		State: wifi.SupplicantCompleted,
	})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	require.Len(t, r, 1)
	assert.True(t, (<-r).Connected)
	assert.Empty(t, p.Calls())
	assert.False(t, b.Active(platform.NetworkState))
	assert.False(t, b.Active(platform.AuthError))
}

func TestConnectStillAuthenticatingIsNotConnected(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	p.SetConnectionInfo(&wifi.ConnectionInfo{
		Ssid:  "A",
		State: wifi.SupplicantFourWayHandshake,
	})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	assert.Len(t, r, 0)
	assert.Contains(t, p.Calls(), mock.CallEnable)
}

func TestConnectEnableRejected(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{binding: platform.BindingExplicit})
	p.RejectEnable = true

	r := newResults()
	m.Connect(wifi.SecurityNone, "A", "", true, r.sink)

	require.Len(t, r, 1)
	result := <-r
	assert.False(t, result.PasswordError)
	assert.Equal(t, "enable rejected", result.Reason)
	assert.True(t, errors.Is(result.Err, ErrEnableRejected))

	_, ok := m.Pending()
	assert.False(t, ok)
}

func TestConnectSupersedeReplace(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	first := newResults()
	second := newResults()

	m.Connect(wifi.SecurityWPA, "A", "pw", false, first.sink)
	id := m.Connect(wifi.SecurityWPA, "B", "pw", false, second.sink)

	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, id, pending)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	p.EmitAuthError()

	result := second.wait(t)
	assert.True(t, result.PasswordError)
	first.none(t)
}

func TestConnectSupersedeReject(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{policy: SupersedeReject})

	first := newResults()
	second := newResults()

	firstID := m.Connect(wifi.SecurityWPA, "A", "pw", false, first.sink)
	m.Connect(wifi.SecurityWPA, "B", "pw", false, second.sink)

	require.Len(t, second, 1)
	result := <-second
	assert.True(t, errors.Is(result.Err, ErrConnectInProgress))

	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, firstID, pending)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	assert.True(t, first.wait(t).Connected)
}

func TestAbortDropsPendingRequest(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	m.Abort()
	m.Abort()

	assert.Equal(t, StateIdle, m.State())
	assert.False(t, b.Active(platform.NetworkState))
	assert.False(t, b.Active(platform.AuthError))

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	p.EmitAuthError()
	r.none(t)
}

func TestAbortWhenIdle(t *testing.T) {
	m, _, _ := newTestManager(t, testOptions{})

	assert.NotPanics(t, m.Abort)
	assert.Equal(t, StateIdle, m.State())
}

func TestDisconnectKeepsPendingRequest(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	r := newResults()
	id := m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	require.NoError(t, m.Disconnect())

	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, id, pending)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	assert.True(t, r.wait(t).Connected)
}

func TestConnectBindDefersUntilNetworkAvailable(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{binding: platform.BindingExplicit})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", true, r.sink)
	assert.True(t, b.Active(platform.NetworkAvailability))

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")

	require.Eventually(t, func() bool {
		return m.State() == StateAwaitingBind
	}, waitFor, tick)
	r.none(t)

	p.EmitNetworkAvailable("B")
	r.none(t)

	p.EmitNetworkAvailable("A")

	assert.True(t, r.wait(t).Connected)
	require.NotNil(t, m.BoundNetwork())
	assert.Equal(t, "A", m.BoundNetwork().Ssid)
	assert.False(t, b.Active(platform.NetworkAvailability))

	require.NoError(t, m.CheckBoundNetworkConnectivity())
	assert.Contains(t, p.Calls(), mock.CallReportStatus)

	m.Abort()
	assert.Nil(t, m.BoundNetwork())
}

func TestConnectBindAvailableBeforeConnected(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{binding: platform.BindingLegacy})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", true, r.sink)

	p.EmitNetworkAvailable("A")

	require.Eventually(t, func() bool {
		return m.BoundNetwork() != nil
	}, waitFor, tick)
	r.none(t)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	assert.True(t, r.wait(t).Connected)
	assert.Equal(t, "A", p.ProcessDefaultNetwork().Ssid)
}

func TestConnectBindUnsupported(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", true, r.sink)
	assert.False(t, b.Active(platform.NetworkAvailability))

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	assert.True(t, r.wait(t).Connected)
	assert.Nil(t, m.BoundNetwork())
}

// connectAwaitingBind leaves a request for "A" connected and waiting for
// its network to become available.
func connectAwaitingBind(t *testing.T, m *Manager, p *mock.Mock) (string, results) {
	t.Helper()

	r := newResults()
	id := m.Connect(wifi.SecurityWPA, "A", "pw", true, r.sink)

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")

	require.Eventually(t, func() bool {
		return m.State() == StateAwaitingBind
	}, waitFor, tick)

	return id, r
}

func TestConnectFailedRegistrationKeepsPendingBind(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{binding: platform.BindingExplicit})

	id, first := connectAwaitingBind(t, m, p)

	p.FailRegistration = true

	second := newResults()
	m.Connect(wifi.SecurityWPA, "B", "pw", false, second.sink)

	require.Len(t, second, 1)
	assert.True(t, errors.Is((<-second).Err, ErrRegistration))

	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, id, pending)
	assert.Equal(t, StateAwaitingBind, m.State())
	assert.True(t, b.Active(platform.NetworkAvailability))

	p.EmitNetworkAvailable("A")

	assert.True(t, first.wait(t).Connected)
	assert.Equal(t, StateConnected, m.State())
}

func TestConnectRejectedEnableKeepsPendingWatch(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{binding: platform.BindingExplicit})

	id, first := connectAwaitingBind(t, m, p)

	p.RejectEnable = true

	second := newResults()
	m.Connect(wifi.SecurityWPA, "B", "pw", false, second.sink)

	require.Len(t, second, 1)
	assert.True(t, errors.Is((<-second).Err, ErrEnableRejected))

	pending, ok := m.Pending()
	require.True(t, ok)
	assert.Equal(t, id, pending)
	assert.True(t, b.Active(platform.NetworkAvailability))

	p.EmitNetworkAvailable("A")

	assert.True(t, first.wait(t).Connected)
	assert.Equal(t, "A", m.BoundNetwork().Ssid)
}

func TestConnectRejectedEnableRearmsPendingWatch(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{binding: platform.BindingExplicit})

	_, first := connectAwaitingBind(t, m, p)

	p.RejectEnable = true

	second := newResults()
	m.Connect(wifi.SecurityWPA, "B", "pw", true, second.sink)

	require.Len(t, second, 1)
	assert.True(t, errors.Is((<-second).Err, ErrEnableRejected))
	assert.True(t, b.Active(platform.NetworkAvailability))

	p.EmitNetworkAvailable("B")
	first.none(t)

	p.EmitNetworkAvailable("A")

	assert.True(t, first.wait(t).Connected)
	second.none(t)
}

func TestConnectAccessPointUsesBindingFlag(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{binding: platform.BindingExplicit})

	m.SetBindingEnabled(true)
	assert.True(t, m.BindingEnabled())

	ap := wifi.AccessPoint{Ssid: "A", Capabilities: "[WEP][ESS]"}
	m.ConnectAccessPoint(ap, "secret", nil)
	assert.True(t, b.Active(platform.NetworkAvailability))

	configs, err := p.ConfiguredNetworks()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, wifi.SecurityWEP, configs[0].Security)
}

func TestConnectWaitSimulated(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{autoConnect: true})

	p.AddAccessPoint(wifi.AccessPoint{
		Ssid:         "home",
		Bssid:        "aa:bb",
		Capabilities: "[WPA2-PSK-CCMP][ESS]",
		Level:        -50,
	}, "secret")

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	result, err := m.ConnectWait(ctx, wifi.SecurityWPA, "home", "wrong", false)
	require.NoError(t, err)
	assert.True(t, result.PasswordError)

	result, err = m.ConnectWait(ctx, wifi.SecurityWPA, "home", "secret", false)
	require.NoError(t, err)
	assert.True(t, result.Connected)

	active, err := m.IsWifiActive()
	require.NoError(t, err)
	assert.True(t, active)

	configs, err := p.ConfiguredNetworks()
	require.NoError(t, err)
	assert.Len(t, configs, 1)
}

func TestConnectWaitGivesUp(t *testing.T) {
	m, _, _ := newTestManager(t, testOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := m.ConnectWait(ctx, wifi.SecurityNone, "A", "", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestListenNetworkInfo(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})

	events := make(chan platform.NetworkStateEvent, 8)
	require.NoError(t, m.ListenNetworkInfo(func(event platform.NetworkStateEvent) {
		events <- event
	}))

	p.EmitNetworkState(wifi.StateConnecting, wifi.DetailAuthenticating, "A")

	select {
	case event := <-events:
		assert.Equal(t, wifi.StateConnecting, event.State)
		assert.Equal(t, wifi.DetailAuthenticating, event.Detail)
		assert.Equal(t, "A", event.Network.Ssid)
	case <-time.After(waitFor):
		t.Fatal("network info not forwarded")
	}

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	m.RemoveNetworkInfoListener()
	assert.True(t, b.Active(platform.NetworkState))

	p.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")
	assert.True(t, r.wait(t).Connected)
	assert.Len(t, events, 0)

	m.RemoveNetworkInfoListener()
	assert.False(t, b.Active(platform.NetworkState))
}

func TestEnableRadioScansOnceEnabled(t *testing.T) {
	m, p, b := newTestManager(t, testOptions{})

	p.AddAccessPoint(wifi.AccessPoint{Ssid: "A", Bssid: "1", Level: -60}, "")
	p.AddAccessPoint(wifi.AccessPoint{Ssid: "A", Bssid: "2", Level: -80}, "")
	p.AddAccessPoint(wifi.AccessPoint{Ssid: "", Bssid: "3", Level: -40}, "")

	scanned := make(chan []wifi.AccessPoint, 1)
	require.NoError(t, m.SetScanListener(func(s *scan.Scanner) {
		results, err := s.Results(true)
		if err == nil {
			scanned <- results
		}
	}))

	require.NoError(t, m.EnableRadio())

	select {
	case results := <-scanned:
		require.Len(t, results, 1)
		assert.Equal(t, "1", results[0].Bssid)
	case <-time.After(waitFor):
		t.Fatal("no scan after enabling the radio")
	}

	enabled, err := p.Enabled()
	require.NoError(t, err)
	assert.True(t, enabled)
	assert.False(t, b.Active(platform.RadioState))

	raw, err := m.GetScanResults(false, nil)
	require.NoError(t, err)
	assert.Len(t, raw, 3)

	filtered, err := m.GetScanResults(true, func(ap wifi.AccessPoint) bool {
		return ap.Ssid != "A"
	})
	require.NoError(t, err)
	assert.Empty(t, filtered)
}

func TestRadioDisabledAborts(t *testing.T) {
	m, _, _ := newTestManager(t, testOptions{})

	r := newResults()
	m.Connect(wifi.SecurityWPA, "A", "pw", false, r.sink)

	m.onRadioState(platform.RadioStateEvent{Enabled: false})

	_, ok := m.Pending()
	assert.False(t, ok)
	assert.Equal(t, StateIdle, m.State())
}

func TestRadioDisabledReplayEnables(t *testing.T) {
	m, p, _ := newTestManager(t, testOptions{})

	m.onRadioState(platform.RadioStateEvent{Enabled: false, Replay: true})

	enabled, err := p.Enabled()
	require.NoError(t, err)
	assert.True(t, enabled)
}
