package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/platform/mock"
	"github.com/the-lightning-land/wifid/wifi"
)

const waitFor = time.Second

func newTestBridge(t *testing.T, binding platform.BindingCapability) (*Bridge, *mock.Mock) {
	t.Helper()

	m := mock.New(&mock.Config{DataDir: t.TempDir(), Binding: binding})
	require.NoError(t, m.Start())

	b := New(&Config{Platform: m})
	require.NoError(t, b.Start())

	t.Cleanup(func() {
		require.NoError(t, b.Stop())
		require.NoError(t, m.Stop())
	})

	return b, m
}

type recorder[T any] struct {
	mtx    sync.Mutex
	events []T
}

func (r *recorder[T]) add(event T) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder[T]) all() []T {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return append([]T(nil), r.events...)
}

func (r *recorder[T]) count() int {
	return len(r.all())
}

func TestRadioStateReplayThenTransition(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingNone)

	rec := &recorder[platform.RadioStateEvent]{}
	require.NoError(t, b.SetRadioStateListener(rec.add))

	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, platform.RadioStateEvent{Enabled: false, Replay: true}, rec.all()[0])

	require.NoError(t, m.SetEnabled(true))

	require.Eventually(t, func() bool { return rec.count() == 2 }, waitFor, time.Millisecond)
	assert.Equal(t, platform.RadioStateEvent{Enabled: true, Replay: false}, rec.all()[1])
}

// flippingPlatform switches the radio on right before a radio state
// subscription is made.
type flippingPlatform struct {
	*mock.Mock
}

func (p flippingPlatform) Subscribe(category platform.Category) (*platform.Subscription, error) {
	if category == platform.RadioState {
		if err := p.Mock.SetEnabled(true); err != nil {
			return nil, err
		}
	}

	return p.Mock.Subscribe(category)
}

func TestRadioStateReplayReadAfterSubscribing(t *testing.T) {
	m := mock.New(&mock.Config{DataDir: t.TempDir(), Binding: platform.BindingNone})
	require.NoError(t, m.Start())

	b := New(&Config{Platform: flippingPlatform{m}})
	require.NoError(t, b.Start())

	t.Cleanup(func() {
		require.NoError(t, b.Stop())
		require.NoError(t, m.Stop())
	})

	rec := &recorder[platform.RadioStateEvent]{}
	require.NoError(t, b.SetRadioStateListener(rec.add))

	require.Eventually(t, func() bool { return rec.count() >= 1 }, waitFor, time.Millisecond)
	assert.Equal(t, platform.RadioStateEvent{Enabled: true, Replay: true}, rec.all()[0])
}

func TestSetListenerReplacesPrevious(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingNone)

	first := &recorder[platform.NetworkStateEvent]{}
	second := &recorder[platform.NetworkStateEvent]{}

	require.NoError(t, b.SetNetworkStateListener(first.add))
	require.NoError(t, b.SetNetworkStateListener(second.add))

	assert.Equal(t, 1, m.Subscribers(platform.NetworkState))

	m.EmitNetworkState(wifi.StateConnected, wifi.DetailOther, "A")

	require.Eventually(t, func() bool { return second.count() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 0, first.count())
}

func TestNetworkStatePreservesOrder(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingNone)

	rec := &recorder[platform.NetworkStateEvent]{}
	require.NoError(t, b.SetNetworkStateListener(rec.add))

	details := []wifi.DetailedState{
		wifi.DetailConnecting,
		wifi.DetailAuthenticating,
		wifi.DetailObtainingAddress,
		wifi.DetailOther,
	}
	for _, detail := range details {
		m.EmitNetworkState(wifi.StateConnecting, detail, "A")
	}

	require.Eventually(t, func() bool { return rec.count() == len(details) }, waitFor, time.Millisecond)
	for i, event := range rec.all() {
		assert.Equal(t, details[i], event.Detail)
	}
}

func TestScanResultsListenerIsOneShot(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingNone)
	require.NoError(t, m.SetEnabled(true))

	rec := &recorder[platform.ScanResultsEvent]{}
	require.NoError(t, b.SetScanResultsListener(rec.add))

	require.NoError(t, m.StartScan())
	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)
	assert.False(t, b.Active(platform.ScanResults))

	require.NoError(t, m.StartScan())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatchNetworkUnsupported(t *testing.T) {
	b, _ := newTestBridge(t, platform.BindingNone)

	assert.False(t, b.BindingSupported())
	assert.ErrorIs(t, b.WatchNetwork("A", func(*wifi.Network) {}), ErrBindingUnsupported)
	assert.ErrorIs(t, b.BindToNetwork(&wifi.Network{}), ErrBindingUnsupported)
	assert.NoError(t, b.ClearBinding())
	assert.Nil(t, b.CurrentBinding())
}

func TestWatchNetworkMatchesCanonicalSsid(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingExplicit)

	rec := &recorder[*wifi.Network]{}
	require.NoError(t, b.WatchNetwork("A", rec.add))

	m.EmitNetworkAvailable("B")
	m.EmitNetworkAvailable(`"A"`)
	m.EmitNetworkAvailable("A")

	require.Eventually(t, func() bool { return rec.count() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, `"A"`, rec.all()[0].Ssid)
	assert.False(t, b.Active(platform.NetworkAvailability))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestBindingStrategies(t *testing.T) {
	network := &wifi.Network{Interface: "wlan0", Ssid: "A"}

	t.Run("explicit", func(t *testing.T) {
		b, m := newTestBridge(t, platform.BindingExplicit)

		require.NoError(t, b.BindToNetwork(network))
		assert.Equal(t, network, m.BoundNetworkForProcess())
		assert.Nil(t, m.ProcessDefaultNetwork())
		assert.Equal(t, network, b.CurrentBinding())

		require.NoError(t, b.ReportBoundConnectivity())

		require.NoError(t, b.ClearBinding())
		assert.Nil(t, b.CurrentBinding())
	})

	t.Run("legacy", func(t *testing.T) {
		b, m := newTestBridge(t, platform.BindingLegacy)

		require.NoError(t, b.BindToNetwork(network))
		assert.Equal(t, network, m.ProcessDefaultNetwork())
		assert.Nil(t, m.BoundNetworkForProcess())

		require.NoError(t, b.ClearBinding())
		assert.Nil(t, b.CurrentBinding())
	})
}

func TestRemoveAll(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingExplicit)

	b.RemoveAll()

	require.NoError(t, b.SetRadioStateListener(func(platform.RadioStateEvent) {}))
	require.NoError(t, b.SetNetworkStateListener(func(platform.NetworkStateEvent) {}))
	require.NoError(t, b.SetAuthErrorListener(func(platform.AuthErrorEvent) {}))
	require.NoError(t, b.SetScanResultsListener(func(platform.ScanResultsEvent) {}))
	require.NoError(t, b.WatchNetwork("A", func(*wifi.Network) {}))

	b.RemoveAll()
	b.RemoveAll()

	for _, category := range []platform.Category{
		platform.RadioState,
		platform.NetworkState,
		platform.AuthError,
		platform.ScanResults,
		platform.NetworkAvailability,
	} {
		assert.False(t, b.Active(category), category.String())
		assert.Equal(t, 0, m.Subscribers(category), category.String())
	}
}

func TestRemovedListenerGetsNoQueuedEvents(t *testing.T) {
	b, m := newTestBridge(t, platform.BindingNone)

	rec := &recorder[platform.AuthErrorEvent]{}
	require.NoError(t, b.SetAuthErrorListener(rec.add))

	b.RemoveAuthErrorListener()
	m.EmitAuthError()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}
