package mock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
)

func newTestMock(t *testing.T, config *Config) *Mock {
	t.Helper()

	config.DataDir = t.TempDir()
	m := New(config)
	require.NoError(t, m.Start())
	t.Cleanup(func() { require.NoError(t, m.Stop()) })

	return m
}

func nextEvent(t *testing.T, sub *platform.Subscription) platform.Event {
	t.Helper()

	select {
	case event := <-sub.Events:
		return event
	case <-time.After(time.Second):
		t.Fatalf("no %v event", sub.Category)
		return nil
	}
}

func TestStorePersistsNetworks(t *testing.T) {
	dir := t.TempDir()

	m := New(&Config{DataDir: dir})
	require.NoError(t, m.Start())

	config := &wifi.NetworkConfig{
		Ssid:         `"home"`,
		Security:     wifi.SecurityWPA,
		KeyMgmt:      wifi.NewSet(wifi.KeyMgmtWpaPsk),
		PreSharedKey: `"pw"`,
		Priority:     4,
	}

	id, err := m.AddOrUpdateNetwork(config)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	require.NoError(t, m.Stop())

	reopened := New(&Config{DataDir: dir})
	require.NoError(t, reopened.Start())
	defer reopened.Stop()

	configs, err := reopened.ConfiguredNetworks()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, id, configs[0].ID)
	assert.Equal(t, `"home"`, configs[0].Ssid)
	assert.Equal(t, 4, configs[0].Priority)
	assert.True(t, configs[0].KeyMgmt.Has(wifi.KeyMgmtWpaPsk))
}

func TestAddOrUpdateKeepsIdentity(t *testing.T) {
	m := newTestMock(t, &Config{})

	id, err := m.AddOrUpdateNetwork(&wifi.NetworkConfig{Ssid: `"home"`, Priority: 1})
	require.NoError(t, err)

	updated, err := m.AddOrUpdateNetwork(&wifi.NetworkConfig{ID: id, Ssid: `"home"`, Priority: 2})
	require.NoError(t, err)
	assert.Equal(t, id, updated)

	_, err = m.AddOrUpdateNetwork(&wifi.NetworkConfig{ID: "404", Ssid: `"gone"`})
	assert.Error(t, err)

	configs, err := m.ConfiguredNetworks()
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, 2, configs[0].Priority)
}

func TestEnableNetworkExclusive(t *testing.T) {
	m := newTestMock(t, &Config{})

	first, err := m.AddOrUpdateNetwork(&wifi.NetworkConfig{Ssid: `"a"`, Status: wifi.StatusEnabled})
	require.NoError(t, err)
	second, err := m.AddOrUpdateNetwork(&wifi.NetworkConfig{Ssid: `"b"`})
	require.NoError(t, err)

	ok, err := m.EnableNetwork(second, true)
	require.NoError(t, err)
	require.True(t, ok)

	configs, err := m.ConfiguredNetworks()
	require.NoError(t, err)

	statuses := map[string]wifi.ConfigStatus{}
	for _, c := range configs {
		statuses[c.ID] = c.Status
	}

	assert.Equal(t, wifi.StatusDisabled, statuses[first])
	assert.Equal(t, wifi.StatusEnabled, statuses[second])

	ok, err = m.EnableNetwork("404", true)
	require.NoError(t, err)
	assert.False(t, ok)

	m.RejectEnable = true
	ok, err = m.EnableNetwork(first, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRadioTransitionsArePublished(t *testing.T) {
	m := newTestMock(t, &Config{})

	sub, err := m.Subscribe(platform.RadioState)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, m.SetEnabled(true))
	assert.Equal(t, platform.RadioStateEvent{Enabled: true}, nextEvent(t, sub))

	require.NoError(t, m.SetEnabled(true))
	assert.Len(t, sub.Events, 0)

	enabled, err := m.Enabled()
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestScanRequiresRadio(t *testing.T) {
	m := newTestMock(t, &Config{})

	assert.Error(t, m.StartScan())

	require.NoError(t, m.SetEnabled(true))

	sub, err := m.Subscribe(platform.ScanResults)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, m.StartScan())
	assert.Equal(t, platform.ScanResultsEvent{Success: true}, nextEvent(t, sub))
}

func TestAutoConnect(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     []platform.Event
	}{
		{
			name:     "correct password",
			password: "secret",
			want: []platform.Event{
				platform.NetworkStateEvent{State: wifi.StateConnecting, Detail: wifi.DetailConnecting},
				platform.NetworkStateEvent{State: wifi.StateConnecting, Detail: wifi.DetailAuthenticating},
				platform.NetworkStateEvent{State: wifi.StateConnecting, Detail: wifi.DetailObtainingAddress},
				platform.NetworkStateEvent{State: wifi.StateConnected, Detail: wifi.DetailOther},
			},
		},
		{
			name:     "wrong password",
			password: "guess",
			want: []platform.Event{
				platform.NetworkStateEvent{State: wifi.StateConnecting, Detail: wifi.DetailConnecting},
				platform.NetworkStateEvent{State: wifi.StateConnecting, Detail: wifi.DetailAuthenticating},
				platform.AuthErrorEvent{Code: 1},
				platform.NetworkStateEvent{State: wifi.StateDisconnected, Detail: wifi.DetailFailed},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMock(t, &Config{AutoConnect: true, Binding: platform.BindingExplicit})
			m.AddAccessPoint(wifi.AccessPoint{Ssid: "home", Bssid: "aa", Capabilities: "[WPA2-PSK-CCMP]", Level: -40}, "secret")

			states, err := m.Subscribe(platform.NetworkState)
			require.NoError(t, err)
			defer states.Cancel()
			auth, err := m.Subscribe(platform.AuthError)
			require.NoError(t, err)
			defer auth.Cancel()

			id, err := m.AddOrUpdateNetwork(&wifi.NetworkConfig{
				Ssid:         `"home"`,
				Security:     wifi.SecurityWPA,
				PreSharedKey: wifi.AddQuotes(tt.password),
			})
			require.NoError(t, err)

			ok, err := m.EnableNetwork(id, true)
			require.NoError(t, err)
			require.True(t, ok)
			require.NoError(t, m.Reconnect())

			for _, want := range tt.want {
				var got platform.Event
				if _, isAuth := want.(platform.AuthErrorEvent); isAuth {
					got = nextEvent(t, auth)
				} else {
					got = nextEvent(t, states)
					state := got.(platform.NetworkStateEvent)
					require.NotNil(t, state.Network)
					assert.Equal(t, "home", state.Network.Ssid)
					state.Network = nil
					got = state
				}

				assert.Equal(t, want, got)
			}
		})
	}
}

func TestConnectionInfoAfterAutoConnect(t *testing.T) {
	m := newTestMock(t, &Config{AutoConnect: true})
	m.AddAccessPoint(wifi.AccessPoint{Ssid: "cafe", Bssid: "bb", Capabilities: "[ESS]"}, "")

	id, err := m.AddOrUpdateNetwork(&wifi.NetworkConfig{Ssid: `"cafe"`})
	require.NoError(t, err)
	_, err = m.EnableNetwork(id, true)
	require.NoError(t, err)
	require.NoError(t, m.Reconnect())

	require.Eventually(t, func() bool {
		info, err := m.ConnectionInfo()
		return err == nil && info.ConnectedTo("cafe")
	}, time.Second, time.Millisecond)

	kind, err := m.ActiveNetworkType()
	require.NoError(t, err)
	assert.Equal(t, wifi.NetworkTypeWifi, kind)
}

func TestBindingCapabilities(t *testing.T) {
	none := newTestMock(t, &Config{})
	_, err := none.WatchNetworks()
	assert.Error(t, err)
	assert.Error(t, none.BindProcessToNetwork(&wifi.Network{}))

	legacy := newTestMock(t, &Config{Binding: platform.BindingLegacy})
	assert.Error(t, legacy.BindProcessToNetwork(&wifi.Network{}))
	require.NoError(t, legacy.SetProcessDefaultNetwork(&wifi.Network{Ssid: "a"}))
	assert.Equal(t, "a", legacy.ProcessDefaultNetwork().Ssid)
}
