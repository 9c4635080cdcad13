// Package platform describes the radio and connectivity services a wifi
// orchestrator consumes, and the notifications those services emit.
package platform

import (
	"github.com/the-lightning-land/wifid/wifi"
)

// Radio is the radio control surface.
type Radio interface {
	SetEnabled(enabled bool) error
	Enabled() (bool, error)
	StartScan() error
	ScanResults() ([]wifi.AccessPoint, error)
	ConfiguredNetworks() ([]*wifi.NetworkConfig, error)
	// AddOrUpdateNetwork registers config, or updates it when it already
	// carries an identity, and returns the identity.
	AddOrUpdateNetwork(config *wifi.NetworkConfig) (string, error)
	// EnableNetwork activates the saved network with the given identity.
	// With exclusive set every other saved network is disabled.
	EnableNetwork(id string, exclusive bool) (bool, error)
	Disconnect() error
	Reconnect() error
	ConnectionInfo() (*wifi.ConnectionInfo, error)
}

// BindingCapability is the way, if any, a platform can force process traffic
// through one network.
type BindingCapability int

const (
	BindingNone BindingCapability = iota
	// BindingLegacy selects the default network of the process.
	BindingLegacy
	// BindingExplicit binds the process to a network.
	BindingExplicit
)

func (b BindingCapability) String() string {
	switch b {
	case BindingLegacy:
		return "LEGACY"
	case BindingExplicit:
		return "EXPLICIT"
	default:
		return "NONE"
	}
}

// Connectivity is the connectivity surface.
type Connectivity interface {
	ActiveNetworkType() (wifi.NetworkType, error)
	BindingCapability() BindingCapability
	// WatchNetworks delivers a NetworkAvailableEvent for every wireless
	// network that becomes available until cancelled.
	WatchNetworks() (*Subscription, error)

	BindProcessToNetwork(network *wifi.Network) error
	BoundNetworkForProcess() *wifi.Network
	SetProcessDefaultNetwork(network *wifi.Network) error
	ProcessDefaultNetwork() *wifi.Network

	ReportNetworkConnectivity(network *wifi.Network, hasConnectivity bool) error
	ReportBadNetwork(network *wifi.Network) error
}

// Notifier registers against the platform notification categories.
type Notifier interface {
	Subscribe(category Category) (*Subscription, error)
}

// Platform bundles every service the orchestrator consumes.
type Platform interface {
	Radio
	Connectivity
	Notifier
}
