package platform

import (
	"github.com/the-lightning-land/wifid/wifi"
)

// Category is a platform notification category.
type Category int

const (
	RadioState Category = iota
	NetworkState
	AuthError
	ScanResults
	NetworkAvailability
)

func (c Category) String() string {
	switch c {
	case RadioState:
		return "radio-state"
	case NetworkState:
		return "network-state"
	case AuthError:
		return "auth-error"
	case ScanResults:
		return "scan-results"
	case NetworkAvailability:
		return "network-availability"
	default:
		return "unknown"
	}
}

// Event is any notification delivered on a Subscription.
type Event interface {
	Category() Category
}

// RadioStateEvent reports the radio being switched on or off. Replay is set
// when the event repeats the current state right after subscribing rather
// than reporting a transition.
type RadioStateEvent struct {
	Enabled bool
	Replay  bool
}

func (RadioStateEvent) Category() Category { return RadioState }

// NetworkStateEvent reports a change of the wireless link.
type NetworkStateEvent struct {
	State   wifi.State
	Detail  wifi.DetailedState
	Network *wifi.Network
}

func (NetworkStateEvent) Category() Category { return NetworkState }

// AuthErrorEvent reports credentials rejected by the peer.
type AuthErrorEvent struct {
	Code int
}

func (AuthErrorEvent) Category() Category { return AuthError }

// ScanResultsEvent reports fresh scan results being available.
type ScanResultsEvent struct {
	Success bool
}

func (ScanResultsEvent) Category() Category { return ScanResults }

// NetworkAvailableEvent reports a wireless network becoming usable.
type NetworkAvailableEvent struct {
	Network *wifi.Network
}

func (NetworkAvailableEvent) Category() Category { return NetworkAvailability }
