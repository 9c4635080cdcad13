package manager

// ConnectionState is the phase of the tracked connection attempt.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateRegistering
	StateEnabling
	StateAwaitingNetworkEvent
	StateAwaitingBind
	StateConnected
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRegistering:
		return "REGISTERING"
	case StateEnabling:
		return "ENABLING"
	case StateAwaitingNetworkEvent:
		return "AWAITING_NETWORK_EVENT"
	case StateAwaitingBind:
		return "AWAITING_BIND"
	case StateConnected:
		return "CONNECTED"
	case StateFailed:
		return "FAILED"
	default:
		return "INVALID STATE"
	}
}

// Terminal reports whether the state ends a connection attempt.
func (s ConnectionState) Terminal() bool {
	return s == StateConnected || s == StateFailed
}

// SupersedePolicy decides what happens to a new connection attempt while
// another one is pending.
type SupersedePolicy int

const (
	// SupersedeReplace drops the pending attempt without resolving it.
	SupersedeReplace SupersedePolicy = iota
	// SupersedeReject fails the new attempt and keeps the pending one.
	SupersedeReject
)

// ParseSupersedePolicy parses "replace" or "reject".
func ParseSupersedePolicy(s string) (SupersedePolicy, bool) {
	switch s {
	case "replace", "":
		return SupersedeReplace, true
	case "reject":
		return SupersedeReject, true
	default:
		return SupersedeReplace, false
	}
}
