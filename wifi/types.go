package wifi

// AccessPoint is a single entry of a scan.
type AccessPoint struct {
	Ssid         string
	Bssid        string
	Capabilities string
	// Level is the raw signal strength in dBm.
	Level     int
	Frequency int
}

// Security derives the kind of security the access point advertises.
func (a AccessPoint) Security() SecurityKind {
	return Classify(a.Capabilities)
}

// SupplicantState is the authentication phase the supplicant reports.
type SupplicantState string

const (
	SupplicantDisconnected      SupplicantState = "disconnected"
	SupplicantInactive          SupplicantState = "inactive"
	SupplicantScanning          SupplicantState = "scanning"
	SupplicantAuthenticating    SupplicantState = "authenticating"
	SupplicantAssociating       SupplicantState = "associating"
	SupplicantAssociated        SupplicantState = "associated"
	SupplicantFourWayHandshake  SupplicantState = "4way_handshake"
	SupplicantGroupHandshake    SupplicantState = "group_handshake"
	SupplicantCompleted         SupplicantState = "completed"
	SupplicantInterfaceDisabled SupplicantState = "interface_disabled"
	SupplicantUnknown           SupplicantState = "unknown"
)

// ConnectionInfo describes the link the radio currently holds.
type ConnectionInfo struct {
	Ssid  string
	Bssid string
	State SupplicantState
}

// ConnectedTo reports whether the link is fully authenticated against ssid.
func (c *ConnectionInfo) ConnectedTo(ssid string) bool {
	if c == nil {
		return false
	}

	return SSIDEqual(c.Ssid, ssid) && c.State == SupplicantCompleted
}

// Network identifies a concrete, usable network interface link. It is the
// handle processes get bound to.
type Network struct {
	Interface string
	Ssid      string
	Bssid     string
}

func (n *Network) String() string {
	if n == nil {
		return "<none>"
	}

	return n.Interface + "/" + TrimQuotes(n.Ssid)
}

// NetworkType is the transport of the currently active network.
type NetworkType int

const (
	NetworkTypeNone NetworkType = iota
	NetworkTypeWifi
	NetworkTypeEthernet
	NetworkTypeOther
)

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeNone:
		return "NONE"
	case NetworkTypeWifi:
		return "WIFI"
	case NetworkTypeEthernet:
		return "ETHERNET"
	default:
		return "OTHER"
	}
}

// State is the coarse state of a network link.
type State int

const (
	StateUnknown State = iota
	StateConnecting
	StateConnected
	StateDisconnecting
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// DetailedState refines State.
type DetailedState int

const (
	DetailOther DetailedState = iota
	DetailConnecting
	DetailAuthenticating
	DetailObtainingAddress
	DetailFailed
)

func (d DetailedState) String() string {
	switch d {
	case DetailConnecting:
		return "CONNECTING"
	case DetailAuthenticating:
		return "AUTHENTICATING"
	case DetailObtainingAddress:
		return "OBTAINING_IPADDR"
	case DetailFailed:
		return "FAILED"
	default:
		return "OTHER"
	}
}
