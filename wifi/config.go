package wifi

import "sort"

// KeyMgmt values of a saved network.
const (
	KeyMgmtNone   = "NONE"
	KeyMgmtWpaPsk = "WPA-PSK"
)

// Protocols.
const (
	ProtoRSN = "RSN"
	ProtoWPA = "WPA"
)

// Ciphers.
const (
	CipherCCMP   = "CCMP"
	CipherTKIP   = "TKIP"
	CipherWEP40  = "WEP40"
	CipherWEP104 = "WEP104"
)

// Authentication algorithms.
const (
	AuthOpen   = "OPEN"
	AuthShared = "SHARED"
)

// ConfigStatus is the enabled state of a saved network.
type ConfigStatus int

const (
	StatusDisabled ConfigStatus = iota
	StatusEnabled
	StatusCurrent
)

// Set is a small string set used for the allowed-* fields of a NetworkConfig.
type Set map[string]struct{}

// NewSet creates a set holding values.
func NewSet(values ...string) Set {
	s := Set{}
	for _, v := range values {
		s[v] = struct{}{}
	}

	return s
}

// Has reports membership.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Sorted lists the members in lexical order.
func (s Set) Sorted() []string {
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}

	sort.Strings(values)

	return values
}

// NetworkConfig is a saved network record owned by the platform store.
type NetworkConfig struct {
	// ID is the identity the platform assigned on registration. It is empty
	// until the record is registered.
	ID string
	// Ssid is kept in its quoted form.
	Ssid            string
	Security        SecurityKind
	KeyMgmt         Set
	Protocols       Set
	AuthAlgorithms  Set
	PairwiseCiphers Set
	GroupCiphers    Set
	PreSharedKey    string
	WepKeys         [4]string
	WepTxKeyIndex   int
	Priority        int
	Status          ConfigStatus
}

// Registered reports whether the platform has assigned an identity.
func (c *NetworkConfig) Registered() bool {
	return c.ID != ""
}

// Clone returns a deep copy.
func (c *NetworkConfig) Clone() *NetworkConfig {
	clone := *c
	clone.KeyMgmt = cloneSet(c.KeyMgmt)
	clone.Protocols = cloneSet(c.Protocols)
	clone.AuthAlgorithms = cloneSet(c.AuthAlgorithms)
	clone.PairwiseCiphers = cloneSet(c.PairwiseCiphers)
	clone.GroupCiphers = cloneSet(c.GroupCiphers)

	return &clone
}

func cloneSet(s Set) Set {
	if s == nil {
		return nil
	}

	return NewSet(s.Sorted()...)
}
