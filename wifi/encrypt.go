package wifi

import "strings"

// SecurityKind is the security protocol an access point advertises.
type SecurityKind int

const (
	SecurityNone SecurityKind = iota
	SecurityWEP
	SecurityWPA
	SecurityEAP
)

func (k SecurityKind) String() string {
	switch k {
	case SecurityNone:
		return "NONE"
	case SecurityWEP:
		return "WEP"
	case SecurityWPA:
		return "WPA"
	case SecurityEAP:
		return "EAP"
	default:
		return "INVALID SECURITY"
	}
}

// ParseSecurityKind is the inverse of String. Lookup is case insensitive.
func ParseSecurityKind(s string) (SecurityKind, bool) {
	switch strings.ToUpper(s) {
	case "NONE", "OPEN", "":
		return SecurityNone, true
	case "WEP":
		return SecurityWEP, true
	case "WPA", "WPA2", "WPA-PSK":
		return SecurityWPA, true
	case "EAP":
		return SecurityEAP, true
	default:
		return SecurityNone, false
	}
}

// Classify maps the raw capability string of a scan result to a SecurityKind.
// Markers are checked in the order WPA, WEP, EAP, so a string advertising
// both WPA and EAP classifies as WPA.
func Classify(capabilities string) SecurityKind {
	switch {
	case strings.Contains(capabilities, "WPA"):
		return SecurityWPA
	case strings.Contains(capabilities, "WEP"):
		return SecurityWEP
	case strings.Contains(capabilities, "EAP"):
		return SecurityEAP
	default:
		return SecurityNone
	}
}
