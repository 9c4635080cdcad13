package wifi

import "strings"

// TrimQuotes strips every leading and trailing double quote from an ssid.
func TrimQuotes(ssid string) string {
	return strings.TrimRight(strings.TrimLeft(ssid, `"`), `"`)
}

// AddQuotes wraps an ssid (or credential) in double quotes, the form saved
// network records store it in.
func AddQuotes(ssid string) string {
	return `"` + ssid + `"`
}

// SSIDEqual compares two ssids in their canonical, quote-trimmed form.
func SSIDEqual(ssid string, another string) bool {
	return TrimQuotes(ssid) == TrimQuotes(another)
}
