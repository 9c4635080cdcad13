// Package scan deduplicates and orders the access points a radio reports,
// and drives the one-shot scan lifecycle.
package scan

import (
	"sort"

	"github.com/the-lightning-land/wifid/wifi"
)

// Filter decides whether an access point is kept. Returning false drops it.
type Filter func(ap wifi.AccessPoint) bool

// Dedupe keeps one access point per ssid, dropping entries without an ssid
// and entries rejected by filter. Of several access points sharing an ssid
// the one with the higher normalized signal level wins, the first seen on a
// tie. The order of the result is unspecified.
func Dedupe(results []wifi.AccessPoint, filter Filter) []wifi.AccessPoint {
	bySsid := make(map[string]wifi.AccessPoint)

	for _, ap := range results {
		ssid := wifi.TrimQuotes(ap.Ssid)
		if ssid == "" {
			continue
		}

		if filter != nil && !filter(ap) {
			continue
		}

		seen, ok := bySsid[ssid]
		if !ok || wifi.NormalizedLevel(seen.Level) < wifi.NormalizedLevel(ap.Level) {
			bySsid[ssid] = ap
		}
	}

	deduped := make([]wifi.AccessPoint, 0, len(bySsid))
	for _, ap := range bySsid {
		deduped = append(deduped, ap)
	}

	return deduped
}

// SortBySignalStrength returns a copy of results ordered by raw signal level,
// strongest first. Equal levels keep their relative order.
func SortBySignalStrength(results []wifi.AccessPoint) []wifi.AccessPoint {
	sorted := append([]wifi.AccessPoint(nil), results...)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Level > sorted[j].Level
	})

	return sorted
}
