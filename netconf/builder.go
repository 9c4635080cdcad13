// Package netconf builds and edits saved network records for a target
// access point.
package netconf

import (
	"github.com/the-lightning-land/wifid/wifi"
)

// BuildOrUpdate populates the security parameters of a saved network for
// ssid. When existing is nil a fresh record is created, otherwise existing is
// edited in place. The record is always left disabled and gets a priority
// above every record in configured.
func BuildOrUpdate(existing *wifi.NetworkConfig, kind wifi.SecurityKind, ssid string, password string, configured []*wifi.NetworkConfig) *wifi.NetworkConfig {
	config := existing
	if config == nil {
		config = &wifi.NetworkConfig{}
	}

	config.Ssid = wifi.AddQuotes(wifi.TrimQuotes(ssid))
	config.Security = kind
	config.Status = wifi.StatusDisabled
	AssignHighestPriority(config, configured)

	config.Protocols = wifi.NewSet(wifi.ProtoRSN, wifi.ProtoWPA)

	switch kind {
	case wifi.SecurityNone:
		config.KeyMgmt = wifi.NewSet(wifi.KeyMgmtNone)
		config.AuthAlgorithms = wifi.NewSet()
		config.PairwiseCiphers = wifi.NewSet(wifi.CipherCCMP, wifi.CipherTKIP)
		config.GroupCiphers = wifi.NewSet(wifi.CipherWEP40, wifi.CipherWEP104, wifi.CipherCCMP, wifi.CipherTKIP)
	case wifi.SecurityWEP, wifi.SecurityEAP:
		config.KeyMgmt = wifi.NewSet(wifi.KeyMgmtNone)
		config.AuthAlgorithms = wifi.NewSet(wifi.AuthOpen, wifi.AuthShared)
		config.PairwiseCiphers = wifi.NewSet(wifi.CipherCCMP, wifi.CipherTKIP)
		config.GroupCiphers = wifi.NewSet(wifi.CipherWEP40, wifi.CipherWEP104)
		config.WepKeys[0] = wifi.AddQuotes(password)
		config.WepTxKeyIndex = 0
	case wifi.SecurityWPA:
		config.KeyMgmt = wifi.NewSet(wifi.KeyMgmtWpaPsk)
		config.PairwiseCiphers = wifi.NewSet(wifi.CipherCCMP, wifi.CipherTKIP)
		config.GroupCiphers = wifi.NewSet(wifi.CipherWEP40, wifi.CipherWEP104, wifi.CipherCCMP, wifi.CipherTKIP)
		config.PreSharedKey = wifi.AddQuotes(password)
	}

	return config
}

// AssignHighestPriority raises the priority of candidate above every record
// in configured whenever one of them would otherwise tie or win.
func AssignHighestPriority(candidate *wifi.NetworkConfig, configured []*wifi.NetworkConfig) {
	highest, found := 0, false

	for _, config := range configured {
		if config == nil || config == candidate {
			continue
		}

		if !found || config.Priority > highest {
			highest, found = config.Priority, true
		}
	}

	if found && highest >= candidate.Priority {
		candidate.Priority = highest + 1
	}
}

// FindExistingBySSID returns the first record whose canonical ssid matches.
func FindExistingBySSID(ssid string, configured []*wifi.NetworkConfig) *wifi.NetworkConfig {
	for _, config := range configured {
		if config != nil && wifi.SSIDEqual(config.Ssid, ssid) {
			return config
		}
	}

	return nil
}
