package wpa

import (
	"github.com/the-lightning-land/wifid/wifi"
)

// linkChange is what a supplicant state transition means for the link.
type linkChange struct {
	report bool
	state  wifi.State
	detail wifi.DetailedState
	// authError is set when the supplicant gave up in the middle of the key
	// handshake, which is how a wrong passphrase shows.
	authError bool
	// available is set once the link is usable.
	available bool
}

func handshaking(s wifi.SupplicantState) bool {
	return s == wifi.SupplicantFourWayHandshake || s == wifi.SupplicantGroupHandshake
}

func linkTransition(prev, next wifi.SupplicantState) linkChange {
	if prev == next {
		return linkChange{}
	}

	switch next {
	case wifi.SupplicantAuthenticating, wifi.SupplicantFourWayHandshake, wifi.SupplicantGroupHandshake:
		return linkChange{report: true, state: wifi.StateConnecting, detail: wifi.DetailAuthenticating}

	case wifi.SupplicantAssociating, wifi.SupplicantAssociated:
		return linkChange{report: true, state: wifi.StateConnecting, detail: wifi.DetailConnecting}

	case wifi.SupplicantCompleted:
		return linkChange{report: true, state: wifi.StateConnected, detail: wifi.DetailOther, available: true}

	case wifi.SupplicantDisconnected, wifi.SupplicantInactive, wifi.SupplicantInterfaceDisabled:
		if handshaking(prev) {
			return linkChange{report: true, state: wifi.StateDisconnected, detail: wifi.DetailFailed, authError: true}
		}

		return linkChange{report: true, state: wifi.StateDisconnected, detail: wifi.DetailOther}

	default:
		return linkChange{}
	}
}
