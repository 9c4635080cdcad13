package wpa

import (
	"net"
	"strings"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wifid/wifi"
)

type bss struct {
	obj dbus.BusObject
}

func (b *bss) String() string {
	return string(b.obj.Path())
}

// AccessPoint reads the properties of the BSS.
func (b *bss) AccessPoint() (*wifi.AccessPoint, error) {
	props, err := getAll(b.obj, bssName)
	if err != nil {
		return nil, err
	}

	return accessPoint(props)
}

func accessPoint(props map[string]dbus.Variant) (*wifi.AccessPoint, error) {
	ap := wifi.AccessPoint{}

	if val, ok := props["SSID"]; ok {
		if ssid, ok := val.Value().([]byte); ok {
			ap.Ssid = string(ssid)
		} else {
			return nil, errors.Errorf("could not convert SSID to string: %v", val)
		}
	} else {
		return nil, errors.Errorf("mandatory property SSID was missing")
	}

	if val, ok := props["BSSID"]; ok {
		if bssid, ok := val.Value().([]byte); ok {
			ap.Bssid = net.HardwareAddr(bssid).String()
		} else {
			return nil, errors.Errorf("could not convert BSSID to string: %v", val)
		}
	} else {
		return nil, errors.Errorf("mandatory property BSSID was missing")
	}

	if val, ok := props["Signal"]; ok {
		if signal, ok := val.Value().(int16); ok {
			ap.Level = int(signal)
		}
	}

	if val, ok := props["Frequency"]; ok {
		if freq, ok := val.Value().(uint16); ok {
			ap.Frequency = int(freq)
		}
	}

	ap.Capabilities = capabilities(props)

	return &ap, nil
}

// capabilities renders the security of a BSS the way scan results
// advertise it, e.g. "[WPA2-PSK-CCMP][ESS]".
func capabilities(props map[string]dbus.Variant) string {
	var b strings.Builder

	wpa := securityBlock("WPA", props["WPA"])
	rsn := securityBlock("WPA2", props["RSN"])
	b.WriteString(wpa)
	b.WriteString(rsn)

	if wpa == "" && rsn == "" {
		if privacy, ok := props["Privacy"].Value().(bool); ok && privacy {
			b.WriteString("[WEP]")
		}
	}

	mode, _ := props["Mode"].Value().(string)
	if mode == "ad-hoc" {
		b.WriteString("[IBSS]")
	} else {
		b.WriteString("[ESS]")
	}

	return b.String()
}

func securityBlock(name string, v dbus.Variant) string {
	props, ok := v.Value().(map[string]dbus.Variant)
	if !ok {
		return ""
	}

	keyMgmt, _ := props["KeyMgmt"].Value().([]string)
	if len(keyMgmt) == 0 {
		return ""
	}

	var suites []string
	for _, k := range keyMgmt {
		switch {
		case strings.Contains(k, "eap"):
			suites = appendOnce(suites, "EAP")
		case strings.Contains(k, "psk"), strings.Contains(k, "sae"):
			suites = appendOnce(suites, "PSK")
		}
	}

	if len(suites) == 0 {
		return ""
	}

	pairwise, _ := props["Pairwise"].Value().([]string)

	var ciphers []string
	for _, c := range pairwise {
		ciphers = appendOnce(ciphers, strings.ToUpper(c))
	}

	block := "[" + name + "-" + strings.Join(suites, "+")
	if len(ciphers) > 0 {
		block += "-" + strings.Join(ciphers, "+")
	}

	return block + "]"
}

func appendOnce(values []string, v string) []string {
	for _, existing := range values {
		if existing == v {
			return values
		}
	}

	return append(values, v)
}
