package wpa

import (
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wifid/wifi"
)

type network struct {
	obj dbus.BusObject
}

func (n *network) String() string {
	return string(n.obj.Path())
}

func (n *network) Properties() (map[string]dbus.Variant, error) {
	return getAll(n.obj, networkName)
}

func (n *network) SetProperties(args map[string]interface{}) error {
	err := n.obj.SetProperty(networkName+".Properties", dbus.MakeVariant(args))
	if err != nil {
		return errors.Errorf("could not set properties of %v: %v", n, err)
	}

	return nil
}

func (n *network) SetEnabled(enabled bool) error {
	err := n.obj.SetProperty(networkName+".Enabled", dbus.MakeVariant(enabled))
	if err != nil {
		return errors.Errorf("could not enable %v: %v", n, err)
	}

	return nil
}

// networkArgs renders config as the arguments of AddNetwork. Strings are
// passed unquoted; wpa_supplicant quotes ssid, psk and WEP keys itself.
func networkArgs(config *wifi.NetworkConfig) map[string]interface{} {
	args := map[string]interface{}{
		"ssid":     wifi.TrimQuotes(config.Ssid),
		"priority": int32(config.Priority),
	}

	setList := func(key string, set wifi.Set) {
		if len(set) > 0 {
			args[key] = strings.Join(set.Sorted(), " ")
		}
	}

	setList("key_mgmt", config.KeyMgmt)
	setList("proto", config.Protocols)
	setList("auth_alg", config.AuthAlgorithms)
	setList("pairwise", config.PairwiseCiphers)
	setList("group", config.GroupCiphers)

	if config.PreSharedKey != "" {
		args["psk"] = wifi.TrimQuotes(config.PreSharedKey)
	}

	hasWep := false
	for i, key := range config.WepKeys {
		if key != "" {
			args["wep_key"+strconv.Itoa(i)] = wifi.TrimQuotes(key)
			hasWep = true
		}
	}

	if hasWep {
		args["wep_tx_keyidx"] = int32(config.WepTxKeyIndex)
	}

	return args
}

// networkConfig reads the saved network from its properties. Secrets are
// never exported by the supplicant and stay empty.
func networkConfig(id string, props map[string]dbus.Variant) *wifi.NetworkConfig {
	str := func(key string) string {
		v, ok := props[key]
		if !ok {
			return ""
		}

		s, _ := v.Value().(string)
		return s
	}

	list := func(key string) wifi.Set {
		fields := strings.Fields(str(key))
		if len(fields) == 0 {
			return nil
		}

		return wifi.NewSet(fields...)
	}

	config := &wifi.NetworkConfig{
		ID:              id,
		Ssid:            wifi.AddQuotes(wifi.TrimQuotes(str("ssid"))),
		KeyMgmt:         list("key_mgmt"),
		Protocols:       list("proto"),
		AuthAlgorithms:  list("auth_alg"),
		PairwiseCiphers: list("pairwise"),
		GroupCiphers:    list("group"),
	}

	config.Priority, _ = strconv.Atoi(str("priority"))
	config.WepTxKeyIndex, _ = strconv.Atoi(str("wep_tx_keyidx"))

	switch {
	case config.KeyMgmt.Has(wifi.KeyMgmtWpaPsk):
		config.Security = wifi.SecurityWPA
	case config.KeyMgmt.Has("WPA-EAP"), config.KeyMgmt.Has("IEEE8021X"):
		config.Security = wifi.SecurityEAP
	case config.AuthAlgorithms.Has(wifi.AuthShared), str("wep_tx_keyidx") != "":
		config.Security = wifi.SecurityWEP
	default:
		config.Security = wifi.SecurityNone
	}

	return config
}
