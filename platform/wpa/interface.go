package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wifid/wifi"
)

type wpaInterface struct {
	*supplicant
	obj dbus.BusObject
}

func (i *wpaInterface) path() dbus.ObjectPath {
	return i.obj.Path()
}

func (i *wpaInterface) Scan() error {
	call := i.obj.Call(ifaceName+".Scan", 0, map[string]interface{}{
		"Type": "active",
	})
	if call.Err != nil {
		return errors.Errorf("could not scan: %v", call.Err)
	}

	return nil
}

func (i *wpaInterface) Disconnect() error {
	call := i.obj.Call(ifaceName+".Disconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not disconnect: %v", call.Err)
	}

	return nil
}

func (i *wpaInterface) Reconnect() error {
	call := i.obj.Call(ifaceName+".Reconnect", 0)
	if call.Err != nil {
		return errors.Errorf("could not reconnect: %v", call.Err)
	}

	return nil
}

func (i *wpaInterface) State() (wifi.SupplicantState, error) {
	v, err := i.obj.GetProperty(ifaceName + ".State")
	if err != nil {
		return wifi.SupplicantUnknown, errors.Errorf("could not get state: %v", err)
	}

	state, ok := v.Value().(string)
	if !ok {
		return wifi.SupplicantUnknown, errors.Errorf("could not convert state: %v", v)
	}

	return wifi.SupplicantState(state), nil
}

func (i *wpaInterface) objectPaths(property string) ([]dbus.ObjectPath, error) {
	v, err := i.obj.GetProperty(ifaceName + "." + property)
	if err != nil {
		return nil, errors.Errorf("could not get %v: %v", property, err)
	}

	paths, ok := v.Value().([]dbus.ObjectPath)
	if !ok {
		return nil, errors.Errorf("could not convert %v: %v", property, v)
	}

	return paths, nil
}

func (i *wpaInterface) objectPath(property string) (dbus.ObjectPath, error) {
	v, err := i.obj.GetProperty(ifaceName + "." + property)
	if err != nil {
		return "", errors.Errorf("could not get %v: %v", property, err)
	}

	path, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return "", errors.Errorf("could not convert %v: %v", property, v)
	}

	// wpa_supplicant reports "/" when there is none
	if path == "/" {
		return "", nil
	}

	return path, nil
}

func (i *wpaInterface) BSSs() ([]*bss, error) {
	paths, err := i.objectPaths("BSSs")
	if err != nil {
		return nil, err
	}

	var bsss []*bss
	for _, path := range paths {
		bsss = append(bsss, &bss{obj: i.object(path)})
	}

	return bsss, nil
}

// CurrentBSS returns the BSS the interface is associated with, or nil.
func (i *wpaInterface) CurrentBSS() (*bss, error) {
	path, err := i.objectPath("CurrentBSS")
	if err != nil || path == "" {
		return nil, err
	}

	return &bss{obj: i.object(path)}, nil
}

func (i *wpaInterface) Networks() ([]*network, error) {
	paths, err := i.objectPaths("Networks")
	if err != nil {
		return nil, err
	}

	var networks []*network
	for _, path := range paths {
		networks = append(networks, &network{obj: i.object(path)})
	}

	return networks, nil
}

// CurrentNetwork returns the path of the network in use, or "".
func (i *wpaInterface) CurrentNetwork() (dbus.ObjectPath, error) {
	return i.objectPath("CurrentNetwork")
}

func (i *wpaInterface) AddNetwork(args map[string]interface{}) (*network, error) {
	call := i.obj.Call(ifaceName+".AddNetwork", 0, args)
	if call.Err != nil {
		return nil, errors.Errorf("could not add network: %v", call.Err)
	}

	var path dbus.ObjectPath
	err := call.Store(&path)
	if err != nil {
		return nil, errors.Errorf("could not store value: %v", err)
	}

	return &network{obj: i.object(path)}, nil
}

// SelectNetwork connects to the network and disables every other one.
func (i *wpaInterface) SelectNetwork(n *network) error {
	call := i.obj.Call(ifaceName+".SelectNetwork", 0, n.obj.Path())
	if call.Err != nil {
		return errors.Errorf("could not select network: %v", call.Err)
	}

	return nil
}

func (i *wpaInterface) Network(path dbus.ObjectPath) *network {
	return &network{obj: i.object(path)}
}
