package wpa

import (
	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
)

const (
	service       = "fi.w1.wpa_supplicant1"
	rootPath      = dbus.ObjectPath("/fi/w1/wpa_supplicant1")
	ifaceName     = "fi.w1.wpa_supplicant1.Interface"
	bssName       = "fi.w1.wpa_supplicant1.BSS"
	networkName   = "fi.w1.wpa_supplicant1.Network"
	propertiesGet = "org.freedesktop.DBus.Properties.GetAll"

	signalBuffer = 64
)

// supplicant is a connection to wpa_supplicant on the system bus.
type supplicant struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	signals chan *dbus.Signal
}

type signalHandler struct {
	*supplicant
}

var _ dbus.SignalHandler = (*signalHandler)(nil)

// DeliverSignal must not block the bus reader, so signals that find the
// buffer full are dropped.
func (h signalHandler) DeliverSignal(iface, name string, signal *dbus.Signal) {
	select {
	case h.signals <- signal:
	default:
	}
}

func (h signalHandler) Terminate() {}

func dialSupplicant() (*supplicant, error) {
	s := &supplicant{
		signals: make(chan *dbus.Signal, signalBuffer),
	}

	conn, err := dbus.ConnectSystemBus(dbus.WithSignalHandler(signalHandler{s}))
	if err != nil {
		return nil, errors.Errorf("could not connect to system bus: %v", err)
	}

	s.conn = conn
	s.obj = conn.Object(service, rootPath)

	return s, nil
}

func (s *supplicant) Close() error {
	return s.conn.Close()
}

// Interface returns the supplicant interface for ifname, asking the
// supplicant to manage the interface when it does not yet.
func (s *supplicant) Interface(ifname string) (*wpaInterface, error) {
	var path dbus.ObjectPath

	err := s.obj.Call(service+".GetInterface", 0, ifname).Store(&path)
	if err != nil {
		err = s.obj.Call(service+".CreateInterface", 0, map[string]interface{}{
			"Ifname": ifname,
		}).Store(&path)
		if err != nil {
			return nil, errors.Errorf("could not get interface %v: %v", ifname, err)
		}
	}

	return &wpaInterface{
		supplicant: s,
		obj:        s.conn.Object(service, path),
	}, nil
}

func (s *supplicant) object(path dbus.ObjectPath) dbus.BusObject {
	return s.conn.Object(service, path)
}

// watch matches the signals of member on the interface at path.
func (s *supplicant) watch(path dbus.ObjectPath, member string) error {
	err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface(ifaceName),
		dbus.WithMatchMember(member),
		dbus.WithMatchObjectPath(path),
	)
	if err != nil {
		return errors.Errorf("could not add signal %v: %v", member, err)
	}

	return nil
}

func (s *supplicant) unwatch(path dbus.ObjectPath, member string) {
	_ = s.conn.RemoveMatchSignal(
		dbus.WithMatchInterface(ifaceName),
		dbus.WithMatchMember(member),
		dbus.WithMatchObjectPath(path),
	)
}

func getAll(obj dbus.BusObject, iface string) (map[string]dbus.Variant, error) {
	call := obj.Call(propertiesGet, 0, iface)
	if call.Err != nil {
		return nil, errors.Errorf("could not get all properties: %v", call.Err)
	}

	props, ok := call.Body[0].(map[string]dbus.Variant)
	if !ok {
		return nil, errors.Errorf("could not convert properties of %v", obj.Path())
	}

	return props, nil
}
