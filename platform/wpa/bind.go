package wpa

import (
	"net"
	"sync"
	"syscall"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
	"golang.org/x/sys/unix"
)

// binding routes the connections this process dials through one network.
// Explicit binding pins sockets to the interface with SO_BINDTODEVICE, which
// needs CAP_NET_RAW. Without it the dialer falls back to using the address
// of the interface as local address.
type binding struct {
	capability platform.BindingCapability

	mtx   sync.Mutex
	bound *wifi.Network
	// legacy binding state
	defaultNetwork *wifi.Network
	localAddr      net.IP
}

// probeBinding detects the binding capability once with a throwaway socket.
func probeBinding(ifname string) platform.BindingCapability {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return platform.BindingNone
	}
	defer unix.Close(fd)

	err = unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifname)
	if err != nil {
		return platform.BindingLegacy
	}

	return platform.BindingExplicit
}

func (b *binding) bindExplicit(network *wifi.Network) error {
	if b.capability != platform.BindingExplicit {
		return errors.New("explicit binding is not supported")
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.bound = network

	return nil
}

func (b *binding) setDefault(network *wifi.Network) error {
	if b.capability == platform.BindingNone {
		return errors.New("binding is not supported")
	}

	var addr net.IP
	if network != nil {
		var err error
		addr, err = interfaceAddr(network.Interface)
		if err != nil {
			return err
		}
	}

	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.defaultNetwork = network
	b.localAddr = addr

	return nil
}

func (b *binding) boundNetwork() *wifi.Network {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return b.bound
}

func (b *binding) processDefault() *wifi.Network {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return b.defaultNetwork
}

// Dialer returns a dialer honouring the current binding.
func (b *binding) Dialer() *net.Dialer {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	d := &net.Dialer{}

	if b.localAddr != nil {
		d.LocalAddr = &net.TCPAddr{IP: b.localAddr}
	}

	if b.bound != nil {
		ifname := b.bound.Interface
		d.Control = func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, ifname)
			})
			if err != nil {
				return err
			}

			return sockErr
		}
	}

	return d
}

func interfaceAddr(ifname string) (net.IP, error) {
	iface, err := net.InterfaceByName(ifname)
	if err != nil {
		return nil, errors.Errorf("could not find interface %v: %v", ifname, err)
	}

	addrs, err := iface.Addrs()
	if err != nil {
		return nil, errors.Errorf("could not get addresses of %v: %v", ifname, err)
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && ipNet.IP.To4() != nil {
			return ipNet.IP, nil
		}
	}

	return nil, errors.Errorf("interface %v has no IPv4 address", ifname)
}
