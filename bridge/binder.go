package bridge

import (
	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
)

// Binder forces the traffic of this process through one network.
type Binder interface {
	// Bind routes process traffic through network, or back through the
	// system default when network is nil.
	Bind(network *wifi.Network) error
	Bound() *wifi.Network
	ReportConnectivity() error
}

// newBinder picks the strategy matching the capability of conn, or nil when
// the platform cannot bind at all.
func newBinder(conn platform.Connectivity) Binder {
	switch conn.BindingCapability() {
	case platform.BindingExplicit:
		return &explicitBinder{conn: conn}
	case platform.BindingLegacy:
		return &legacyBinder{conn: conn}
	default:
		return nil
	}
}

type explicitBinder struct {
	conn platform.Connectivity
}

var _ Binder = (*explicitBinder)(nil)

func (b *explicitBinder) Bind(network *wifi.Network) error {
	err := b.conn.BindProcessToNetwork(network)
	if err != nil {
		return errors.Errorf("could not bind process to %v: %v", network, err)
	}

	return nil
}

func (b *explicitBinder) Bound() *wifi.Network {
	return b.conn.BoundNetworkForProcess()
}

func (b *explicitBinder) ReportConnectivity() error {
	return b.conn.ReportNetworkConnectivity(b.conn.BoundNetworkForProcess(), true)
}

type legacyBinder struct {
	conn platform.Connectivity
}

var _ Binder = (*legacyBinder)(nil)

func (b *legacyBinder) Bind(network *wifi.Network) error {
	err := b.conn.SetProcessDefaultNetwork(network)
	if err != nil {
		return errors.Errorf("could not set process default network to %v: %v", network, err)
	}

	return nil
}

func (b *legacyBinder) Bound() *wifi.Network {
	return b.conn.ProcessDefaultNetwork()
}

func (b *legacyBinder) ReportConnectivity() error {
	return b.conn.ReportBadNetwork(b.conn.ProcessDefaultNetwork())
}
