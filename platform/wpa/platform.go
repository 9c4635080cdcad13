// Package wpa implements the wifi platform on Linux: wpa_supplicant over
// D-Bus for scanning, saved networks and link state, rfkill for the radio,
// and socket options for binding this process to the wireless interface.
package wpa

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	"github.com/godbus/dbus/v5"
	"github.com/the-lightning-land/wifid/connectivity"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
)

// check Platform compliance to its interface during compile time
var _ platform.Platform = (*Platform)(nil)

const probeTimeout = 10 * time.Second

type Config struct {
	Interface string
	Rfkill    string
	// ProbeURL is fetched through the bound network to check connectivity.
	ProbeURL string
	Logger   Logger
}

type Platform struct {
	platform.Feed

	log      Logger
	ifname   string
	radio    *rfkill
	reporter *connectivity.Reporter
	binding  *binding
	sup      *supplicant
	iface    *wpaInterface

	done chan struct{}
	wg   sync.WaitGroup

	mtx    sync.Mutex
	state  wifi.SupplicantState
	target string
}

func New(config *Config) *Platform {
	p := &Platform{
		ifname: config.Interface,
		radio:  &rfkill{path: config.Rfkill},
		done:   make(chan struct{}),
		state:  wifi.SupplicantUnknown,
	}

	if p.radio.path == "" {
		p.radio.path = "/dev/rfkill"
	}

	if config.Logger != nil {
		p.log = config.Logger
	} else {
		p.log = noopLogger{}
	}

	if config.ProbeURL != "" {
		p.reporter = connectivity.NewReporter(&connectivity.Config{
			URL:     config.ProbeURL,
			Dial:    p.dial,
			Timeout: probeTimeout,
			Logger:  p.log,
		})
	}

	return p
}

func (p *Platform) Start() error {
	sup, err := dialSupplicant()
	if err != nil {
		return errors.Errorf("could not connect to wpa_supplicant: %v", err)
	}

	iface, err := sup.Interface(p.ifname)
	if err != nil {
		_ = sup.Close()
		return errors.Errorf("could not find interface %v: %v", p.ifname, err)
	}

	for _, member := range []string{"PropertiesChanged", "ScanDone"} {
		err := sup.watch(iface.path(), member)
		if err != nil {
			_ = sup.Close()
			return err
		}
	}

	p.sup = sup
	p.iface = iface

	state, err := iface.State()
	if err != nil {
		p.log.Warnf("Could not get supplicant state: %v", err)
	}

	p.state = state

	p.binding = &binding{capability: probeBinding(p.ifname)}
	p.log.Infof("Network binding capability of %v is %v", p.ifname, p.binding.capability)

	err = p.radio.watch(p.done, func(enabled bool) {
		p.log.Infof("Radio switched %v", onOff(enabled))
		p.Publish(platform.RadioStateEvent{Enabled: enabled})
	})
	if err != nil {
		p.log.Warnf("Not watching the radio: %v", err)
	}

	p.wg.Add(1)
	go p.run()

	return nil
}

func (p *Platform) Stop() error {
	select {
	case <-p.done:
	default:
		close(p.done)
	}
	p.wg.Wait()

	if p.sup == nil {
		return nil
	}

	p.sup.unwatch(p.iface.path(), "PropertiesChanged")
	p.sup.unwatch(p.iface.path(), "ScanDone")

	err := p.sup.Close()
	if err != nil {
		return errors.Errorf("could not close system bus connection: %v", err)
	}

	return nil
}

func (p *Platform) run() {
	defer p.wg.Done()

	for {
		select {
		case signal := <-p.sup.signals:
			p.handleSignal(signal)
		case <-p.done:
			return
		}
	}
}

func (p *Platform) handleSignal(signal *dbus.Signal) {
	if signal.Path != p.iface.path() || len(signal.Body) == 0 {
		return
	}

	switch signal.Name {
	case ifaceName + ".ScanDone":
		success, _ := signal.Body[0].(bool)
		p.log.Debugf("Scan done, success %v", success)
		p.Publish(platform.ScanResultsEvent{Success: success})

	case ifaceName + ".PropertiesChanged":
		props, ok := signal.Body[0].(map[string]dbus.Variant)
		if !ok {
			return
		}

		v, ok := props["State"]
		if !ok {
			return
		}

		state, ok := v.Value().(string)
		if !ok {
			return
		}

		reason, _ := props["DisconnectReason"].Value().(int32)

		p.onState(wifi.SupplicantState(state), int(reason))
	}
}

func (p *Platform) onState(next wifi.SupplicantState, reason int) {
	p.mtx.Lock()
	prev := p.state
	p.state = next
	target := p.target
	p.mtx.Unlock()

	p.log.Debugf("Supplicant state %v -> %v", prev, next)

	change := linkTransition(prev, next)
	if !change.report {
		return
	}

	network := &wifi.Network{Interface: p.ifname, Ssid: target}
	if next == wifi.SupplicantCompleted {
		current, err := p.iface.CurrentBSS()
		if err != nil {
			p.log.Warnf("Could not get current BSS: %v", err)
		} else if current != nil {
			ap, err := current.AccessPoint()
			if err == nil {
				network.Ssid = ap.Ssid
				network.Bssid = ap.Bssid
			}
		}
	}

	if change.authError {
		p.log.Warnf("Authentication with %v failed, reason %d", target, reason)
		p.Publish(platform.AuthErrorEvent{Code: reason})
	}

	p.Publish(platform.NetworkStateEvent{
		State:   change.state,
		Detail:  change.detail,
		Network: network,
	})

	if change.available {
		p.Publish(platform.NetworkAvailableEvent{Network: network})
	}
}

func (p *Platform) SetEnabled(enabled bool) error {
	return p.radio.SetEnabled(enabled)
}

func (p *Platform) Enabled() (bool, error) {
	return p.radio.Enabled()
}

func (p *Platform) StartScan() error {
	return p.iface.Scan()
}

func (p *Platform) ScanResults() ([]wifi.AccessPoint, error) {
	bsss, err := p.iface.BSSs()
	if err != nil {
		return nil, err
	}

	var results []wifi.AccessPoint
	for _, bss := range bsss {
		ap, err := bss.AccessPoint()
		if err != nil {
			p.log.Debugf("Skipping BSS %v: %v", bss, err)
			continue
		}

		results = append(results, *ap)
	}

	return results, nil
}

func (p *Platform) ConfiguredNetworks() ([]*wifi.NetworkConfig, error) {
	networks, err := p.iface.Networks()
	if err != nil {
		return nil, err
	}

	current, err := p.iface.CurrentNetwork()
	if err != nil {
		p.log.Warnf("Could not get current network: %v", err)
	}

	var configs []*wifi.NetworkConfig
	for _, n := range networks {
		all, err := n.Properties()
		if err != nil {
			p.log.Warnf("Could not read network %v: %v", n, err)
			continue
		}

		props, _ := all["Properties"].Value().(map[string]dbus.Variant)
		config := networkConfig(n.String(), props)

		enabled, _ := all["Enabled"].Value().(bool)
		switch {
		case n.obj.Path() == current:
			config.Status = wifi.StatusCurrent
		case enabled:
			config.Status = wifi.StatusEnabled
		default:
			config.Status = wifi.StatusDisabled
		}

		configs = append(configs, config)
	}

	return configs, nil
}

func (p *Platform) AddOrUpdateNetwork(config *wifi.NetworkConfig) (string, error) {
	args := networkArgs(config)

	if config.Registered() {
		err := p.iface.Network(dbus.ObjectPath(config.ID)).SetProperties(args)
		if err != nil {
			return "", err
		}

		return config.ID, nil
	}

	n, err := p.iface.AddNetwork(args)
	if err != nil {
		return "", err
	}

	p.log.Infof("Added network %v as %v", config.Ssid, n)

	return n.String(), nil
}

func (p *Platform) EnableNetwork(id string, exclusive bool) (bool, error) {
	networks, err := p.iface.Networks()
	if err != nil {
		return false, err
	}

	var target *network
	for _, n := range networks {
		if n.String() == id {
			target = n
			break
		}
	}

	if target == nil {
		return false, nil
	}

	all, err := target.Properties()
	if err != nil {
		return false, err
	}

	props, _ := all["Properties"].Value().(map[string]dbus.Variant)
	ssid := networkConfig(id, props).Ssid

	if exclusive {
		err = p.iface.SelectNetwork(target)
	} else {
		err = target.SetEnabled(true)
	}
	if err != nil {
		return false, err
	}

	p.mtx.Lock()
	p.target = wifi.TrimQuotes(ssid)
	p.mtx.Unlock()

	return true, nil
}

func (p *Platform) Disconnect() error {
	return p.iface.Disconnect()
}

func (p *Platform) Reconnect() error {
	return p.iface.Reconnect()
}

func (p *Platform) ConnectionInfo() (*wifi.ConnectionInfo, error) {
	state, err := p.iface.State()
	if err != nil {
		return nil, err
	}

	info := &wifi.ConnectionInfo{State: state}

	current, err := p.iface.CurrentBSS()
	if err != nil {
		return nil, err
	}

	if current != nil {
		ap, err := current.AccessPoint()
		if err != nil {
			return nil, err
		}

		info.Ssid = wifi.AddQuotes(ap.Ssid)
		info.Bssid = ap.Bssid
	}

	return info, nil
}

func (p *Platform) ActiveNetworkType() (wifi.NetworkType, error) {
	p.mtx.Lock()
	state := p.state
	p.mtx.Unlock()

	if state == wifi.SupplicantCompleted {
		return wifi.NetworkTypeWifi, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return wifi.NetworkTypeNone, errors.Errorf("could not list interfaces: %v", err)
	}

	for _, iface := range ifaces {
		if iface.Name == p.ifname || iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}

		if strings.HasPrefix(iface.Name, "eth") || strings.HasPrefix(iface.Name, "en") {
			return wifi.NetworkTypeEthernet, nil
		}

		return wifi.NetworkTypeOther, nil
	}

	return wifi.NetworkTypeNone, nil
}

func (p *Platform) BindingCapability() platform.BindingCapability {
	if p.binding == nil {
		return platform.BindingNone
	}

	return p.binding.capability
}

func (p *Platform) WatchNetworks() (*platform.Subscription, error) {
	if p.BindingCapability() == platform.BindingNone {
		return nil, errors.New("network watches are not supported")
	}

	return p.Feed.Subscribe(platform.NetworkAvailability), nil
}

func (p *Platform) Subscribe(category platform.Category) (*platform.Subscription, error) {
	if category == platform.NetworkAvailability {
		return p.WatchNetworks()
	}

	return p.Feed.Subscribe(category), nil
}

func (p *Platform) BindProcessToNetwork(network *wifi.Network) error {
	return p.binding.bindExplicit(network)
}

func (p *Platform) BoundNetworkForProcess() *wifi.Network {
	return p.binding.boundNetwork()
}

func (p *Platform) SetProcessDefaultNetwork(network *wifi.Network) error {
	return p.binding.setDefault(network)
}

func (p *Platform) ProcessDefaultNetwork() *wifi.Network {
	return p.binding.processDefault()
}

// Dialer returns a dialer routed through the network this process is bound
// to, if any.
func (p *Platform) Dialer() *net.Dialer {
	if p.binding == nil {
		return &net.Dialer{}
	}

	return p.binding.Dialer()
}

func (p *Platform) ReportNetworkConnectivity(network *wifi.Network, hasConnectivity bool) error {
	p.log.Infof("Connectivity of %v reported as %v", network, hasConnectivity)

	return p.probe(network)
}

func (p *Platform) ReportBadNetwork(network *wifi.Network) error {
	p.log.Warnf("Network %v reported as bad", network)

	return p.probe(network)
}

// probe fetches the probe URL through the bound network.
func (p *Platform) probe(network *wifi.Network) error {
	if p.reporter == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	state, err := p.reporter.Check(ctx)
	if err != nil {
		return errors.Errorf("could not probe %v: %v", network, err)
	}

	p.log.Infof("Network %v is %v", network, state)

	return nil
}

func (p *Platform) dial(ctx context.Context, network, address string) (net.Conn, error) {
	return p.Dialer().DialContext(ctx, network, address)
}

func onOff(on bool) string {
	if on {
		return "on"
	}

	return "off"
}
