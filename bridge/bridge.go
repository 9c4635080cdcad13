// Package bridge turns the independent platform notification streams into
// typed events delivered serially on one dispatch loop.
//
// The bridge holds at most one listener per category. Installing a listener
// tears down the previous one of the same category first, and an event that
// was queued for a listener that has since been replaced or removed is
// dropped rather than delivered.
package bridge

import (
	"sync"

	"github.com/go-errors/errors"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/wifi"
)

// ErrBindingUnsupported is returned for binding operations on a platform
// without any binding capability.
var ErrBindingUnsupported = errors.New("network binding is not supported")

const queueSize = 64

type Config struct {
	Platform platform.Platform
	Logger   Logger
}

type delivery struct {
	id    uint64
	event platform.Event
}

type listener struct {
	id       uint64
	category platform.Category
	sub      *platform.Subscription
	// accept filters events; a rejected event neither reaches handle nor
	// consumes a one-shot listener.
	accept  func(platform.Event) bool
	handle  func(platform.Event)
	oneShot bool
}

type Bridge struct {
	log      Logger
	radio    platform.Radio
	conn     platform.Connectivity
	notifier platform.Notifier
	binder   Binder

	queue chan delivery

	mtx       sync.Mutex
	listeners map[platform.Category]*listener
	nextID    uint64

	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func New(config *Config) *Bridge {
	b := &Bridge{
		radio:     config.Platform,
		conn:      config.Platform,
		notifier:  config.Platform,
		binder:    newBinder(config.Platform),
		queue:     make(chan delivery, queueSize),
		listeners: make(map[platform.Category]*listener),
		done:      make(chan struct{}),
	}

	if config.Logger != nil {
		b.log = config.Logger
	} else {
		b.log = noopLogger{}
	}

	b.log.Infof("Resolved network binding capability %v", config.Platform.BindingCapability())

	return b
}

// Start launches the dispatch loop.
func (b *Bridge) Start() error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.started {
		return errors.New("bridge already started")
	}

	b.started = true

	b.wg.Add(1)
	go b.run()

	return nil
}

// Stop tears down every listener and ends the dispatch loop.
func (b *Bridge) Stop() error {
	b.RemoveAll()

	b.mtx.Lock()
	started := b.started
	b.started = false
	b.mtx.Unlock()

	if !started {
		return nil
	}

	close(b.done)
	b.wg.Wait()

	return nil
}

func (b *Bridge) run() {
	defer b.wg.Done()

	for {
		select {
		case d := <-b.queue:
			b.dispatch(d)
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) dispatch(d delivery) {
	category := d.event.Category()

	b.mtx.Lock()
	l, ok := b.listeners[category]
	if !ok || l.id != d.id {
		b.mtx.Unlock()
		b.log.Debugf("Dropping stale %v event", category)
		return
	}

	if l.accept != nil && !l.accept(d.event) {
		b.mtx.Unlock()
		return
	}

	if l.oneShot {
		b.removeLocked(category)
	}
	handle := l.handle
	b.mtx.Unlock()

	handle(d.event)
}

// install registers a fresh listener for category, replacing any existing
// one. The optional replay event is delivered before anything the platform
// emits.
func (b *Bridge) install(category platform.Category, sub *platform.Subscription, l *listener, replay platform.Event) {
	b.mtx.Lock()
	b.removeLocked(category)

	b.nextID++
	l.id = b.nextID
	l.category = category
	l.sub = sub
	b.listeners[category] = l
	b.mtx.Unlock()

	b.log.Debugf("Installed %v listener %d", category, l.id)

	go b.pump(l.id, sub, replay)
}

// pump forwards the events of one subscription onto the dispatch queue,
// preserving their order.
func (b *Bridge) pump(id uint64, sub *platform.Subscription, replay platform.Event) {
	forward := func(event platform.Event) bool {
		select {
		case b.queue <- delivery{id: id, event: event}:
			return true
		case <-sub.Done:
			return false
		case <-b.done:
			return false
		}
	}

	if replay != nil && !forward(replay) {
		return
	}

	for {
		select {
		case event := <-sub.Events:
			if !forward(event) {
				return
			}
		case <-sub.Done:
			return
		case <-b.done:
			return
		}
	}
}

func (b *Bridge) subscribe(category platform.Category) (*platform.Subscription, error) {
	if category == platform.NetworkAvailability {
		return b.conn.WatchNetworks()
	}

	return b.notifier.Subscribe(category)
}

func (b *Bridge) remove(category platform.Category) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	b.removeLocked(category)
}

func (b *Bridge) removeLocked(category platform.Category) {
	l, ok := b.listeners[category]
	if !ok {
		return
	}

	delete(b.listeners, category)
	l.sub.Cancel()

	b.log.Debugf("Removed %v listener %d", category, l.id)
}

// Active reports whether a listener of category is installed.
func (b *Bridge) Active(category platform.Category) bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	_, ok := b.listeners[category]
	return ok
}

// SetRadioStateListener listens for the radio being switched on or off. The
// current state is delivered first, flagged as a replay.
func (b *Bridge) SetRadioStateListener(handle func(platform.RadioStateEvent)) error {
	b.RemoveRadioStateListener()

	// The state is read after subscribing so a transition in between is
	// either reflected by the replay or delivered after it.
	sub, err := b.subscribe(platform.RadioState)
	if err != nil {
		return errors.Errorf("could not subscribe to radio state: %v", err)
	}

	enabled, err := b.radio.Enabled()
	if err != nil {
		sub.Cancel()
		return errors.Errorf("could not query radio state: %v", err)
	}

	b.install(platform.RadioState, sub, &listener{
		handle: func(event platform.Event) {
			handle(event.(platform.RadioStateEvent))
		},
	}, platform.RadioStateEvent{Enabled: enabled, Replay: true})

	return nil
}

func (b *Bridge) RemoveRadioStateListener() {
	b.remove(platform.RadioState)
}

// SetNetworkStateListener listens for changes of the wireless link.
func (b *Bridge) SetNetworkStateListener(handle func(platform.NetworkStateEvent)) error {
	b.RemoveNetworkStateListener()

	sub, err := b.subscribe(platform.NetworkState)
	if err != nil {
		return errors.Errorf("could not subscribe to network state: %v", err)
	}

	b.install(platform.NetworkState, sub, &listener{
		handle: func(event platform.Event) {
			handle(event.(platform.NetworkStateEvent))
		},
	}, nil)

	return nil
}

func (b *Bridge) RemoveNetworkStateListener() {
	b.remove(platform.NetworkState)
}

// SetAuthErrorListener listens for credentials being rejected.
func (b *Bridge) SetAuthErrorListener(handle func(platform.AuthErrorEvent)) error {
	b.RemoveAuthErrorListener()

	sub, err := b.subscribe(platform.AuthError)
	if err != nil {
		return errors.Errorf("could not subscribe to auth errors: %v", err)
	}

	b.install(platform.AuthError, sub, &listener{
		handle: func(event platform.Event) {
			handle(event.(platform.AuthErrorEvent))
		},
	}, nil)

	return nil
}

func (b *Bridge) RemoveAuthErrorListener() {
	b.remove(platform.AuthError)
}

// SetScanResultsListener waits for the next batch of scan results. The
// listener is removed after its first delivery.
func (b *Bridge) SetScanResultsListener(handle func(platform.ScanResultsEvent)) error {
	b.RemoveScanResultsListener()

	sub, err := b.subscribe(platform.ScanResults)
	if err != nil {
		return errors.Errorf("could not subscribe to scan results: %v", err)
	}

	b.install(platform.ScanResults, sub, &listener{
		oneShot: true,
		handle: func(event platform.Event) {
			handle(event.(platform.ScanResultsEvent))
		},
	}, nil)

	return nil
}

func (b *Bridge) RemoveScanResultsListener() {
	b.remove(platform.ScanResults)
}

// WatchNetwork waits for a wireless network named ssid to become available.
// The first match is delivered and the watch is torn down.
func (b *Bridge) WatchNetwork(ssid string, handle func(*wifi.Network)) error {
	if b.binder == nil {
		return ErrBindingUnsupported
	}

	b.RemoveNetworkWatch()

	sub, err := b.subscribe(platform.NetworkAvailability)
	if err != nil {
		return errors.Errorf("could not watch networks: %v", err)
	}

	b.log.Infof("Watching for network %v", ssid)

	b.install(platform.NetworkAvailability, sub, &listener{
		oneShot: true,
		accept: func(event platform.Event) bool {
			network := event.(platform.NetworkAvailableEvent).Network
			return network != nil && wifi.SSIDEqual(network.Ssid, ssid)
		},
		handle: func(event platform.Event) {
			handle(event.(platform.NetworkAvailableEvent).Network)
		},
	}, nil)

	return nil
}

func (b *Bridge) RemoveNetworkWatch() {
	b.remove(platform.NetworkAvailability)
}

// RemoveAll tears down every listener and the network watch.
func (b *Bridge) RemoveAll() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	for category := range b.listeners {
		b.removeLocked(category)
	}
}

// BindingSupported reports whether the platform can bind this process to a
// network at all.
func (b *Bridge) BindingSupported() bool {
	return b.binder != nil
}

// BindToNetwork routes the traffic of this process through network.
func (b *Bridge) BindToNetwork(network *wifi.Network) error {
	if b.binder == nil {
		return ErrBindingUnsupported
	}

	err := b.binder.Bind(network)
	if err != nil {
		return err
	}

	b.log.Infof("Bound process to network %v", network)

	return nil
}

// ClearBinding restores the system default routing. It is a no-op when
// nothing is bound.
func (b *Bridge) ClearBinding() error {
	if b.binder == nil || b.binder.Bound() == nil {
		return nil
	}

	err := b.binder.Bind(nil)
	if err != nil {
		return err
	}

	b.log.Infof("Cleared network binding")

	return nil
}

// CurrentBinding returns the network this process is bound to, if any.
func (b *Bridge) CurrentBinding() *wifi.Network {
	if b.binder == nil {
		return nil
	}

	return b.binder.Bound()
}

// ReportBoundConnectivity tells the platform how the bound network performs.
func (b *Bridge) ReportBoundConnectivity() error {
	if b.binder == nil {
		return ErrBindingUnsupported
	}

	if b.binder.Bound() == nil {
		return nil
	}

	return b.binder.ReportConnectivity()
}
