// Package connectivity checks whether a network actually reaches the
// internet by fetching a probe URL through it.
package connectivity

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-errors/errors"
)

const defaultTimeout = 10 * time.Second

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	switch s {
	case Offline:
		return "OFFLINE"
	case Online:
		return "ONLINE"
	default:
		return "INVALID STATE"
	}
}

// DialFunc opens the connections of a probe.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

type Config struct {
	URL string
	// Dial defaults to a plain dialer.
	Dial    DialFunc
	Timeout time.Duration
	Logger  Logger
}

type Reporter struct {
	log    Logger
	url    string
	client *http.Client

	mtx     sync.Mutex
	state   State
	changed chan struct{}
}

func NewReporter(config *Config) *Reporter {
	r := &Reporter{
		url:     config.URL,
		state:   Offline,
		changed: make(chan struct{}),
	}

	if config.Logger != nil {
		r.log = config.Logger
	} else {
		r.log = noopLogger{}
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{}
	if config.Dial != nil {
		transport.DialContext = config.Dial
	}

	r.client = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		// the answer of the probe itself counts, not where it points to
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	return r
}

// Check fetches the probe URL and records the outcome. Any answer below 400
// counts as online.
func (r *Reporter) Check(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return Offline, errors.Errorf("could not create probe request: %v", err)
	}

	state := Offline

	resp, err := r.client.Do(req)
	if err != nil {
		r.set(state)
		return state, errors.Errorf("could not reach %v: %v", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusBadRequest {
		state = Online
	}

	r.log.Debugf("Probe of %v answered %v", r.url, resp.Status)
	r.set(state)

	return state, nil
}

func (r *Reporter) set(state State) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.state == state {
		return
	}

	r.log.Infof("Connectivity changed from %v to %v", r.state, state)

	r.state = state
	close(r.changed)
	r.changed = make(chan struct{})
}

func (r *Reporter) CurrentState() State {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.state
}

// WaitForStateChange blocks until the state differs from state. It returns
// false when ctx ends first.
func (r *Reporter) WaitForStateChange(ctx context.Context, state State) bool {
	for {
		r.mtx.Lock()
		current, changed := r.state, r.changed
		r.mtx.Unlock()

		if current != state {
			return true
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return false
		}
	}
}
