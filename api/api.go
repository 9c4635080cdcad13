// Package api exposes the wifi manager over HTTP.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"

	"github.com/go-errors/errors"
	"github.com/gorilla/mux"
	"github.com/the-lightning-land/wifid/manager"
	"github.com/the-lightning-land/wifid/platform"
	"github.com/the-lightning-land/wifid/scan"
	"github.com/the-lightning-land/wifid/wifi"
)

// WifiManager is the part of the manager the api drives.
type WifiManager interface {
	EnableRadio() error
	RequestScan() error
	GetScanResults(filterEmpty bool, filter scan.Filter) ([]wifi.AccessPoint, error)
	ConnectWait(ctx context.Context, kind wifi.SecurityKind, ssid string, password string, bind bool) (manager.Result, error)
	Disconnect() error
	Abort()
	SetBindingEnabled(enabled bool)
	BindingEnabled() bool
	BoundNetwork() *wifi.Network
	IsWifiActive() (bool, error)
	State() manager.ConnectionState
	Pending() (string, bool)
	ListenNetworkInfo(listener manager.NetworkInfoListener) error
	RemoveNetworkInfoListener()
}

// check Manager compliance to the interface during compile time
var _ WifiManager = (*manager.Manager)(nil)

type Config struct {
	Manager WifiManager
	Logger  Logger
}

type Api struct {
	manager WifiManager
	router  *mux.Router
	log     Logger

	mtx     sync.Mutex
	clients map[uint32]*eventClient
	nextID  uint32
}

func New(config *Config) *Api {
	api := &Api{
		manager: config.Manager,
		router:  mux.NewRouter(),
		clients: make(map[uint32]*eventClient),
	}

	if config.Logger != nil {
		api.log = config.Logger
	} else {
		api.log = noopLogger{}
	}

	api.router.Handle("/api/v1/status", api.handleGetStatus()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/radio", api.handlePostRadio()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/scans", api.handlePostScan()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/networks", api.handleGetNetworks()).Methods(http.MethodGet)

	api.router.Handle("/api/v1/connections", api.handlePostConnection()).Methods(http.MethodPost)
	api.router.Handle("/api/v1/connections", api.handleDeleteConnection()).Methods(http.MethodDelete)
	api.router.Handle("/api/v1/connections/pending", api.handleDeletePending()).Methods(http.MethodDelete)

	api.router.Handle("/api/v1/binding", api.handlePutBinding()).Methods(http.MethodPut)

	api.router.Handle("/api/v1/networkinfo/events", api.handleGetNetworkInfoEvents()).Methods(http.MethodGet)

	return api
}

// ServeHTTP makes the api usable as a plain http.Handler.
func (a *Api) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

func (a *Api) Serve(l net.Listener) error {
	err := http.Serve(l, a.router)
	if err != nil {
		return errors.Errorf("Unable to serve api: %v", err)
	}

	return nil
}

// Close ends every network info stream.
func (a *Api) Close() {
	a.mtx.Lock()
	clients := a.clients
	a.clients = make(map[uint32]*eventClient)
	a.mtx.Unlock()

	for _, client := range clients {
		client.close()
	}

	if len(clients) > 0 {
		a.manager.RemoveNetworkInfoListener()
	}
}

func networkInfoEventFrom(event platform.NetworkStateEvent) *networkInfoEvent {
	res := &networkInfoEvent{
		State:  event.State.String(),
		Detail: event.Detail.String(),
	}

	if event.Network != nil {
		res.Interface = event.Network.Interface
		res.Ssid = wifi.TrimQuotes(event.Network.Ssid)
		res.Bssid = event.Network.Bssid
	}

	return res
}
