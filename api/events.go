package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/the-lightning-land/wifid/platform"
)

const (
	eventBuffer  = 16
	pingInterval = 54 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
)

type networkInfoEvent struct {
	State     string `json:"state"`
	Detail    string `json:"detail"`
	Interface string `json:"interface,omitempty"`
	Ssid      string `json:"ssid,omitempty"`
	Bssid     string `json:"bssid,omitempty"`
}

type eventClient struct {
	id     uint32
	events chan *networkInfoEvent
	done   chan struct{}
	once   sync.Once
}

func (c *eventClient) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// subscribe registers a network info stream. The first stream makes the
// api listen to the manager.
func (a *Api) subscribe() (*eventClient, error) {
	a.mtx.Lock()
	defer a.mtx.Unlock()

	if len(a.clients) == 0 {
		err := a.manager.ListenNetworkInfo(a.broadcast)
		if err != nil {
			return nil, err
		}
	}

	client := &eventClient{
		id:     a.nextID,
		events: make(chan *networkInfoEvent, eventBuffer),
		done:   make(chan struct{}),
	}

	a.nextID++
	a.clients[client.id] = client

	return client, nil
}

func (a *Api) unsubscribe(client *eventClient) {
	client.close()

	a.mtx.Lock()
	defer a.mtx.Unlock()

	if _, ok := a.clients[client.id]; !ok {
		return
	}

	delete(a.clients, client.id)

	if len(a.clients) == 0 {
		a.manager.RemoveNetworkInfoListener()
	}
}

func (a *Api) broadcast(event platform.NetworkStateEvent) {
	res := networkInfoEventFrom(event)

	a.mtx.Lock()
	defer a.mtx.Unlock()

	for _, client := range a.clients {
		select {
		case client.events <- res:
		default:
			a.log.Warnf("Dropping network info event for slow client %d", client.id)
		}
	}
}

func (a *Api) handleGetNetworkInfoEvents() http.HandlerFunc {
	upgrader := &websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		client, err := a.subscribe()
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		defer a.unsubscribe(client)

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.log.Errorf("Could not upgrade connection: %v", err)
			return
		}

		defer c.Close()

		// read pump
		go func() {
			defer client.close()

			c.SetReadLimit(512)
			_ = c.SetReadDeadline(time.Now().Add(pongWait))
			c.SetPongHandler(func(string) error {
				return c.SetReadDeadline(time.Now().Add(pongWait))
			})

			for {
				_, _, err := c.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						a.log.Errorf("unexpected websocket closure: %v", err)
					}
					return
				}
			}
		}()

		// write pump
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()

		for {
			select {
			case event := <-client.events:
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))

				err := c.WriteJSON(event)
				if err != nil {
					return
				}
			case <-ticker.C:
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))

				err := c.WriteMessage(websocket.PingMessage, nil)
				if err != nil {
					return
				}
			case <-client.done:
				_ = c.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}
