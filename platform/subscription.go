package platform

import "sync"

// Subscription is a live registration against one notification category.
type Subscription struct {
	Category Category
	Events   <-chan Event
	// Done is closed once the subscription is cancelled.
	Done   <-chan struct{}
	Cancel func()
}

// Feed fans platform events out to subscriptions. Implementations of
// Notifier embed it and call Publish from their event sources.
type Feed struct {
	mtx     sync.Mutex
	nextID  uint32
	clients map[uint32]*feedClient
}

type feedClient struct {
	category Category
	events   chan Event
	done     chan struct{}
	once     sync.Once
}

// Subscribe registers a client for category. Events are buffered and never
// closed; consumers stop reading once Done is closed.
func (f *Feed) Subscribe(category Category) *Subscription {
	client := &feedClient{
		category: category,
		events:   make(chan Event, 32),
		done:     make(chan struct{}),
	}

	f.mtx.Lock()
	if f.clients == nil {
		f.clients = make(map[uint32]*feedClient)
	}
	id := f.nextID
	f.nextID++
	f.clients[id] = client
	f.mtx.Unlock()

	return &Subscription{
		Category: category,
		Events:   client.events,
		Done:     client.done,
		Cancel: func() {
			client.once.Do(func() {
				close(client.done)
			})

			f.mtx.Lock()
			delete(f.clients, id)
			f.mtx.Unlock()
		},
	}
}

// Publish delivers event to every client subscribed to its category, in
// publish order. A cancelled client is skipped.
func (f *Feed) Publish(event Event) {
	f.mtx.Lock()
	var clients []*feedClient
	for _, client := range f.clients {
		if client.category == event.Category() {
			clients = append(clients, client)
		}
	}
	f.mtx.Unlock()

	for _, client := range clients {
		select {
		case client.events <- event:
		case <-client.done:
		}
	}
}

// Subscribers counts the live clients of category.
func (f *Feed) Subscribers(category Category) int {
	f.mtx.Lock()
	defer f.mtx.Unlock()

	n := 0
	for _, client := range f.clients {
		if client.category == category {
			n++
		}
	}

	return n
}
