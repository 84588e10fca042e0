package dialogue

import (
	"context"
	"slices"
	"sync"
)

// Channel is the contract transports implement. Send is at-most-once: it
// never retries. Callbacks are delivered in the order the service emitted
// them.
type Channel interface {
	Send(ctx context.Context, message Message) error
	Subscribe(callbacks Callbacks) (unsubscribe func())
}

type Callbacks struct {
	OnResponse     func(Response)
	OnServiceError func(message string)
	OnConnected    func()
	OnDisconnected func()
}

func (c Callbacks) response(response Response) {
	if c.OnResponse != nil {
		c.OnResponse(response)
	}
}

func (c Callbacks) serviceError(message string) {
	if c.OnServiceError != nil {
		c.OnServiceError(message)
	}
}

func (c Callbacks) connected() {
	if c.OnConnected != nil {
		c.OnConnected()
	}
}

func (c Callbacks) disconnected() {
	if c.OnDisconnected != nil {
		c.OnDisconnected()
	}
}

// Subscribers fans channel events out to every subscriber. Transports embed
// it to implement Subscribe.
type Subscribers struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscriber

	connected bool
}

type subscriber struct {
	id        int
	callbacks Callbacks
}

// Subscribe registers callbacks. Subscribers joining an already connected
// channel are told so immediately.
func (s *Subscribers) Subscribe(callbacks Callbacks) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, callbacks: callbacks})
	connected := s.connected
	s.mu.Unlock()

	if connected {
		callbacks.connected()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
		})
	}
}

func (s *Subscribers) snapshot() []Callbacks {
	s.mu.RLock()
	defer s.mu.RUnlock()

	callbacks := make([]Callbacks, len(s.subs))
	for i, sub := range s.subs {
		callbacks[i] = sub.callbacks
	}
	return callbacks
}

func (s *Subscribers) Frame(frame InboundFrame) {
	for _, callbacks := range s.snapshot() {
		frame.Dispatch(callbacks)
	}
}

func (s *Subscribers) Connected() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	for _, callbacks := range s.snapshot() {
		callbacks.connected()
	}
}

func (s *Subscribers) Disconnected() {
	s.mu.Lock()
	wasConnected := s.connected
	s.connected = false
	s.mu.Unlock()

	if !wasConnected {
		return
	}
	for _, callbacks := range s.snapshot() {
		callbacks.disconnected()
	}
}

func (s *Subscribers) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}
