// Package broadcast fans payloads out to the connections subscribed to a room.
package broadcast

import (
	"sync"
	"sync/atomic"
)

// Subscriber is a live connection that can receive payloads. Deliver must
// not block; it reports false when the payload was dropped.
type Subscriber interface {
	ID() string
	Deliver(p Payload) bool
}

type roomSubscribers struct {
	mu   sync.Mutex
	subs map[string]Subscriber
}

// Coordinator tracks which subscribers are attached to which room and
// delivers payloads to them. Each room has its own lock, held while a
// payload is enqueued to every subscriber, so every subscriber sees a
// room's payloads in call order. Rooms never contend with each other.
type Coordinator struct {
	rooms sync.Map // roomID -> *roomSubscribers
	all   sync.Map // subscriberID -> Subscriber

	connected atomic.Int64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewCoordinator creates a Coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Connect registers a subscriber for lobby-wide notices.
func (c *Coordinator) Connect(s Subscriber) {
	if _, loaded := c.all.LoadOrStore(s.ID(), s); !loaded {
		c.connected.Add(1)
	}
}

// Disconnect removes a subscriber from lobby-wide notices. It does not
// detach it from its room.
func (c *Coordinator) Disconnect(id string) {
	if _, loaded := c.all.LoadAndDelete(id); loaded {
		c.connected.Add(-1)
	}
}

// Attach subscribes s to roomID.
func (c *Coordinator) Attach(roomID string, s Subscriber) {
	r := c.room(roomID)
	r.mu.Lock()
	r.subs[s.ID()] = s
	r.mu.Unlock()
}

// Detach unsubscribes id from roomID. It reports whether id was attached.
func (c *Coordinator) Detach(roomID, id string) bool {
	v, ok := c.rooms.Load(roomID)
	if !ok {
		return false
	}
	r := v.(*roomSubscribers)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[id]; !ok {
		return false
	}
	delete(r.subs, id)
	return true
}

// DetachAll unsubscribes every subscriber of roomID and forgets the room.
// The detached subscribers are returned.
func (c *Coordinator) DetachAll(roomID string) []Subscriber {
	v, ok := c.rooms.LoadAndDelete(roomID)
	if !ok {
		return nil
	}
	r := v.(*roomSubscribers)
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	r.subs = make(map[string]Subscriber)
	return out
}

// Broadcast delivers p to every subscriber attached to roomID when the call
// is made and returns the number of subscribers it reached.
func (c *Coordinator) Broadcast(roomID string, p Payload) int {
	return c.BroadcastExcept(roomID, "", p)
}

// BroadcastExcept is Broadcast skipping the subscriber with id except.
func (c *Coordinator) BroadcastExcept(roomID, except string, p Payload) int {
	v, ok := c.rooms.Load(roomID)
	if !ok {
		return 0
	}
	r := v.(*roomSubscribers)
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.subs {
		if id == except {
			continue
		}
		if c.deliver(s, p) {
			n++
		}
	}
	return n
}

// BroadcastAll delivers p to every connected subscriber, in or out of a room.
func (c *Coordinator) BroadcastAll(p Payload) int {
	n := 0
	c.all.Range(func(_, v any) bool {
		if c.deliver(v.(Subscriber), p) {
			n++
		}
		return true
	})
	return n
}

// Subscribers returns the ids attached to roomID.
func (c *Coordinator) Subscribers(roomID string) []string {
	v, ok := c.rooms.Load(roomID)
	if !ok {
		return nil
	}
	r := v.(*roomSubscribers)
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.subs))
	for id := range r.subs {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of connected subscribers.
func (c *Coordinator) Count() int {
	return int(c.connected.Load())
}

// Stats returns delivery counters.
func (c *Coordinator) Stats() (delivered, dropped uint64) {
	return c.delivered.Load(), c.dropped.Load()
}

func (c *Coordinator) room(roomID string) *roomSubscribers {
	if v, ok := c.rooms.Load(roomID); ok {
		return v.(*roomSubscribers)
	}
	v, _ := c.rooms.LoadOrStore(roomID, &roomSubscribers{subs: make(map[string]Subscriber)})
	return v.(*roomSubscribers)
}

func (c *Coordinator) deliver(s Subscriber, p Payload) bool {
	if s.Deliver(p) {
		c.delivered.Add(1)
		return true
	}
	c.dropped.Add(1)
	return false
}
