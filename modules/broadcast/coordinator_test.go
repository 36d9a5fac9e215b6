package broadcast

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	id   string
	full bool

	mu       sync.Mutex
	payloads []Payload
}

func newRecorder(id string) *recorder {
	return &recorder{id: id}
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Deliver(p Payload) bool {
	if r.full {
		return false
	}
	r.mu.Lock()
	r.payloads = append(r.payloads, p)
	r.mu.Unlock()
	return true
}

func (r *recorder) received() []Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Payload(nil), r.payloads...)
}

func TestCoordinator_BroadcastReachesOnlyTheRoom(t *testing.T) {
	c := NewCoordinator()
	a, b, other := newRecorder("a"), newRecorder("b"), newRecorder("other")
	c.Attach("general", a)
	c.Attach("general", b)
	c.Attach("random", other)

	n := c.Broadcast("general", Payload{Type: TypeMessage, Content: "hi"})

	assert.Equal(t, 2, n)
	assert.Len(t, a.received(), 1)
	assert.Len(t, b.received(), 1)
	assert.Empty(t, other.received())
	assert.Equal(t, 0, c.Broadcast("empty", Payload{Type: TypeMessage}))
}

func TestCoordinator_BroadcastExcept(t *testing.T) {
	c := NewCoordinator()
	a, b := newRecorder("a"), newRecorder("b")
	c.Attach("general", a)
	c.Attach("general", b)

	n := c.BroadcastExcept("general", "a", System(EventUserJoined, "general", "a", "alice"))

	assert.Equal(t, 1, n)
	assert.Empty(t, a.received())
	require.Len(t, b.received(), 1)
	assert.Equal(t, TypeSystem, b.received()[0].Type)
	assert.Equal(t, EventUserJoined, b.received()[0].Event)
}

func TestCoordinator_Detach(t *testing.T) {
	c := NewCoordinator()
	a := newRecorder("a")
	c.Attach("general", a)

	assert.True(t, c.Detach("general", "a"))
	assert.False(t, c.Detach("general", "a"))
	assert.False(t, c.Detach("missing", "a"))

	c.Broadcast("general", Payload{Type: TypeMessage})
	assert.Empty(t, a.received())
}

func TestCoordinator_DetachAll(t *testing.T) {
	c := NewCoordinator()
	a, b := newRecorder("a"), newRecorder("b")
	c.Attach("general", a)
	c.Attach("general", b)

	detached := c.DetachAll("general")
	ids := make([]string, 0, len(detached))
	for _, s := range detached {
		ids = append(ids, s.ID())
	}
	sort.Strings(ids)

	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Empty(t, c.Subscribers("general"))
	assert.Nil(t, c.DetachAll("general"))
	assert.Equal(t, 0, c.Broadcast("general", Payload{Type: TypeMessage}))
}

func TestCoordinator_PerRoomOrder(t *testing.T) {
	c := NewCoordinator()
	subs := make([]*recorder, 5)
	for i := range subs {
		subs[i] = newRecorder(fmt.Sprintf("s%d", i))
		c.Attach("general", subs[i])
	}

	const perSender = 100
	var wg sync.WaitGroup
	for sender := 0; sender < 4; sender++ {
		wg.Add(1)
		go func(sender int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				c.Broadcast("general", Payload{Type: TypeMessage, UserID: fmt.Sprint(sender), Content: fmt.Sprint(i)})
			}
		}(sender)
	}
	wg.Wait()

	reference := subs[0].received()
	require.Len(t, reference, 4*perSender)
	for _, s := range subs[1:] {
		assert.Equal(t, reference, s.received(), "subscriber %s saw a different order", s.id)
	}

	// Each sender's own messages arrive in the order it broadcast them.
	next := map[string]int{}
	for _, p := range reference {
		assert.Equal(t, fmt.Sprint(next[p.UserID]), p.Content)
		next[p.UserID]++
	}
}

func TestCoordinator_RoomsDoNotBlockEachOther(t *testing.T) {
	c := NewCoordinator()
	blocker := &blockingSubscriber{id: "slow", release: make(chan struct{}), entered: make(chan struct{})}
	fast := newRecorder("fast")
	c.Attach("slow-room", blocker)
	c.Attach("fast-room", fast)

	go c.Broadcast("slow-room", Payload{Type: TypeMessage})
	<-blocker.entered

	c.Broadcast("fast-room", Payload{Type: TypeMessage})
	assert.Len(t, fast.received(), 1)
	close(blocker.release)
}

type blockingSubscriber struct {
	id      string
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSubscriber) ID() string { return b.id }

func (b *blockingSubscriber) Deliver(Payload) bool {
	close(b.entered)
	<-b.release
	return true
}

func TestCoordinator_ConnectAndBroadcastAll(t *testing.T) {
	c := NewCoordinator()
	a, b, full := newRecorder("a"), newRecorder("b"), newRecorder("full")
	full.full = true

	c.Connect(a)
	c.Connect(a)
	c.Connect(b)
	c.Connect(full)
	assert.Equal(t, 3, c.Count())

	n := c.BroadcastAll(System(EventRoomCreated, "r1", "", ""))
	assert.Equal(t, 2, n)
	delivered, dropped := c.Stats()
	assert.Equal(t, uint64(2), delivered)
	assert.Equal(t, uint64(1), dropped)

	c.Disconnect("a")
	c.Disconnect("a")
	assert.Equal(t, 2, c.Count())
}
