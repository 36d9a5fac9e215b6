// Package room holds the set of active rooms, durable membership and
// connection presence.
package room

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
)

// Store is the durable room and membership store.
type Store interface {
	CreateRoom(ctx context.Context, room *chat.Room) error
	ListRooms(ctx context.Context) ([]chat.Room, error)
	DeleteRoom(ctx context.Context, id string) error
	AddMember(ctx context.Context, roomID, userID string) (bool, error)
	IsMember(ctx context.Context, roomID, userID string) (bool, error)
	ListMembers(ctx context.Context, roomID string) ([]chat.RoomMember, error)
}

// Fanout is the broadcast path the registry attaches connections to.
type Fanout interface {
	Attach(roomID string, s broadcast.Subscriber)
	Detach(roomID, id string) bool
	DetachAll(roomID string) []broadcast.Subscriber
	Broadcast(roomID string, p broadcast.Payload) int
	BroadcastExcept(roomID, except string, p broadcast.Payload) int
}

// Member is a live connection that can be present in a room.
type Member interface {
	broadcast.Subscriber
	Identity() user.Identity
}

// Observer is told about rooms being created and deleted.
type Observer interface {
	RoomCreated(ctx context.Context, room chat.Room)
	RoomDeleted(ctx context.Context, room chat.Room, deletedBy string, evicted int)
}

type roomState struct {
	mu      sync.Mutex
	room    chat.Room
	present map[string]user.Identity // connID -> identity
	deleted bool
}

// Registry is the authoritative set of active rooms. Presence changes are
// serialized per room; rooms never share a lock. Store calls are made
// without holding any room lock.
type Registry struct {
	store    Store
	fanout   Fanout
	logger   types.Logger
	observer Observer

	rooms    sync.Map // roomID -> *roomState
	presence sync.Map // connID -> roomID
}

// NewRegistry creates a Registry.
func NewRegistry(store Store, fanout Fanout, logger types.Logger) *Registry {
	return &Registry{
		store:  store,
		fanout: fanout,
		logger: logger,
	}
}

// SetObserver sets the observer notified of room creation and deletion.
// It must be called before the registry is used.
func (r *Registry) SetObserver(o Observer) {
	r.observer = o
}

// Load fills the active set from the store.
func (r *Registry) Load(ctx context.Context) error {
	rooms, err := r.store.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	for _, room := range rooms {
		r.rooms.Store(room.ID, newRoomState(room))
	}
	r.logger.Info("Rooms loaded", "count", len(rooms))
	return nil
}

// CreateRoom persists a new room with creatorID as its sole member.
func (r *Registry) CreateRoom(ctx context.Context, name, creatorID string) (*chat.Room, error) {
	name, err := chat.NormalizeRoomName(name)
	if err != nil {
		return nil, err
	}

	room := chat.Room{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRoom(ctx, &room); err != nil {
		if errors.Is(err, chat.ErrRoomExists) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}

	r.rooms.Store(room.ID, newRoomState(room))
	r.logger.Info("Room created", "roomID", room.ID, "name", room.Name, "createdBy", creatorID)

	if r.observer != nil {
		r.observer.RoomCreated(ctx, room)
	}
	return &room, nil
}

// ListRooms returns all durable rooms.
func (r *Registry) ListRooms(ctx context.Context) ([]chat.Room, error) {
	rooms, err := r.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}
	return rooms, nil
}

// GetRoom returns an active room.
func (r *Registry) GetRoom(_ context.Context, roomID string) (*chat.Room, error) {
	rs, ok := r.lookup(roomID)
	if !ok {
		return nil, chat.ErrRoomNotFound
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.deleted {
		return nil, chat.ErrRoomNotFound
	}
	room := rs.room
	return &room, nil
}

// Members returns the durable members of a room.
func (r *Registry) Members(ctx context.Context, roomID string) ([]chat.RoomMember, error) {
	if _, err := r.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	members, err := r.store.ListMembers(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}
	return members, nil
}

// Present returns the identities of the connections currently in a room,
// one entry per connection.
func (r *Registry) Present(roomID string) []user.Identity {
	rs, ok := r.lookup(roomID)
	if !ok {
		return nil
	}
	rs.mu.Lock()
	out := make([]user.Identity, 0, len(rs.present))
	for _, id := range rs.present {
		out = append(out, id)
	}
	rs.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName != out[j].DisplayName {
			return out[i].DisplayName < out[j].DisplayName
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// RoomOf returns the room a connection is in.
func (r *Registry) RoomOf(connID string) (string, bool) {
	v, ok := r.presence.Load(connID)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// DeleteRoom removes a room. Any durable member may delete it. Connections
// in the room are detached and sent a room_deleted notification.
func (r *Registry) DeleteRoom(ctx context.Context, roomID, requesterID string) error {
	if _, ok := r.lookup(roomID); !ok {
		return chat.ErrRoomNotFound
	}

	member, err := r.store.IsMember(ctx, roomID, requesterID)
	if err != nil {
		return fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}
	if !member {
		return chat.ErrNotMember
	}

	if err := r.store.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}

	rs, ok := r.lookup(roomID)
	if !ok {
		// Deleted concurrently; the other caller evicted.
		return nil
	}

	rs.mu.Lock()
	rs.deleted = true
	for connID := range rs.present {
		r.presence.CompareAndDelete(connID, roomID)
	}
	rs.present = nil
	evicted := r.fanout.DetachAll(roomID)
	notice := broadcast.System(broadcast.EventRoomDeleted, roomID, requesterID, "")
	notice.Content = rs.room.Name
	for _, s := range evicted {
		s.Deliver(notice)
	}
	room := rs.room
	rs.mu.Unlock()

	r.rooms.CompareAndDelete(roomID, rs)
	r.logger.Info("Room deleted", "roomID", roomID, "name", room.Name, "deletedBy", requesterID, "evicted", len(evicted))

	if r.observer != nil {
		r.observer.RoomDeleted(ctx, room, requesterID, len(evicted))
	}
	return nil
}

// Join subscribes m to roomID, adding durable membership if missing. If m
// is in another room it leaves that room first; the old room is told about
// the leave before the new room is told about the join. Joining the room m
// is already in is a no-op.
func (r *Registry) Join(ctx context.Context, m Member, roomID string) (*chat.Room, error) {
	rs, ok := r.lookup(roomID)
	if !ok {
		return nil, chat.ErrRoomNotFound
	}
	identity := m.Identity()

	if current, ok := r.RoomOf(m.ID()); ok && current == roomID {
		return r.GetRoom(ctx, roomID)
	}

	if _, err := r.store.AddMember(ctx, roomID, identity.UserID); err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}

	for {
		oldID, _ := r.RoomOf(m.ID())
		var old *roomState
		if oldID != "" && oldID != roomID {
			if old, ok = r.lookup(oldID); !ok {
				r.presence.CompareAndDelete(m.ID(), oldID)
				continue
			}
		}

		unlock := lockPair(rs, old)
		if current, _ := r.RoomOf(m.ID()); current != oldID {
			unlock()
			continue
		}
		if rs.deleted {
			unlock()
			return nil, chat.ErrRoomNotFound
		}

		if old != nil {
			r.detachLocked(old, m)
		}
		if oldID != roomID {
			rs.present[m.ID()] = identity
			r.fanout.Attach(roomID, m)
			r.presence.Store(m.ID(), roomID)
			r.fanout.BroadcastExcept(roomID, m.ID(),
				broadcast.System(broadcast.EventUserJoined, roomID, identity.UserID, identity.DisplayName))
		}
		room := rs.room
		unlock()

		r.logger.Debug("Joined room", "connID", m.ID(), "userID", identity.UserID, "roomID", roomID, "from", oldID)
		return &room, nil
	}
}

// Leave removes m from roomID. An empty roomID means the current room.
// It fails with ErrNotInRoom if m is not in that room.
func (r *Registry) Leave(m Member, roomID string) error {
	for {
		current, ok := r.RoomOf(m.ID())
		if !ok || (roomID != "" && current != roomID) {
			return chat.ErrNotInRoom
		}

		rs, ok := r.lookup(current)
		if !ok {
			r.presence.CompareAndDelete(m.ID(), current)
			continue
		}

		rs.mu.Lock()
		if now, _ := r.RoomOf(m.ID()); now != current {
			rs.mu.Unlock()
			continue
		}
		r.detachLocked(rs, m)
		rs.mu.Unlock()

		r.logger.Debug("Left room", "connID", m.ID(), "userID", m.Identity().UserID, "roomID", current)
		return nil
	}
}

// Disconnect removes m from whatever room it is in. It reports whether m
// was in a room.
func (r *Registry) Disconnect(m Member) bool {
	return r.Leave(m, "") == nil
}

// ActiveRooms returns the number of active rooms.
func (r *Registry) ActiveRooms() int {
	n := 0
	r.rooms.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// detachLocked removes m from rs and tells the rest of the room. rs.mu must
// be held.
func (r *Registry) detachLocked(rs *roomState, m Member) {
	identity := m.Identity()
	roomID := rs.room.ID

	delete(rs.present, m.ID())
	r.fanout.Detach(roomID, m.ID())
	r.presence.CompareAndDelete(m.ID(), roomID)
	r.fanout.Broadcast(roomID,
		broadcast.System(broadcast.EventUserLeft, roomID, identity.UserID, identity.DisplayName))
}

func (r *Registry) lookup(roomID string) (*roomState, bool) {
	v, ok := r.rooms.Load(roomID)
	if !ok {
		return nil, false
	}
	return v.(*roomState), true
}

func newRoomState(room chat.Room) *roomState {
	return &roomState{
		room:    room,
		present: make(map[string]user.Identity),
	}
}

// lockPair locks a and b in room id order. b may be nil.
func lockPair(a, b *roomState) func() {
	if b == nil || b == a {
		a.mu.Lock()
		return a.mu.Unlock
	}
	first, second := a, b
	if b.room.ID < a.room.ID {
		first, second = b, a
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}
