package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/example/realtime-chat/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastModule_LobbyNotices(t *testing.T) {
	m := NewModule()
	lobby := newRecorder("lobby")
	m.Coordinator().Connect(lobby)
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, m.handleRoomCreated(context.Background(), events.RoomCreatedEvent{
		RoomID: "r1", RoomName: "general", CreatedBy: "alice", Timestamp: ts,
	}, nil))
	require.NoError(t, m.handleRoomDeleted(context.Background(), events.RoomDeletedEvent{
		RoomID: "r1", RoomName: "general", DeletedBy: "alice", Timestamp: ts,
	}, nil))

	got := lobby.received()
	require.Len(t, got, 2)
	assert.Equal(t, EventRoomCreated, got[0].Event)
	assert.Equal(t, "general", got[0].Content)
	assert.Equal(t, ts, *got[0].Timestamp)
	assert.Equal(t, EventRoomRemoved, got[1].Event)
	assert.Equal(t, "r1", got[1].RoomID)
}

func TestBroadcastModule_EvictedSessionGetsOneRoomDeleted(t *testing.T) {
	m := NewModule()
	c := m.Coordinator()
	member := newRecorder("member")
	c.Connect(member)
	c.Attach("r1", member)

	// What the registry does on delete: detach and notify the evicted.
	for _, sub := range c.DetachAll("r1") {
		sub.Deliver(System(EventRoomDeleted, "r1", "alice", ""))
	}
	require.NoError(t, m.handleRoomDeleted(context.Background(), events.RoomDeletedEvent{
		RoomID: "r1", RoomName: "general", DeletedBy: "alice", Evicted: 1,
	}, nil))

	deleted, removed := 0, 0
	for _, p := range member.received() {
		switch p.Event {
		case EventRoomDeleted:
			deleted++
		case EventRoomRemoved:
			removed++
		}
	}
	assert.Equal(t, 1, deleted)
	assert.Equal(t, 1, removed)
}

func TestBroadcastModule_Health(t *testing.T) {
	m := NewModule()
	m.Coordinator().Connect(newRecorder("a"))

	status := m.Health(context.Background())

	assert.True(t, status.Healthy)
	assert.Equal(t, 1, status.Details["connected_sessions"])
	assert.Equal(t, "broadcast", m.Name())
}
