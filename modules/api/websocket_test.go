package api

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/room"
	"github.com/example/realtime-chat/modules/session"
	"github.com/example/realtime-chat/modules/store"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"
)

type liveServer struct {
	addr     string
	registry *room.Registry
}

// startLiveServer runs the full HTTP stack with a real registry and
// multiplexer on a loopback listener.
func startLiveServer(t *testing.T) *liveServer {
	t.Helper()

	db, repo, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	users := map[string]domain.Identity{
		"alice-token": {UserID: "alice-id", DisplayName: "alice"},
		"bob-token":   {UserID: "bob-id", DisplayName: "bob"},
	}
	authPort := &mockAuthPort{
		authenticateFunc: func(_ context.Context, token string) (domain.Identity, error) {
			if identity, ok := users[token]; ok {
				return identity, nil
			}
			return domain.Identity{}, domain.ErrUnauthenticated
		},
	}

	coordinator := broadcast.NewCoordinator()
	registry := room.NewRegistry(repo, coordinator, &mockLogger{})
	gateway := store.NewGateway(repo)
	mux, err := session.NewMultiplexer(authPort, registry, gateway, coordinator, &mockLogger{}, session.DefaultConfig())
	require.NoError(t, err)

	h := NewHandlers(authPort, registry, gateway, mux, &mockLogger{})
	app := newApp(h, authPort, newMetricsRegistry(registry, mux, coordinator))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = mux.Shutdown(context.Background())
		_ = app.Shutdown()
	})

	return &liveServer{addr: ln.Addr().String(), registry: registry}
}

func (s *liveServer) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.addr+"/ws?token="+token, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads payloads until one matches typ and event.
func readUntil(t *testing.T, conn *websocket.Conn, typ, event string) broadcast.Payload {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var p broadcast.Payload
		require.NoError(t, conn.ReadJSON(&p))
		if p.Type == typ && (event == "" || p.Event == event) {
			return p
		}
	}
}

func TestWebSocket_RefusesUnknownToken(t *testing.T) {
	srv := startLiveServer(t)
	conn := srv.dial(t, "stolen-token")

	p := readUntil(t, conn, broadcast.TypeError, "")
	assert.Equal(t, "unauthenticated", p.Code)

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestWebSocket_RoomConversation(t *testing.T) {
	srv := startLiveServer(t)

	general, err := srv.registry.CreateRoom(context.Background(), "general", "alice-id")
	require.NoError(t, err)

	alice := srv.dial(t, "alice-token")
	readUntil(t, alice, broadcast.TypeConnected, "")
	bob := srv.dial(t, "bob-token")
	readUntil(t, bob, broadcast.TypeConnected, "")

	require.NoError(t, alice.WriteJSON(session.Event{Kind: session.EventJoin, RoomID: general.ID}))
	readUntil(t, alice, broadcast.TypeJoined, "")

	require.NoError(t, bob.WriteJSON(session.Event{Kind: session.EventJoin, RoomID: general.ID}))
	readUntil(t, bob, broadcast.TypeJoined, "")

	joined := readUntil(t, alice, broadcast.TypeSystem, broadcast.EventUserJoined)
	assert.Equal(t, "bob-id", joined.UserID)

	require.NoError(t, alice.WriteJSON(session.Event{Kind: session.EventSend, Body: "  hi  "}))
	msg := readUntil(t, bob, broadcast.TypeMessage, "")
	assert.Equal(t, "alice-id", msg.UserID)
	assert.Equal(t, "hi", msg.Content)
	assert.NotEmpty(t, msg.MessageID)
	require.NotNil(t, msg.Timestamp)

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("not json")))
	bad := readUntil(t, bob, broadcast.TypeError, "")
	assert.Equal(t, "invalid_event", bad.Code)

	require.NoError(t, bob.Close())
	left := readUntil(t, alice, broadcast.TypeSystem, broadcast.EventUserLeft)
	assert.Equal(t, "bob-id", left.UserID)

	assert.Eventually(t, func() bool {
		return len(srv.registry.Present(general.ID)) == 1
	}, 2*time.Second, 10*time.Millisecond)
}
