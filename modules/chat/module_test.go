package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	domain "github.com/example/realtime-chat/domain/user"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/go-monolith/mono/pkg/types"
)

type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

type stubAuth struct{}

func (stubAuth) Authenticate(_ context.Context, token string) (domain.Identity, error) {
	if token == "ok" {
		return domain.Identity{UserID: "u1", DisplayName: "alice"}, nil
	}
	return domain.Identity{}, domain.ErrUnauthenticated
}

func (stubAuth) Register(context.Context, auth.RegisterRequest) (*auth.RegisterResponse, error) {
	return nil, errors.New("not implemented")
}

func (stubAuth) Login(context.Context, auth.LoginRequest) (*auth.TokenResponse, error) {
	return nil, errors.New("not implemented")
}

func (stubAuth) Refresh(context.Context, auth.RefreshRequest) (*auth.TokenResponse, error) {
	return nil, errors.New("not implemented")
}

func newTestModule(t *testing.T, dbPath string) *ChatModule {
	t.Helper()
	t.Setenv("CHAT_DB_PATH", dbPath)
	t.Setenv("CHAT_REDIS_ADDR", "")

	m := NewModule(&mockLogger{})
	m.authAdapter = stubAuth{}
	m.SetCoordinator(broadcast.NewCoordinator())
	return m
}

func TestChatModule_Name(t *testing.T) {
	m := NewModule(&mockLogger{})
	if name := m.Name(); name != "chat" {
		t.Errorf("Name() = %q, want 'chat'", name)
	}
	if deps := m.Dependencies(); len(deps) != 1 || deps[0] != "auth" {
		t.Errorf("Dependencies() = %v, want [auth]", deps)
	}
	if events := m.EmitEvents(); len(events) != 2 {
		t.Errorf("len(EmitEvents()) = %d, want 2", len(events))
	}
}

func TestChatModule_StartRequiresCollaborators(t *testing.T) {
	m := NewModule(&mockLogger{})
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() without auth should fail")
	}

	m.authAdapter = stubAuth{}
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() without coordinator should fail")
	}
}

func TestChatModule_StartFailsWhenStoreUnreachable(t *testing.T) {
	m := newTestModule(t, filepath.Join(t.TempDir(), "missing-dir", "chat.db"))

	if err := m.Start(context.Background()); err == nil {
		m.Stop(context.Background())
		t.Fatal("Start() should fail when the database cannot be opened")
	}
}

func TestChatModule_Lifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "chat.db")
	m := newTestModule(t, dbPath)
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	room, err := m.Registry().CreateRoom(ctx, "general", "u1")
	if err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}
	if _, err := m.Registry().CreateRoom(ctx, "random", "u1"); err != nil {
		t.Fatalf("CreateRoom() error = %v", err)
	}

	status := m.Health(ctx)
	if !status.Healthy {
		t.Errorf("Health() = %+v, want healthy", status)
	}
	if status.Details["active_rooms"] != 2 {
		t.Errorf("active_rooms = %v, want 2", status.Details["active_rooms"])
	}

	if err := m.Registry().DeleteRoom(ctx, room.ID, "u1"); err != nil {
		t.Fatalf("DeleteRoom() error = %v", err)
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	// Rooms survive a restart.
	m2 := newTestModule(t, dbPath)
	if err := m2.Start(ctx); err != nil {
		t.Fatalf("restart Start() error = %v", err)
	}
	defer m2.Stop(ctx)
	if n := m2.Registry().ActiveRooms(); n != 1 {
		t.Errorf("ActiveRooms() after restart = %d, want 1", n)
	}
	if _, err := m2.Registry().CreateRoom(ctx, "general", "u1"); err != nil {
		t.Errorf("name of a deleted room should be reusable: %v", err)
	}
}
