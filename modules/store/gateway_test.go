package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/domain/user"
)

func TestGateway_StoreMessage(t *testing.T) {
	repo := setupTestRepo(t)
	createTestRoom(t, repo, "room-1", "general", "alice")
	gw := NewGateway(repo)
	ctx := context.Background()
	alice := user.Identity{UserID: "alice", DisplayName: "Alice"}

	msg, err := gw.StoreMessage(ctx, "room-1", alice, "hi")
	if err != nil {
		t.Fatalf("StoreMessage() error = %v", err)
	}
	if msg.ID == "" || msg.CreatedAt.IsZero() {
		t.Errorf("StoreMessage() did not assign id/timestamp: %+v", msg)
	}
	if msg.SenderID != "alice" || msg.SenderName != "Alice" || msg.Body != "hi" {
		t.Errorf("StoreMessage() = %+v", msg)
	}

	history, err := gw.FetchHistory(ctx, "room-1", 10, chat.NewestFirst)
	if err != nil {
		t.Fatalf("FetchHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].ID != msg.ID {
		t.Errorf("FetchHistory() = %+v, want stored message", history)
	}

	if _, err := gw.StoreMessage(ctx, "missing", alice, "hi"); !errors.Is(err, chat.ErrRoomNotFound) {
		t.Errorf("StoreMessage(missing room) error = %v, want %v", err, chat.ErrRoomNotFound)
	}
}

func TestGateway_FetchHistoryOrder(t *testing.T) {
	repo := setupTestRepo(t)
	createTestRoom(t, repo, "room-1", "general", "alice")
	gw := NewGateway(repo)
	ctx := context.Background()
	alice := user.Identity{UserID: "alice", DisplayName: "alice"}

	for i := 1; i <= 5; i++ {
		if _, err := gw.StoreMessage(ctx, "room-1", alice, fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("StoreMessage() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		limit int
		order chat.HistoryOrder
		want  []string
	}{
		{name: "newest first", limit: 3, order: chat.NewestFirst, want: []string{"msg-5", "msg-4", "msg-3"}},
		{name: "oldest first keeps latest window", limit: 3, order: chat.OldestFirst, want: []string{"msg-3", "msg-4", "msg-5"}},
		{name: "default limit", limit: 0, order: chat.OldestFirst, want: []string{"msg-1", "msg-2", "msg-3", "msg-4", "msg-5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := gw.FetchHistory(ctx, "room-1", tt.limit, tt.order)
			if err != nil {
				t.Fatalf("FetchHistory() error = %v", err)
			}
			if len(history) != len(tt.want) {
				t.Fatalf("len(history) = %d, want %d", len(history), len(tt.want))
			}
			for i, body := range tt.want {
				if history[i].Body != body {
					t.Errorf("history[%d] = %q, want %q", i, history[i].Body, body)
				}
			}
		})
	}
}

func TestGateway_PersistenceFailure(t *testing.T) {
	repo := setupTestRepo(t)
	createTestRoom(t, repo, "room-1", "general", "alice")
	gw := NewGateway(repo)

	sqlDB, err := repo.db.DB()
	if err != nil {
		t.Fatalf("DB() error = %v", err)
	}
	sqlDB.Close()

	_, err = gw.StoreMessage(context.Background(), "room-1", user.Identity{UserID: "alice"}, "hi")
	if !errors.Is(err, chat.ErrPersistence) {
		t.Errorf("StoreMessage() error = %v, want %v", err, chat.ErrPersistence)
	}
	_, err = gw.FetchHistory(context.Background(), "room-1", 10, chat.NewestFirst)
	if !errors.Is(err, chat.ErrPersistence) {
		t.Errorf("FetchHistory() error = %v, want %v", err, chat.ErrPersistence)
	}
}

func TestClampHistoryLimit(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: -1, want: DefaultHistoryLimit},
		{in: 0, want: DefaultHistoryLimit},
		{in: 10, want: 10},
		{in: MaxHistoryLimit, want: MaxHistoryLimit},
		{in: MaxHistoryLimit + 1, want: MaxHistoryLimit},
	}
	for _, tt := range tests {
		if got := ClampHistoryLimit(tt.in); got != tt.want {
			t.Errorf("ClampHistoryLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
