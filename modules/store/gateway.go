package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/domain/user"
	"github.com/google/uuid"
)

// History limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Gateway stores and reads messages on behalf of the session core. It
// assigns message ids and timestamps; timestamps are strictly increasing so
// history order matches write order.
type Gateway struct {
	repo *Repository

	mu   sync.Mutex
	last time.Time
}

// NewGateway creates a Gateway over a Repository.
func NewGateway(repo *Repository) *Gateway {
	return &Gateway{repo: repo}
}

// StoreMessage durably stores a message and returns it with its
// server-assigned id and timestamp.
func (g *Gateway) StoreMessage(ctx context.Context, roomID string, sender user.Identity, body string) (*chat.Message, error) {
	msg := &chat.Message{
		ID:         uuid.New().String(),
		RoomID:     roomID,
		SenderID:   sender.UserID,
		SenderName: sender.DisplayName,
		Body:       body,
		CreatedAt:  g.timestamp(),
	}

	if err := g.repo.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}
	return msg, nil
}

// FetchHistory returns up to limit recent messages of a room in the given order.
func (g *Gateway) FetchHistory(ctx context.Context, roomID string, limit int, order chat.HistoryOrder) ([]chat.Message, error) {
	messages, err := g.repo.ListMessages(ctx, roomID, ClampHistoryLimit(limit), order)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", chat.ErrPersistence, err)
	}
	return messages, nil
}

// ClampHistoryLimit maps non-positive limits to DefaultHistoryLimit and caps
// the rest at MaxHistoryLimit.
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

func (g *Gateway) timestamp() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(g.last) {
		now = g.last.Add(time.Microsecond)
	}
	g.last = now
	return now
}
