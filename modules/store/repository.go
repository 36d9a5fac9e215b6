// Package store persists rooms, durable room membership and messages with GORM.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/realtime-chat/domain/chat"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the durable room, membership and message store.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository creates a new Repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
	}
}

// Migrate creates or updates the chat tables.
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&chat.Room{}, &chat.RoomMember{}, &chat.Message{})
}

// CreateRoom inserts a room and makes its creator the sole member.
func (r *Repository) CreateRoom(ctx context.Context, room *chat.Room) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&chat.Room{}).Where("name = ?", room.Name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return chat.ErrRoomExists
		}

		if err := tx.Create(room).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return chat.ErrRoomExists
			}
			return err
		}

		return tx.Create(&chat.RoomMember{
			RoomID:   room.ID,
			UserID:   room.CreatedBy,
			JoinedAt: room.CreatedAt,
		}).Error
	})
	if err != nil {
		if errors.Is(err, chat.ErrRoomExists) {
			return err
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room by ID.
func (r *Repository) GetRoom(ctx context.Context, id string) (*chat.Room, error) {
	var room chat.Room
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, chat.ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// ListRooms returns every room, oldest first.
func (r *Repository) ListRooms(ctx context.Context) ([]chat.Room, error) {
	var rooms []chat.Room
	if err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

// DeleteRoom removes a room together with its memberships and messages.
func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Delete(&chat.Room{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return chat.ErrRoomNotFound
		}
		if err := tx.Delete(&chat.RoomMember{}, "room_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&chat.Message{}, "room_id = ?", id).Error
	})
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete room: %w", err)
	}
	return nil
}

// AddMember records durable membership. It reports whether a new row was
// written; adding an existing member is a no-op.
func (r *Repository) AddMember(ctx context.Context, roomID, userID string) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := roomExists(tx, roomID); err != nil {
			return err
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&chat.RoomMember{
			RoomID:   roomID,
			UserID:   userID,
			JoinedAt: r.now(),
		})
		if result.Error != nil {
			return result.Error
		}
		added = result.RowsAffected > 0
		return nil
	})
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return false, err
		}
		return false, fmt.Errorf("failed to add member: %w", err)
	}
	return added, nil
}

// IsMember reports whether userID is a durable member of roomID.
func (r *Repository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&chat.RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// ListMembers returns the durable members of a room in join order.
func (r *Repository) ListMembers(ctx context.Context, roomID string) ([]chat.RoomMember, error) {
	var members []chat.RoomMember
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("joined_at ASC, user_id ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// CreateMessage inserts a message if its room still exists.
func (r *Repository) CreateMessage(ctx context.Context, msg *chat.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := roomExists(tx, msg.RoomID); err != nil {
			return err
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		if errors.Is(err, chat.ErrRoomNotFound) {
			return err
		}
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ListMessages returns up to limit of the most recent messages of a room.
// NewestFirst returns them newest to oldest; OldestFirst returns the same
// window in chronological order.
func (r *Repository) ListMessages(ctx context.Context, roomID string, limit int, order chat.HistoryOrder) ([]chat.Message, error) {
	var messages []chat.Message
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	if order == chat.OldestFirst {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}
	return messages, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func roomExists(tx *gorm.DB, roomID string) error {
	var count int64
	if err := tx.Model(&chat.Room{}).Where("id = ?", roomID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return chat.ErrRoomNotFound
	}
	return nil
}
