package chat

import (
	"time"
)

// Room is a named durable channel. Names are globally unique.
type Room struct {
	ID        string    `gorm:"primaryKey;type:text" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;type:text" json:"name"`
	CreatedBy string    `gorm:"not null;type:text" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for the Room entity.
func (Room) TableName() string {
	return "rooms"
}

// RoomMember records durable membership of a user in a room.
type RoomMember struct {
	RoomID   string    `gorm:"primaryKey;type:text" json:"room_id"`
	UserID   string    `gorm:"primaryKey;type:text;index" json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// TableName returns the table name for the RoomMember entity.
func (RoomMember) TableName() string {
	return "room_members"
}

// Message is an immutable chat message owned by the store.
type Message struct {
	ID         string    `gorm:"primaryKey;type:text" json:"id"`
	RoomID     string    `gorm:"not null;type:text;index:idx_messages_room_created,priority:1" json:"room_id"`
	SenderID   string    `gorm:"not null;type:text" json:"sender_id"`
	SenderName string    `gorm:"not null;type:text" json:"sender_name"`
	Body       string    `gorm:"not null;type:text" json:"body"`
	CreatedAt  time.Time `gorm:"index:idx_messages_room_created,priority:2" json:"created_at"`
}

// TableName returns the table name for the Message entity.
func (Message) TableName() string {
	return "messages"
}

// HistoryOrder selects the ordering of a history fetch.
type HistoryOrder string

const (
	// NewestFirst returns the most recent messages first.
	NewestFirst HistoryOrder = "desc"
	// OldestFirst returns the selected messages in chronological order.
	OldestFirst HistoryOrder = "asc"
)

// ParseHistoryOrder maps a query value to a HistoryOrder, defaulting to NewestFirst.
func ParseHistoryOrder(s string) HistoryOrder {
	if HistoryOrder(s) == OldestFirst {
		return OldestFirst
	}
	return NewestFirst
}
