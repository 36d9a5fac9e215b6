package broadcast

import (
	"encoding/json"
	"time"
)

// Payload types sent to websocket clients.
const (
	TypeMessage   = "message"
	TypeSystem    = "system"
	TypeError     = "error"
	TypeConnected = "connected"
	TypeJoined    = "joined"
	TypeLeft      = "left"
	TypeHistory   = "history"
	TypeMembers   = "members"
	TypeRooms     = "rooms"
)

// System notification events, carried in Payload.Event when Type is TypeSystem.
const (
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventRoomDeleted = "room_deleted"
	EventRoomCreated = "room_created"
	// EventRoomRemoved is the lobby notice for a deleted room. Connections
	// that were in the room get EventRoomDeleted instead.
	EventRoomRemoved = "room_removed"
)

// Payload is the structure sent to websocket clients. Chat messages and
// system notifications share it so they travel the same path.
type Payload struct {
	Type      string          `json:"type"`
	Event     string          `json:"event,omitempty"`
	RoomID    string          `json:"room_id,omitempty"`
	MessageID string          `json:"message_id,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Username  string          `json:"username,omitempty"`
	Content   string          `json:"content,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// System builds a system notification for a room.
func System(event, roomID, userID, username string) Payload {
	now := time.Now().UTC()
	return Payload{
		Type:      TypeSystem,
		Event:     event,
		RoomID:    roomID,
		UserID:    userID,
		Username:  username,
		Timestamp: &now,
	}
}

// Error builds an error payload addressed to a single connection.
func Error(code, message string) Payload {
	return Payload{Type: TypeError, Code: code, Error: message}
}

// WithData returns p carrying v as its JSON data.
func WithData(p Payload, v any) (Payload, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return p, err
	}
	p.Data = data
	return p, nil
}
