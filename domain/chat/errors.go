package chat

import "errors"

// Sentinel errors for room and message operations.
var (
	// ErrRoomNotFound is returned when a room id does not exist.
	ErrRoomNotFound = errors.New("room not found")

	// ErrRoomExists is returned when a room name is already taken.
	ErrRoomExists = errors.New("room with this name already exists")

	// ErrNotInRoom is returned when a connection sends a message without
	// being subscribed to a room.
	ErrNotInRoom = errors.New("connection is not in a room")

	// ErrNotMember is returned when a non-member tries to delete a room.
	ErrNotMember = errors.New("only room members may delete the room")

	// ErrPersistence is returned when a durable read or write fails.
	ErrPersistence = errors.New("persistence failure")
)
