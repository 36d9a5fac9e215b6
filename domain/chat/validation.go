package chat

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	MaxRoomNameLength = 100
	MaxMessageLength  = 4096
)

// Validation errors
var (
	ErrRoomNameEmpty   = errors.New("room name cannot be empty")
	ErrRoomNameTooLong = errors.New("room name exceeds maximum length")
	ErrRoomNameInvalid = errors.New("room name contains invalid characters")
	ErrMessageTooLong  = errors.New("message exceeds maximum length")
	ErrMessageInvalid  = errors.New("message contains invalid characters")
)

// NormalizeRoomName trims a room name and validates it.
func NormalizeRoomName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrRoomNameEmpty
	}
	if utf8.RuneCountInString(name) > MaxRoomNameLength {
		return "", ErrRoomNameTooLong
	}
	if !utf8.ValidString(name) {
		return "", ErrRoomNameInvalid
	}
	return name, nil
}

// NormalizeMessage trims a message body. An empty result with a nil error
// means the body was blank and should be ignored.
func NormalizeMessage(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", nil
	}
	if !utf8.ValidString(body) {
		return "", ErrMessageInvalid
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return "", ErrMessageTooLong
	}
	return body, nil
}
