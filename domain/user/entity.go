package user

import (
	"errors"
	"time"
)

// ErrUnauthenticated is returned when a credential is missing, malformed,
// expired, or refers to a user that no longer exists.
var ErrUnauthenticated = errors.New("unauthenticated")

// User represents a registered chat user.
type User struct {
	ID           string `gorm:"primaryKey;type:text"`
	Username     string `gorm:"uniqueIndex;not null;type:text"`
	Email        string `gorm:"uniqueIndex;not null;type:text"`
	PasswordHash string `gorm:"not null;type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for the User entity.
func (User) TableName() string {
	return "users"
}

// Identity is the immutable reference a connection holds for its user.
// It is resolved once, when the connection authenticates.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// IdentityOf returns the identity of a stored user.
func IdentityOf(u *User) Identity {
	return Identity{UserID: u.ID, DisplayName: u.Username}
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
