// internal/models/user.go
package models

import "github.com/google/uuid"

// User is the identity-service view of an account, as far as this core needs it.
type User struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	Coins     int       `json:"coins"`
	IsAdmin   bool      `json:"isAdmin"`
}
