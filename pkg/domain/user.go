package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is the account behind an actor.
type User struct {
	ID            uuid.UUID
	Email         string
	EmailVerified bool
	Name          *string
	MFAEnabled    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	DeletedAt     *time.Time
}

// UserPassword stores password credentials separately from user profile.
type UserPassword struct {
	UserID            uuid.UUID
	PasswordHash      string
	PasswordUpdatedAt time.Time
}
