package domain

import (
	"time"

	"github.com/google/uuid"
)

// MFAMethod represents the type of MFA method
type MFAMethod string

const (
	// MFAMethodTOTP represents Time-based One-Time Password authentication
	MFAMethodTOTP MFAMethod = "totp"
)

// MFASecret represents an encrypted MFA secret for a user
type MFASecret struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Method          MFAMethod
	SecretEncrypted string // AES-256-GCM encrypted TOTP secret
	CreatedAt       time.Time
	LastUsedAt      *time.Time
}
