package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxCategory identifies what a deferred message asks its consumer to do.
type OutboxCategory string

const (
	OutboxVerifyMapping            OutboxCategory = "verify_mapping"
	OutboxDeletionConfirmation     OutboxCategory = "deletion_confirmation"
	OutboxEnforce2FA               OutboxCategory = "enforce_2fa"
	OutboxEnforceEmailVerification OutboxCategory = "enforce_email_verification"
)

// OutboxMessage is a deferred message written in the same transaction as the change it announces.
type OutboxMessage struct {
	ID          uuid.UUID
	Category    OutboxCategory
	ObjectID    uuid.UUID
	Payload     json.RawMessage
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Attempts    int
}
