package domain

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledDeletion is a pending deletion job for an organization.
type ScheduledDeletion struct {
	ID             uuid.UUID
	GUID           uuid.UUID
	OrganizationID uuid.UUID
	ActorID        *uuid.UUID
	DateScheduled  time.Time
	CreatedAt      time.Time
}
