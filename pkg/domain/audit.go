package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEvent identifies the kind of audit log entry.
type AuditEvent string

const (
	AuditEventEdit    AuditEvent = "org.edit"
	AuditEventRestore AuditEvent = "org.restore"
	AuditEventRemove  AuditEvent = "org.remove"
)

// AuditEntry records one mutating operation against an organization.
type AuditEntry struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ActorID        *uuid.UUID
	Event          AuditEvent
	TargetObject   uuid.UUID
	Data           map[string]any
	TransactionID  *uuid.UUID
	IPAddress      string
	CreatedAt      time.Time
}
