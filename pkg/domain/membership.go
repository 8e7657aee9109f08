package domain

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus represents the state of a user's membership.
type MembershipStatus string

const (
	MembershipStatusInvited   MembershipStatus = "invited"
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusSuspended MembershipStatus = "suspended"
)

// Membership represents a user's membership in an organization.
type Membership struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	UserID         uuid.UUID
	Role           string
	Status         MembershipStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// IsActive returns true if the membership is active.
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive && m.DeletedAt == nil
}
