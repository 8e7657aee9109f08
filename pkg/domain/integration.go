package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// IntegrationStatus represents whether an integration is usable.
type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "active"
	IntegrationStatusDisabled IntegrationStatus = "disabled"
)

// Integration is a third-party installation linked to an organization.
type Integration struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Provider       string
	ExternalID     string
	Name           string
	Status         IntegrationStatus
	Metadata       json.RawMessage
	CreatedAt      time.Time
}

// IdentityProvider is an external workspace that users link identities from.
type IdentityProvider struct {
	ID         uuid.UUID
	Type       string
	ExternalID string
}

// Identity links a user to an account in an identity provider.
type Identity struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	ProviderID   uuid.UUID
	ExternalID   string
	DateVerified *time.Time
}

// ExternalActor links a team to a channel in an integration.
type ExternalActor struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	IntegrationID  uuid.UUID
	TeamID         uuid.UUID
	Provider       string
	ExternalID     string
	ExternalName   string
}

// AuthProvider is a single sign-on configuration for an organization.
type AuthProvider struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Provider       string
	CreatedAt      time.Time
}

// Avatar types.
const (
	AvatarTypeLetter = "letter_avatar"
	AvatarTypeUpload = "upload"
)
