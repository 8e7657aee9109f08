package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrganizationStatus represents the lifecycle state of an organization.
type OrganizationStatus string

const (
	OrganizationStatusVisible            OrganizationStatus = "visible"
	OrganizationStatusPendingDeletion    OrganizationStatus = "pending_deletion"
	OrganizationStatusDeletionInProgress OrganizationStatus = "deletion_in_progress"
)

// IsDeleting returns true if the status is one of the deletion states.
func (s OrganizationStatus) IsDeleting() bool {
	return s == OrganizationStatusPendingDeletion || s == OrganizationStatusDeletionInProgress
}

// OrganizationFlags holds the independent boolean switches of an organization.
type OrganizationFlags struct {
	AllowJoinLeave           bool
	EnhancedPrivacy          bool
	DisableSharedIssues      bool
	EarlyAdopter             bool
	Require2FA               bool
	CodecovAccess            bool
	RequireEmailVerification bool
}

// Organization represents a tenant whose settings are managed.
type Organization struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	DefaultRole string
	Flags       OrganizationFlags
	Status      OrganizationStatus
	IsDefault   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Tracked field names. Flag names match their storage columns.
const (
	FieldName        = "name"
	FieldSlug        = "slug"
	FieldDefaultRole = "default_role"
	FieldStatus      = "status"

	FlagAllowJoinLeave           = "allow_joinleave"
	FlagEnhancedPrivacy          = "enhanced_privacy"
	FlagDisableSharedIssues      = "disable_shared_issues"
	FlagEarlyAdopter             = "early_adopter"
	FlagRequire2FA               = "require_2fa"
	FlagCodecovAccess            = "codecov_access"
	FlagRequireEmailVerification = "require_email_verification"
)

// FlagNames lists the flag fields in a stable order.
var FlagNames = []string{
	FlagAllowJoinLeave,
	FlagEnhancedPrivacy,
	FlagDisableSharedIssues,
	FlagEarlyAdopter,
	FlagRequire2FA,
	FlagCodecovAccess,
	FlagRequireEmailVerification,
}

// Persisted returns true once the organization has an identity.
func (o *Organization) Persisted() bool {
	return o.ID != uuid.Nil
}

// TrackedFields returns the storable fields keyed by column name.
func (o *Organization) TrackedFields() map[string]any {
	fields := map[string]any{
		FieldName:        o.Name,
		FieldSlug:        o.Slug,
		FieldDefaultRole: o.DefaultRole,
		FieldStatus:      o.Status,
	}
	for name, v := range o.Flags.Map() {
		fields[name] = v
	}
	return fields
}

// Map returns the flags keyed by column name.
func (f OrganizationFlags) Map() map[string]bool {
	return map[string]bool{
		FlagAllowJoinLeave:           f.AllowJoinLeave,
		FlagEnhancedPrivacy:          f.EnhancedPrivacy,
		FlagDisableSharedIssues:      f.DisableSharedIssues,
		FlagEarlyAdopter:             f.EarlyAdopter,
		FlagRequire2FA:               f.Require2FA,
		FlagCodecovAccess:            f.CodecovAccess,
		FlagRequireEmailVerification: f.RequireEmailVerification,
	}
}

// AuditData returns the summary recorded for status transitions.
func (o *Organization) AuditData() map[string]any {
	return map[string]any{
		"id":           o.ID.String(),
		"name":         o.Name,
		"slug":         o.Slug,
		"status":       string(o.Status),
		"default_role": o.DefaultRole,
	}
}
