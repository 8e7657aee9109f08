package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Scope names checked by the engine.
const (
	ScopeOrgRead  = "org:read"
	ScopeOrgWrite = "org:write"
	ScopeOrgAdmin = "org:admin"
)

// Actor is the caller of an engine operation.
type Actor struct {
	UserID        uuid.UUID
	Authenticated bool
	Scopes        []string
	Role          string
	HasTwoFactor  bool
	EmailVerified bool
	IPAddress     string
}

// HasScope returns true if the actor was granted scope.
func (a Actor) HasScope(scope string) bool {
	return slices.Contains(a.Scopes, scope)
}

// IsOwner returns true if the actor may change owner-only settings.
func (a Actor) IsOwner() bool {
	return a.HasScope(ScopeOrgAdmin)
}

// ID returns the actor's user ID, or nil when unauthenticated.
func (a Actor) ID() *uuid.UUID {
	if !a.Authenticated || a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
