package orgservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

// Principal identifies the caller of an operation as established by the
// transport layer.
type Principal struct {
	UserID        uuid.UUID
	Authenticated bool
	IPAddress     string
}

// resolveActor turns a principal into an actor of the organization. Scopes
// come from the role of the caller's active membership.
func (s *Service) resolveActor(ctx context.Context, orgID uuid.UUID, p Principal) (domain.Actor, error) {
	if !p.Authenticated || p.UserID == uuid.Nil {
		return domain.Actor{}, domain.ErrNotAuthenticated
	}

	user, err := s.deps.Users.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.Actor{}, domain.ErrNotAuthenticated
		}
		return domain.Actor{}, fmt.Errorf("failed to load user: %w", err)
	}

	membership, err := s.deps.Memberships.GetByUserAndOrganization(ctx, user.ID, orgID)
	if err != nil {
		if errors.Is(err, domain.ErrMembershipNotFound) {
			return domain.Actor{}, domain.ErrForbidden
		}
		return domain.Actor{}, fmt.Errorf("failed to load membership: %w", err)
	}
	if !membership.IsActive() {
		return domain.Actor{}, domain.ErrForbidden
	}

	actor := domain.Actor{
		UserID:        user.ID,
		Authenticated: true,
		Role:          membership.Role,
		HasTwoFactor:  user.MFAEnabled,
		EmailVerified: user.EmailVerified,
		IPAddress:     p.IPAddress,
	}
	if role, ok := s.cfg.Roles.Get(membership.Role); ok {
		actor.Scopes = append([]string(nil), role.Scopes...)
	}
	return actor, nil
}
