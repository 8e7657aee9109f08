package orgservice

import (
	"context"
	"errors"
	"fmt"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// Delete moves a visible organization to pending deletion and schedules its
// removal. When a concurrent request already moved it, the organization is
// returned together with domain.ErrOrganizationNotVisible and nothing is
// scheduled.
func (s *Service) Delete(ctx context.Context, slug string, p Principal) (_ *domain.Organization, err error) {
	ctx, span := s.startSpan(ctx, "Delete", slug)
	defer func() { endSpan(span, err) }()

	if !p.Authenticated {
		return nil, domain.ErrNotAuthenticated
	}

	org, err := s.deps.Organizations.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if org.IsDefault {
		return nil, domain.ErrDefaultOrganization
	}

	actor, err := s.resolveActor(ctx, org.ID, p)
	if err != nil {
		return nil, err
	}
	if !actor.HasScope(domain.ScopeOrgAdmin) {
		return nil, fmt.Errorf("%w: missing scope %s", domain.ErrForbidden, domain.ScopeOrgAdmin)
	}

	var scheduled *domain.ScheduledDeletion
	err = s.deps.Tx.InTx(ctx, func(q repository.Querier) error {
		moved, err := s.deps.Organizations.TransitionStatusTx(ctx, q, org.ID,
			domain.OrganizationStatusVisible, domain.OrganizationStatusPendingDeletion)
		if err != nil {
			return fmt.Errorf("failed to transition organization: %w", err)
		}
		if !moved {
			return domain.ErrOrganizationNotVisible
		}
		org.Status = domain.OrganizationStatusPendingDeletion

		scheduled, err = s.deps.Deletions.ScheduleTx(ctx, q, org.ID, s.cfg.DeletionDelay, actor.ID())
		if err != nil {
			return fmt.Errorf("failed to schedule deletion: %w", err)
		}

		guid := scheduled.GUID
		if err := s.recordAudit(ctx, q, org, actor, domain.AuditEventRemove, org.AuditData(), &guid); err != nil {
			return err
		}

		return s.enqueue(ctx, q, domain.OutboxDeletionConfirmation, org.ID, map[string]any{
			"organization_id": org.ID,
			"slug":            org.Slug,
			"name":            org.Name,
			"actor_id":        actor.ID(),
			"date_scheduled":  scheduled.DateScheduled,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrOrganizationNotVisible) {
			s.logger.InfoContext(ctx, "organization already leaving visible state", "organization_id", org.ID)
			return org, err
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "organization scheduled for deletion",
		"organization_id", org.ID,
		"slug", org.Slug,
		"date_scheduled", scheduled.DateScheduled,
	)
	return org, nil
}
