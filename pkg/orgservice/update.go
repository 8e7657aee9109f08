package orgservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/changetrack"
	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// UpdateResult is the outcome of a committed update.
type UpdateResult struct {
	Organization *domain.Organization
	Changes      domain.ChangeSet
	Restored     bool
}

// mappingChange records what the mapping service must be told after commit.
type mappingChange struct {
	slugChanged bool
	nameChanged bool
}

// Update validates req and applies it to the organization identified by slug.
// Either every field and option is persisted or none is.
func (s *Service) Update(ctx context.Context, slug string, p Principal, req *orgsettings.UpdateRequest) (_ *UpdateResult, err error) {
	ctx, span := s.startSpan(ctx, "Update", slug)
	defer func() { endSpan(span, err) }()

	org, actor, err := s.loadOrganization(ctx, slug, p, domain.ScopeOrgWrite)
	if err != nil {
		return nil, err
	}

	if fields := req.OwnerOnlyFields(); len(fields) > 0 && !actor.IsOwner() {
		return nil, fmt.Errorf("%w: owner privileges required for %v", domain.ErrForbidden, fields)
	}

	pc, err := s.policyContext(ctx, org, actor, req)
	if err != nil {
		return nil, err
	}
	if err := orgsettings.Validate(req, pc); err != nil {
		return nil, err
	}

	var avatar []byte
	if req.Avatar != nil && *req.Avatar != "" {
		avatar, err = orgsettings.DecodeAvatar(*req.Avatar)
		if err != nil {
			verr := domain.NewValidationError()
			verr.Add("avatar", orgsettings.ErrMsgInvalidImage)
			return nil, verr
		}
	}

	result := &UpdateResult{}
	var mapping mappingChange

	err = s.deps.Tx.InTx(ctx, func(q repository.Querier) error {
		current, err := s.deps.Organizations.GetForUpdateTx(ctx, q, org.ID)
		if err != nil {
			return err
		}
		snap := changetrack.Take(current)

		if req.CancelDeletion != nil && *req.CancelDeletion && current.Status == domain.OrganizationStatusPendingDeletion {
			restored, err := s.deps.Organizations.TransitionStatusTx(ctx, q, current.ID,
				domain.OrganizationStatusPendingDeletion, domain.OrganizationStatusVisible)
			if err != nil {
				return fmt.Errorf("failed to restore organization: %w", err)
			}
			if restored {
				current.Status = domain.OrganizationStatusVisible
				if err := s.deps.Deletions.CancelTx(ctx, q, current.ID); err != nil {
					return fmt.Errorf("failed to cancel scheduled deletion: %w", err)
				}
				result.Restored = true
			}
		}

		changes, err := s.applier.Apply(ctx, orgsettings.Target{
			Organization: current,
			Snapshot:     snap,
			Options:      txOptions{repo: s.deps.Options, q: q},
			Capabilities: pc.Capabilities,
		}, req)
		if err != nil {
			return err
		}

		if err := s.saveAvatar(ctx, q, current, req, avatar); err != nil {
			return err
		}

		if err := s.deps.Organizations.UpdateTx(ctx, q, current); err != nil {
			if constraint, ok := repository.UniqueViolation(err); ok {
				return &domain.ConflictError{Field: "slug", Message: ConflictSlugMessage, Err: fmt.Errorf("constraint %s: %w", constraint, err)}
			}
			return fmt.Errorf("failed to update organization: %w", err)
		}

		mapping = mappingChange{
			slugChanged: snap.HasChanged(current, domain.FieldSlug),
			nameChanged: snap.HasChanged(current, domain.FieldName),
		}
		if err := s.enqueueUpdateMessages(ctx, q, current, snap, mapping); err != nil {
			return err
		}

		if err := s.recordUpdateAudit(ctx, q, current, actor, changes, result.Restored); err != nil {
			return err
		}

		result.Organization = current
		result.Changes = changes
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "organization updated",
		"organization_id", result.Organization.ID,
		"slug", result.Organization.Slug,
		"changed_fields", result.Changes.Fields(),
		"restored", result.Restored,
	)

	s.syncMapping(ctx, result.Organization, actor, req, mapping)
	return result, nil
}

func (s *Service) saveAvatar(ctx context.Context, q repository.Querier, org *domain.Organization, req *orgsettings.UpdateRequest, image []byte) error {
	if s.deps.Avatars == nil || (req.AvatarType == nil && image == nil) {
		return nil
	}

	avatarType := domain.AvatarTypeUpload
	if req.AvatarType != nil {
		avatarType = *req.AvatarType
	}

	var fileName string
	if image != nil {
		fileName = fmt.Sprintf("%s.png", org.Slug)
	}
	if err := s.deps.Avatars.SaveTx(ctx, q, org.ID, avatarType, image, fileName); err != nil {
		return fmt.Errorf("failed to save avatar: %w", err)
	}
	return nil
}

func (s *Service) enqueueUpdateMessages(ctx context.Context, q repository.Querier, org *domain.Organization, snap changetrack.Snapshot, mapping mappingChange) error {
	if mapping.slugChanged || mapping.nameChanged {
		payload := map[string]any{"organization_id": org.ID, "slug": org.Slug, "name": org.Name}
		if err := s.enqueue(ctx, q, domain.OutboxVerifyMapping, org.ID, payload); err != nil {
			return err
		}
	}

	if org.Flags.Require2FA && snap.HasChanged(org, domain.FlagRequire2FA) {
		if err := s.enqueue(ctx, q, domain.OutboxEnforce2FA, org.ID, map[string]any{"organization_id": org.ID}); err != nil {
			return err
		}
	}
	if org.Flags.RequireEmailVerification && snap.HasChanged(org, domain.FlagRequireEmailVerification) {
		if err := s.enqueue(ctx, q, domain.OutboxEnforceEmailVerification, org.ID, map[string]any{"organization_id": org.ID}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, q repository.Querier, category domain.OutboxCategory, objectID uuid.UUID, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", category, err)
	}
	msg := &domain.OutboxMessage{
		ID:        uuid.New(),
		Category:  category,
		ObjectID:  objectID,
		Payload:   data,
		CreatedAt: s.cfg.Now().UTC(),
	}
	if err := s.deps.Outbox.EnqueueTx(ctx, q, msg); err != nil {
		return fmt.Errorf("failed to enqueue %s message: %w", category, err)
	}
	return nil
}

// recordUpdateAudit writes at most one entry: a restore wins over an edit, and
// an edit without changes is not recorded.
func (s *Service) recordUpdateAudit(ctx context.Context, q repository.Querier, org *domain.Organization, actor domain.Actor, changes domain.ChangeSet, restored bool) error {
	var event domain.AuditEvent
	var data map[string]any
	switch {
	case restored:
		event = domain.AuditEventRestore
		data = org.AuditData()
	case len(changes) > 0:
		event = domain.AuditEventEdit
		data = make(map[string]any, len(changes))
		for k, v := range changes {
			data[k] = v
		}
	default:
		return nil
	}

	return s.recordAudit(ctx, q, org, actor, event, data, nil)
}

func (s *Service) recordAudit(ctx context.Context, q repository.Querier, org *domain.Organization, actor domain.Actor, event domain.AuditEvent, data map[string]any, txID *uuid.UUID) error {
	entry := &domain.AuditEntry{
		ID:             uuid.New(),
		OrganizationID: org.ID,
		ActorID:        actor.ID(),
		Event:          event,
		TargetObject:   org.ID,
		Data:           data,
		TransactionID:  txID,
		IPAddress:      actor.IPAddress,
		CreatedAt:      s.cfg.Now().UTC(),
	}
	if err := s.deps.AuditLog.RecordTx(ctx, q, entry); err != nil {
		return fmt.Errorf("failed to record %s audit entry: %w", event, err)
	}
	return nil
}
