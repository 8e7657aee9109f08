package orgservice

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
)

// DefaultIdempotencyKey derives a stable key for a slug mapping so that a
// retried create of the same slug is deduplicated.
func DefaultIdempotencyKey(orgID uuid.UUID, slug string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(orgID.String()+":"+slug)).String()
}

// syncMapping tells the mapping service about a committed slug or name
// change. Only owners may supply their own idempotency key. Failures are
// logged; the committed update stands.
func (s *Service) syncMapping(ctx context.Context, org *domain.Organization, actor domain.Actor, req *orgsettings.UpdateRequest, change mappingChange) {
	if s.deps.Mapping == nil || (!change.slugChanged && !change.nameChanged) {
		return
	}

	var op func() error
	var call string
	if change.slugChanged {
		key := DefaultIdempotencyKey(org.ID, org.Slug)
		if actor.IsOwner() && req.IdempotencyKey != nil && *req.IdempotencyKey != "" {
			key = *req.IdempotencyKey
		}
		create := MappingCreate{
			OrganizationID: org.ID,
			Slug:           org.Slug,
			Name:           org.Name,
			IdempotencyKey: key,
			Region:         s.cfg.Region,
			ActorID:        actor.ID(),
		}
		call = "create"
		op = func() error { return s.deps.Mapping.Create(ctx, create) }
	} else {
		orgID, name := org.ID, org.Name
		call = "update"
		op = func() error { return s.deps.Mapping.Update(ctx, orgID, name) }
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.cfg.MappingBackoff
	bo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, s.cfg.MappingRetries), ctx)

	err := backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		s.logger.WarnContext(ctx, "mapping call failed, retrying",
			"call", call, "organization_id", org.ID, "error", err, "wait", wait)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "mapping call failed",
			"call", call, "organization_id", org.ID, "slug", org.Slug, "error", err)
	}
}
