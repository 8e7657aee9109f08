package orgservice

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
)

// OrganizationView is an organization with its effective option values.
type OrganizationView struct {
	Organization  *domain.Organization
	Options       map[string]any
	TrustedRelays []domain.TrustedRelay
	Actor         domain.Actor

	// PendingDeletion is set while the organization is being deleted.
	PendingDeletion *domain.ScheduledDeletion
}

// Get returns an organization and its options, with defaults filled in for
// options never written.
func (s *Service) Get(ctx context.Context, slug string, p Principal) (_ *OrganizationView, err error) {
	ctx, span := s.startSpan(ctx, "Get", slug)
	defer func() { endSpan(span, err) }()

	org, actor, err := s.loadOrganization(ctx, slug, p, domain.ScopeOrgRead)
	if err != nil {
		return nil, err
	}

	stored, err := s.deps.Options.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}

	view := &OrganizationView{Organization: org, Options: optionValues(stored), Actor: actor}
	if rec, ok := stored[orgsettings.KeyTrustedRelays]; ok && len(rec.Value) > 0 {
		if err := json.Unmarshal(rec.Value, &view.TrustedRelays); err != nil {
			return nil, fmt.Errorf("failed to decode trusted relays: %w", err)
		}
	}
	if org.Status.IsDeleting() {
		view.PendingDeletion, err = s.deps.Deletions.GetByOrganization(ctx, org.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load scheduled deletion: %w", err)
		}
	}
	return view, nil
}

func optionValues(stored map[string]*domain.OptionRecord) map[string]any {
	values := make(map[string]any, len(orgsettings.OrgOptions))
	for _, def := range orgsettings.OrgOptions {
		values[def.Field] = def.Default
		rec, ok := stored[def.Key]
		if !ok {
			continue
		}
		v, err := orgsettings.DecodeOption(def.Kind, rec.Value)
		if err != nil {
			continue
		}
		if v != nil {
			values[def.Field] = v
		}
	}
	return values
}
