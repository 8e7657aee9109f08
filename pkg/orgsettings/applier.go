package orgsettings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/changetrack"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// OptionStore reads and writes the options of one organization.
type OptionStore interface {
	Get(ctx context.Context, orgID uuid.UUID, key string) (*domain.OptionRecord, error)
	Create(ctx context.Context, rec *domain.OptionRecord) error
	Update(ctx context.Context, rec *domain.OptionRecord) error
}

// Target is the state an update is applied to.
type Target struct {
	Organization *domain.Organization
	// Snapshot of Organization taken before any field was assigned.
	Snapshot     changetrack.Snapshot
	Options      OptionStore
	Capabilities Capabilities
}

// Applier applies validated update requests.
type Applier struct {
	now func() time.Time
}

// NewApplier creates an applier. A nil clock uses time.Now.
func NewApplier(now func() time.Time) *Applier {
	if now == nil {
		now = time.Now
	}
	return &Applier{now: now}
}

// Apply writes the requested options, merges trusted relays and assigns the
// organization fields in memory. The organization itself is not persisted.
func (a *Applier) Apply(ctx context.Context, t Target, req *UpdateRequest) (domain.ChangeSet, error) {
	changes := domain.ChangeSet{}
	org := t.Organization

	requested := req.Options()
	for _, def := range OrgOptions {
		v, ok := requested[def.Field]
		if !ok {
			continue
		}
		if err := a.applyOption(ctx, t, def, v, changes); err != nil {
			return nil, err
		}
	}

	if req.TrustedRelays != nil {
		if err := a.applyTrustedRelays(ctx, t, *req.TrustedRelays, changes); err != nil {
			return nil, err
		}
	}

	applyFlags(org, req, t.Capabilities)
	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.Slug != nil {
		org.Slug = *req.Slug
	}
	if req.DefaultRole != nil {
		org.DefaultRole = *req.DefaultRole
	}

	for _, field := range []string{domain.FieldName, domain.FieldSlug, domain.FieldDefaultRole} {
		if !t.Snapshot.HasChanged(org, field) {
			continue
		}
		prior, _ := t.Snapshot.PriorValue(field)
		changes[field] = fmt.Sprintf("from %s to %s", formatValue(prior), formatValue(org.TrackedFields()[field]))
	}

	current := org.Flags.Map()
	for _, flag := range domain.FlagNames {
		if t.Snapshot.HasChanged(org, flag) {
			changes[flag] = fmt.Sprintf("to %t", current[flag])
		}
	}

	return changes, nil
}

func (a *Applier) applyOption(ctx context.Context, t Target, def OptionDef, v any, changes domain.ChangeSet) error {
	orgID := t.Organization.ID
	value, err := def.Encode(v)
	if err != nil {
		return err
	}

	rec, err := t.Options.Get(ctx, orgID, def.Key)
	if errors.Is(err, domain.ErrOptionNotFound) {
		rec = &domain.OptionRecord{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Key:            def.Key,
			Value:          value,
		}
		if err := t.Options.Create(ctx, rec); err != nil {
			return fmt.Errorf("failed to create option %s: %w", def.Key, err)
		}
		if !def.IsDefault(v) {
			changes[def.Field] = fmt.Sprintf("to %s", formatValue(v))
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load option %s: %w", def.Key, err)
	}

	snap := changetrack.Take(rec)
	rec.Value = value
	if snap.HasChanged(rec, "value") {
		prior, _ := snap.PriorValue("value")
		changes[def.Field] = fmt.Sprintf("from %s to %s", formatValue(json.RawMessage(prior.(string))), formatValue(v))
	}
	if err := t.Options.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to update option %s: %w", def.Key, err)
	}
	return nil
}

func (a *Applier) applyTrustedRelays(ctx context.Context, t Target, incoming []domain.TrustedRelay, changes domain.ChangeSet) error {
	orgID := t.Organization.ID

	var existing []domain.TrustedRelay
	rec, err := t.Options.Get(ctx, orgID, KeyTrustedRelays)
	switch {
	case errors.Is(err, domain.ErrOptionNotFound):
		rec = nil
	case err != nil:
		return fmt.Errorf("failed to load trusted relays: %w", err)
	default:
		if len(rec.Value) > 0 {
			if err := json.Unmarshal(rec.Value, &existing); err != nil {
				return fmt.Errorf("failed to decode trusted relays: %w", err)
			}
		}
	}

	merge := MergeTrustedRelays(existing, rec != nil, incoming, a.now().UTC())
	if !merge.Modified {
		return nil
	}

	value, err := json.Marshal(merge.Relays)
	if err != nil {
		return fmt.Errorf("failed to encode trusted relays: %w", err)
	}

	if rec == nil {
		rec = &domain.OptionRecord{
			ID:             uuid.New(),
			OrganizationID: orgID,
			Key:            KeyTrustedRelays,
			Value:          value,
		}
		if err := t.Options.Create(ctx, rec); err != nil {
			return fmt.Errorf("failed to create trusted relays: %w", err)
		}
		changes["trustedRelays"] = fmt.Sprintf("created %s", formatValue(json.RawMessage(value)))
		return nil
	}

	prior := rec.Value
	rec.Value = value
	if err := t.Options.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to update trusted relays: %w", err)
	}
	changes["trustedRelays"] = fmt.Sprintf("updated from %s to %s", formatValue(prior), formatValue(json.RawMessage(value)))
	return nil
}

func applyFlags(org *domain.Organization, req *UpdateRequest, caps Capabilities) {
	if req.OpenMembership != nil {
		org.Flags.AllowJoinLeave = *req.OpenMembership
	}
	if req.AllowSharedIssues != nil {
		org.Flags.DisableSharedIssues = !*req.AllowSharedIssues
	}
	if req.EnhancedPrivacy != nil {
		org.Flags.EnhancedPrivacy = *req.EnhancedPrivacy
	}
	if req.IsEarlyAdopter != nil {
		org.Flags.EarlyAdopter = *req.IsEarlyAdopter
	}
	if req.CodecovAccess != nil {
		org.Flags.CodecovAccess = *req.CodecovAccess
	}
	if req.Require2FA != nil {
		org.Flags.Require2FA = *req.Require2FA
	}
	if req.RequireEmailVerification != nil && caps.Has(FeatureRequiredEmailVerification) {
		org.Flags.RequireEmailVerification = *req.RequireEmailVerification
	}
}
