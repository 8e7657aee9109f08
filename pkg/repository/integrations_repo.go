package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// IntegrationsRepository reads third-party integrations and the identities
// and external actors linked to them.
type IntegrationsRepository struct {
	db *sql.DB
}

// NewIntegrationsRepository creates a new integrations repository.
func NewIntegrationsRepository(db *sql.DB) *IntegrationsRepository {
	return &IntegrationsRepository{db: db}
}

// HasActive reports whether the organization has an active integration for provider.
func (r *IntegrationsRepository) HasActive(ctx context.Context, orgID uuid.UUID, provider string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM integrations
			WHERE organization_id = $1 AND provider = $2 AND status = $3
		)`,
		orgID, provider, domain.IntegrationStatusActive,
	).Scan(&exists)
	return exists, err
}

// ListActive retrieves the active integrations of an organization for provider.
func (r *IntegrationsRepository) ListActive(ctx context.Context, orgID uuid.UUID, provider string) ([]*domain.Integration, error) {
	query := `
		SELECT id, organization_id, provider, external_id, name, status, metadata, created_at
		FROM integrations
		WHERE organization_id = $1 AND provider = $2 AND status = $3
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, orgID, provider, domain.IntegrationStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Integration
	for rows.Next() {
		var in domain.Integration
		var metadata []byte
		if err := rows.Scan(
			&in.ID,
			&in.OrganizationID,
			&in.Provider,
			&in.ExternalID,
			&in.Name,
			&in.Status,
			&metadata,
			&in.CreatedAt,
		); err != nil {
			return nil, err
		}
		in.Metadata = metadata
		out = append(out, &in)
	}
	return out, rows.Err()
}

// UserIdentity pairs an identity with the provider it was linked from.
type UserIdentity struct {
	Identity domain.Identity
	Provider domain.IdentityProvider
}

// IdentitiesByUser retrieves a user's identities for one provider type.
func (r *IntegrationsRepository) IdentitiesByUser(ctx context.Context, userID uuid.UUID, providerType string) ([]UserIdentity, error) {
	query := `
		SELECT i.id, i.user_id, i.provider_id, i.external_id, i.date_verified,
		       p.id, p.type, p.external_id
		FROM identities i
		JOIN identity_providers p ON p.id = i.provider_id
		WHERE i.user_id = $1 AND p.type = $2 AND i.external_id <> p.external_id
		ORDER BY i.date_verified DESC NULLS LAST
	`
	rows, err := r.db.QueryContext(ctx, query, userID, providerType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UserIdentity
	for rows.Next() {
		var ui UserIdentity
		if err := rows.Scan(
			&ui.Identity.ID,
			&ui.Identity.UserID,
			&ui.Identity.ProviderID,
			&ui.Identity.ExternalID,
			&ui.Identity.DateVerified,
			&ui.Provider.ID,
			&ui.Provider.Type,
			&ui.Provider.ExternalID,
		); err != nil {
			return nil, err
		}
		out = append(out, ui)
	}
	return out, rows.Err()
}

// TeamChannel retrieves the external actor of a team for provider together
// with its integration. Only active integrations are considered.
func (r *IntegrationsRepository) TeamChannel(ctx context.Context, orgID, teamID uuid.UUID, provider string) (*domain.ExternalActor, *domain.Integration, error) {
	query := `
		SELECT a.id, a.organization_id, a.integration_id, a.team_id, a.provider, a.external_id, a.external_name,
		       g.id, g.organization_id, g.provider, g.external_id, g.name, g.status, g.metadata, g.created_at
		FROM external_actors a
		JOIN integrations g ON g.id = a.integration_id
		WHERE a.organization_id = $1 AND a.team_id = $2 AND a.provider = $3
		  AND g.organization_id = $1 AND g.status = $4
		LIMIT 1
	`
	var actor domain.ExternalActor
	var in domain.Integration
	var metadata []byte
	err := r.db.QueryRowContext(ctx, query, orgID, teamID, provider, domain.IntegrationStatusActive).Scan(
		&actor.ID,
		&actor.OrganizationID,
		&actor.IntegrationID,
		&actor.TeamID,
		&actor.Provider,
		&actor.ExternalID,
		&actor.ExternalName,
		&in.ID,
		&in.OrganizationID,
		&in.Provider,
		&in.ExternalID,
		&in.Name,
		&in.Status,
		&metadata,
		&in.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, domain.ErrIntegrationNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	in.Metadata = metadata
	return &actor, &in, nil
}
