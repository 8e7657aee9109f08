package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// AuthProvidersRepository reads single sign-on configurations.
type AuthProvidersRepository struct {
	db *sql.DB
}

// NewAuthProvidersRepository creates a new auth providers repository.
func NewAuthProvidersRepository(db *sql.DB) *AuthProvidersRepository {
	return &AuthProvidersRepository{db: db}
}

// ExistsForOrganization reports whether the organization has SSO configured.
func (r *AuthProvidersRepository) ExistsForOrganization(ctx context.Context, orgID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM auth_providers WHERE organization_id = $1)`,
		orgID,
	).Scan(&exists)
	return exists, err
}
