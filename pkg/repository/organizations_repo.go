package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// OrganizationsRepository handles organization data persistence.
type OrganizationsRepository struct {
	db *sql.DB
}

// NewOrganizationsRepository creates a new organizations repository.
func NewOrganizationsRepository(db *sql.DB) *OrganizationsRepository {
	return &OrganizationsRepository{db: db}
}

const organizationColumns = `
	id, name, slug, default_role, status, is_default,
	flag_allow_joinleave, flag_enhanced_privacy, flag_disable_shared_issues,
	flag_early_adopter, flag_require_2fa, flag_codecov_access, flag_require_email_verification,
	created_at, updated_at
`

func scanOrganization(row interface{ Scan(...any) error }) (*domain.Organization, error) {
	var org domain.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Slug,
		&org.DefaultRole,
		&org.Status,
		&org.IsDefault,
		&org.Flags.AllowJoinLeave,
		&org.Flags.EnhancedPrivacy,
		&org.Flags.DisableSharedIssues,
		&org.Flags.EarlyAdopter,
		&org.Flags.Require2FA,
		&org.Flags.CodecovAccess,
		&org.Flags.RequireEmailVerification,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, err
	}
	return &org, nil
}

// GetBySlug retrieves an organization by slug.
func (r *OrganizationsRepository) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE slug = $1`
	return scanOrganization(r.db.QueryRowContext(ctx, query, slug))
}

// GetForUpdateTx reloads an organization and locks its row until the
// transaction ends.
func (r *OrganizationsRepository) GetForUpdateTx(ctx context.Context, q Querier, id uuid.UUID) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1 FOR UPDATE`
	return scanOrganization(q.QueryRowContext(ctx, query, id))
}

// UpdateTx writes the mutable fields of an organization.
// A slug collision surfaces as a *pq.Error with code 23505.
func (r *OrganizationsRepository) UpdateTx(ctx context.Context, q Querier, org *domain.Organization) error {
	query := `
		UPDATE organizations
		SET name = $1, slug = $2, default_role = $3, status = $4,
		    flag_allow_joinleave = $5, flag_enhanced_privacy = $6, flag_disable_shared_issues = $7,
		    flag_early_adopter = $8, flag_require_2fa = $9, flag_codecov_access = $10,
		    flag_require_email_verification = $11, updated_at = NOW()
		WHERE id = $12
		RETURNING updated_at
	`
	err := q.QueryRowContext(ctx, query,
		org.Name,
		org.Slug,
		org.DefaultRole,
		org.Status,
		org.Flags.AllowJoinLeave,
		org.Flags.EnhancedPrivacy,
		org.Flags.DisableSharedIssues,
		org.Flags.EarlyAdopter,
		org.Flags.Require2FA,
		org.Flags.CodecovAccess,
		org.Flags.RequireEmailVerification,
		org.ID,
	).Scan(&org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrganizationNotFound
	}
	return err
}

// TransitionStatusTx moves an organization from one status to another only if
// it is still in the expected status. It returns false when another writer
// got there first.
func (r *OrganizationsRepository) TransitionStatusTx(ctx context.Context, q Querier, id uuid.UUID, from, to domain.OrganizationStatus) (bool, error) {
	query := `
		UPDATE organizations
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	result, err := q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}
