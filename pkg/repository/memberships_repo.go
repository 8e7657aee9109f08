package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// MembershipsRepository handles membership data persistence.
type MembershipsRepository struct {
	db *sql.DB
}

// NewMembershipsRepository creates a new memberships repository.
func NewMembershipsRepository(db *sql.DB) *MembershipsRepository {
	return &MembershipsRepository{db: db}
}

// GetByUserAndOrganization retrieves a user's membership in an organization.
func (r *MembershipsRepository) GetByUserAndOrganization(ctx context.Context, userID, orgID uuid.UUID) (*domain.Membership, error) {
	query := `
		SELECT id, organization_id, user_id, role, status, created_at, updated_at, deleted_at
		FROM memberships
		WHERE user_id = $1 AND organization_id = $2 AND deleted_at IS NULL
	`

	var m domain.Membership
	err := r.db.QueryRowContext(ctx, query, userID, orgID).Scan(
		&m.ID,
		&m.OrganizationID,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, err
	}

	return &m, nil
}

// ListActiveUserIDs retrieves the IDs of active members of an organization.
func (r *MembershipsRepository) ListActiveUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT user_id
		FROM memberships
		WHERE organization_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, orgID, domain.MembershipStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
