package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// ScheduledDeletionsRepository handles deletion job persistence.
type ScheduledDeletionsRepository struct {
	db *sql.DB
}

// NewScheduledDeletionsRepository creates a new scheduled deletions repository.
func NewScheduledDeletionsRepository(db *sql.DB) *ScheduledDeletionsRepository {
	return &ScheduledDeletionsRepository{db: db}
}

// ScheduleTx schedules deletion of an organization after delay. Scheduling an
// organization twice keeps the first job and returns it.
func (r *ScheduledDeletionsRepository) ScheduleTx(ctx context.Context, q Querier, orgID uuid.UUID, delay time.Duration, actorID *uuid.UUID) (*domain.ScheduledDeletion, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO scheduled_deletions (id, guid, organization_id, actor_id, date_scheduled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (organization_id) DO UPDATE SET organization_id = EXCLUDED.organization_id
		RETURNING id, guid, organization_id, actor_id, date_scheduled, created_at
	`
	var sd domain.ScheduledDeletion
	err := q.QueryRowContext(ctx, query,
		uuid.New(),
		uuid.New(),
		orgID,
		actorID,
		now.Add(delay),
		now,
	).Scan(
		&sd.ID,
		&sd.GUID,
		&sd.OrganizationID,
		&sd.ActorID,
		&sd.DateScheduled,
		&sd.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sd, nil
}

// CancelTx removes any pending deletion job for an organization.
func (r *ScheduledDeletionsRepository) CancelTx(ctx context.Context, q Querier, orgID uuid.UUID) error {
	_, err := q.ExecContext(ctx, `DELETE FROM scheduled_deletions WHERE organization_id = $1`, orgID)
	return err
}

// GetByOrganization retrieves the pending deletion job of an organization.
func (r *ScheduledDeletionsRepository) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*domain.ScheduledDeletion, error) {
	query := `
		SELECT id, guid, organization_id, actor_id, date_scheduled, created_at
		FROM scheduled_deletions
		WHERE organization_id = $1
	`
	var sd domain.ScheduledDeletion
	err := r.db.QueryRowContext(ctx, query, orgID).Scan(
		&sd.ID,
		&sd.GUID,
		&sd.OrganizationID,
		&sd.ActorID,
		&sd.DateScheduled,
		&sd.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sd, nil
}
