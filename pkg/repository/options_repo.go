package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// OptionsRepository handles organization option persistence.
type OptionsRepository struct {
	db *sql.DB
}

// NewOptionsRepository creates a new options repository.
func NewOptionsRepository(db *sql.DB) *OptionsRepository {
	return &OptionsRepository{db: db}
}

// GetTx retrieves one option of an organization.
func (r *OptionsRepository) GetTx(ctx context.Context, q Querier, orgID uuid.UUID, key string) (*domain.OptionRecord, error) {
	query := `
		SELECT id, organization_id, key, value
		FROM organization_options
		WHERE organization_id = $1 AND key = $2
	`
	var rec domain.OptionRecord
	var value []byte
	err := q.QueryRowContext(ctx, query, orgID, key).Scan(
		&rec.ID,
		&rec.OrganizationID,
		&rec.Key,
		&value,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOptionNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Value = value
	return &rec, nil
}

// ListByOrganization retrieves every option of an organization keyed by option key.
func (r *OptionsRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID) (map[string]*domain.OptionRecord, error) {
	query := `
		SELECT id, organization_id, key, value
		FROM organization_options
		WHERE organization_id = $1
	`
	rows, err := r.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]*domain.OptionRecord)
	for rows.Next() {
		var rec domain.OptionRecord
		var value []byte
		if err := rows.Scan(&rec.ID, &rec.OrganizationID, &rec.Key, &value); err != nil {
			return nil, err
		}
		rec.Value = value
		out[rec.Key] = &rec
	}
	return out, rows.Err()
}

// CreateTx inserts a new option.
func (r *OptionsRepository) CreateTx(ctx context.Context, q Querier, rec *domain.OptionRecord) error {
	query := `
		INSERT INTO organization_options (id, organization_id, key, value)
		VALUES ($1, $2, $3, $4)
	`
	_, err := q.ExecContext(ctx, query, rec.ID, rec.OrganizationID, rec.Key, string(rec.Value))
	return err
}

// UpdateTx replaces the value of an existing option.
func (r *OptionsRepository) UpdateTx(ctx context.Context, q Querier, rec *domain.OptionRecord) error {
	query := `
		UPDATE organization_options
		SET value = $1
		WHERE id = $2
	`
	result, err := q.ExecContext(ctx, query, string(rec.Value), rec.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrOptionNotFound
	}
	return nil
}

// HasAny reports whether the organization has any of the given options stored.
func (r *OptionsRepository) HasAny(ctx context.Context, orgID uuid.UUID, keys []string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM organization_options
			WHERE organization_id = $1 AND key = ANY($2)
		)
	`
	var exists bool
	err := r.db.QueryRowContext(ctx, query, orgID, pq.Array(keys)).Scan(&exists)
	return exists, err
}
