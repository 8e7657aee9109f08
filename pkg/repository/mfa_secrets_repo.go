package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// MFASecretsRepository handles database operations for MFA secrets
type MFASecretsRepository struct {
	db *sql.DB
}

// NewMFASecretsRepository creates a new MFA secrets repository
func NewMFASecretsRepository(db *sql.DB) *MFASecretsRepository {
	return &MFASecretsRepository{db: db}
}

// GetByUserIDAndMethod retrieves an MFA secret by user ID and method
func (r *MFASecretsRepository) GetByUserIDAndMethod(ctx context.Context, userID uuid.UUID, method domain.MFAMethod) (*domain.MFASecret, error) {
	query := `
		SELECT id, user_id, method, secret_encrypted, created_at, last_used_at
		FROM mfa_secrets
		WHERE user_id = $1 AND method = $2
	`

	secret := &domain.MFASecret{}
	err := r.db.QueryRowContext(ctx, query, userID, method).Scan(
		&secret.ID,
		&secret.UserID,
		&secret.Method,
		&secret.SecretEncrypted,
		&secret.CreatedAt,
		&secret.LastUsedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrMFANotEnabled
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get MFA secret: %w", err)
	}
	return secret, nil
}

// UpdateLastUsed updates the last used timestamp for an MFA secret
func (r *MFASecretsRepository) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE mfa_secrets
		SET last_used_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update MFA secret last used: %w", err)
	}
	return nil
}
