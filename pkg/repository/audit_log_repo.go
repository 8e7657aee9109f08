package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

// AuditLogRepository handles audit log persistence.
type AuditLogRepository struct {
	db *sql.DB
}

// NewAuditLogRepository creates a new audit log repository.
func NewAuditLogRepository(db *sql.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// RecordTx inserts an audit entry within a transaction.
func (r *AuditLogRepository) RecordTx(ctx context.Context, q Querier, entry *domain.AuditEntry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to encode audit data: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, organization_id, actor_id, event, target_object, data, transaction_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = q.ExecContext(ctx, query,
		entry.ID,
		entry.OrganizationID,
		entry.ActorID,
		entry.Event,
		entry.TargetObject,
		string(data),
		entry.TransactionID,
		nullString(entry.IPAddress),
		entry.CreatedAt,
	)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
