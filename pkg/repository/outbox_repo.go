package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// OutboxRepository handles the transactional outbox.
type OutboxRepository struct {
	db *sql.DB
}

// NewOutboxRepository creates a new outbox repository.
func NewOutboxRepository(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// EnqueueTx writes a message in the caller's transaction.
func (r *OutboxRepository) EnqueueTx(ctx context.Context, q Querier, msg *domain.OutboxMessage) error {
	payload := msg.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	query := `
		INSERT INTO org_outbox (id, category, object_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := q.ExecContext(ctx, query,
		msg.ID,
		msg.Category,
		msg.ObjectID,
		string(payload),
		msg.CreatedAt,
	)
	return err
}

// ClaimBatchTx locks up to limit unprocessed messages that are due, oldest
// first. Rows locked by another relay are skipped.
func (r *OutboxRepository) ClaimBatchTx(ctx context.Context, q Querier, limit int) ([]*domain.OutboxMessage, error) {
	query := `
		SELECT id, category, object_id, payload, created_at, attempts
		FROM org_outbox
		WHERE processed_at IS NULL
		  AND (next_attempt_at IS NULL OR next_attempt_at <= NOW())
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []*domain.OutboxMessage
	for rows.Next() {
		var msg domain.OutboxMessage
		var payload []byte
		if err := rows.Scan(
			&msg.ID,
			&msg.Category,
			&msg.ObjectID,
			&payload,
			&msg.CreatedAt,
			&msg.Attempts,
		); err != nil {
			return nil, err
		}
		msg.Payload = payload
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

// MarkProcessedTx marks messages as delivered.
func (r *OutboxRepository) MarkProcessedTx(ctx context.Context, q Querier, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE org_outbox
		SET processed_at = NOW()
		WHERE id = ANY($1)
	`
	_, err := q.ExecContext(ctx, query, pq.Array(uuidStrings(ids)))
	return err
}

// MarkFailedTx records a failed delivery attempt and defers the message
// until retryAt.
func (r *OutboxRepository) MarkFailedTx(ctx context.Context, q Querier, id uuid.UUID, cause string, retryAt time.Time) error {
	query := `
		UPDATE org_outbox
		SET attempts = attempts + 1, last_error = $1, next_attempt_at = $2
		WHERE id = $3
	`
	_, err := q.ExecContext(ctx, query, cause, retryAt, id)
	return err
}

// CountPending returns the number of undelivered messages.
func (r *OutboxRepository) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM org_outbox WHERE processed_at IS NULL`).Scan(&n)
	return n, err
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
