package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// AvatarsRepository handles organization avatar persistence.
type AvatarsRepository struct {
	db *sql.DB
}

// NewAvatarsRepository creates a new avatars repository.
func NewAvatarsRepository(db *sql.DB) *AvatarsRepository {
	return &AvatarsRepository{db: db}
}

// HasUpload reports whether an uploaded image is stored for the organization.
func (r *AvatarsRepository) HasUpload(ctx context.Context, orgID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM organization_avatars WHERE organization_id = $1 AND content IS NOT NULL)`,
		orgID,
	).Scan(&exists)
	return exists, err
}

// SaveTx sets the avatar type and, when content is not nil, replaces the image.
func (r *AvatarsRepository) SaveTx(ctx context.Context, q Querier, orgID uuid.UUID, avatarType string, content []byte, fileName string) error {
	query := `
		INSERT INTO organization_avatars (organization_id, avatar_type, file_name, content, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (organization_id) DO UPDATE SET
			avatar_type = EXCLUDED.avatar_type,
			file_name = COALESCE(EXCLUDED.file_name, organization_avatars.file_name),
			content = COALESCE(EXCLUDED.content, organization_avatars.content),
			updated_at = NOW()
	`
	var name sql.NullString
	var image any
	if content != nil {
		name = nullString(fileName)
		image = content
	}
	_, err := q.ExecContext(ctx, query, orgID, avatarType, name, image)
	return err
}
