package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// FeaturesRepository reads per-organization feature grants.
type FeaturesRepository struct {
	db       *sql.DB
	defaults []string
}

// NewFeaturesRepository creates a features repository. Default features are
// granted to every organization.
func NewFeaturesRepository(db *sql.DB, defaults ...string) *FeaturesRepository {
	return &FeaturesRepository{db: db, defaults: defaults}
}

// ForOrganization returns the features granted to an organization.
func (r *FeaturesRepository) ForOrganization(ctx context.Context, orgID uuid.UUID) (map[string]bool, error) {
	features := make(map[string]bool, len(r.defaults))
	for _, f := range r.defaults {
		features[f] = true
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT feature, enabled FROM organization_features WHERE organization_id = $1`,
		orgID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var enabled bool
		if err := rows.Scan(&name, &enabled); err != nil {
			return nil, err
		}
		features[name] = enabled
	}
	return features, rows.Err()
}
