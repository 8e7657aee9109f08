package orgservice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// Transactor runs a unit of work in one database transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(q repository.Querier) error) error
}

// Organizations persists organizations.
type Organizations interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	GetForUpdateTx(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Organization, error)
	UpdateTx(ctx context.Context, q repository.Querier, org *domain.Organization) error
	TransitionStatusTx(ctx context.Context, q repository.Querier, id uuid.UUID, from, to domain.OrganizationStatus) (bool, error)
}

// Options persists organization options.
type Options interface {
	GetTx(ctx context.Context, q repository.Querier, orgID uuid.UUID, key string) (*domain.OptionRecord, error)
	CreateTx(ctx context.Context, q repository.Querier, rec *domain.OptionRecord) error
	UpdateTx(ctx context.Context, q repository.Querier, rec *domain.OptionRecord) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID) (map[string]*domain.OptionRecord, error)
	HasAny(ctx context.Context, orgID uuid.UUID, keys []string) (bool, error)
}

// AuditLog records audit entries.
type AuditLog interface {
	RecordTx(ctx context.Context, q repository.Querier, entry *domain.AuditEntry) error
}

// Outbox enqueues deferred messages.
type Outbox interface {
	EnqueueTx(ctx context.Context, q repository.Querier, msg *domain.OutboxMessage) error
}

// Deletions schedules and cancels organization deletion jobs. Both
// operations are idempotent.
type Deletions interface {
	ScheduleTx(ctx context.Context, q repository.Querier, orgID uuid.UUID, delay time.Duration, actorID *uuid.UUID) (*domain.ScheduledDeletion, error)
	CancelTx(ctx context.Context, q repository.Querier, orgID uuid.UUID) error
	// GetByOrganization returns nil when nothing is scheduled.
	GetByOrganization(ctx context.Context, orgID uuid.UUID) (*domain.ScheduledDeletion, error)
}

// AuthProviders reports single sign-on configuration.
type AuthProviders interface {
	ExistsForOrganization(ctx context.Context, orgID uuid.UUID) (bool, error)
}

// Avatars reads and writes organization avatars.
type Avatars interface {
	HasUpload(ctx context.Context, orgID uuid.UUID) (bool, error)
	SaveTx(ctx context.Context, q repository.Querier, orgID uuid.UUID, avatarType string, content []byte, fileName string) error
}

// Integrations reports installed third-party integrations.
type Integrations interface {
	HasActive(ctx context.Context, orgID uuid.UUID, provider string) (bool, error)
}

// Features reports feature grants.
type Features interface {
	ForOrganization(ctx context.Context, orgID uuid.UUID) (map[string]bool, error)
}

// Users reads the accounts behind principals.
type Users interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// Memberships reads organization memberships.
type Memberships interface {
	GetByUserAndOrganization(ctx context.Context, userID, orgID uuid.UUID) (*domain.Membership, error)
}

// MappingCreate describes a new slug mapping in the control service.
type MappingCreate struct {
	OrganizationID uuid.UUID  `json:"organization_id"`
	Slug           string     `json:"slug"`
	Name           string     `json:"name"`
	IdempotencyKey string     `json:"idempotency_key"`
	Region         string     `json:"region_name"`
	ActorID        *uuid.UUID `json:"user_id,omitempty"`
}

// MappingService keeps the cross-region organization mapping in sync.
// Both calls must be safe to retry.
type MappingService interface {
	Create(ctx context.Context, req MappingCreate) error
	Update(ctx context.Context, orgID uuid.UUID, name string) error
}

// txOptions binds Options to one transaction.
type txOptions struct {
	repo Options
	q    repository.Querier
}

func (o txOptions) Get(ctx context.Context, orgID uuid.UUID, key string) (*domain.OptionRecord, error) {
	return o.repo.GetTx(ctx, o.q, orgID, key)
}

func (o txOptions) Create(ctx context.Context, rec *domain.OptionRecord) error {
	return o.repo.CreateTx(ctx, o.q, rec)
}

func (o txOptions) Update(ctx context.Context, rec *domain.OptionRecord) error {
	return o.repo.UpdateTx(ctx, o.q, rec)
}
