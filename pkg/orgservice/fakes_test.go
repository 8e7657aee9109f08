package orgservice

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// memState is the data behind memStore. It is copied before every
// transaction and restored when the transaction fails.
type memState struct {
	orgs      map[uuid.UUID]domain.Organization
	options   map[uuid.UUID]map[string]domain.OptionRecord
	audit     []domain.AuditEntry
	outbox    []domain.OutboxMessage
	deletions map[uuid.UUID]domain.ScheduledDeletion
	avatars   map[uuid.UUID]string
}

func (s memState) clone() memState {
	c := memState{
		orgs:      make(map[uuid.UUID]domain.Organization, len(s.orgs)),
		options:   make(map[uuid.UUID]map[string]domain.OptionRecord, len(s.options)),
		audit:     slices.Clone(s.audit),
		outbox:    slices.Clone(s.outbox),
		deletions: make(map[uuid.UUID]domain.ScheduledDeletion, len(s.deletions)),
		avatars:   make(map[uuid.UUID]string, len(s.avatars)),
	}
	for k, v := range s.orgs {
		c.orgs[k] = v
	}
	for org, recs := range s.options {
		m := make(map[string]domain.OptionRecord, len(recs))
		for k, v := range recs {
			v.Value = slices.Clone(v.Value)
			m[k] = v
		}
		c.options[org] = m
	}
	for k, v := range s.deletions {
		c.deletions[k] = v
	}
	for k, v := range s.avatars {
		c.avatars[k] = v
	}
	return c
}

// memStore implements every port of the service in memory.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	memState

	users       map[uuid.UUID]domain.User
	memberships map[uuid.UUID]domain.Membership
	features    map[string]bool
	sso         bool
	codecov     bool
}

func newMemStore() *memStore {
	return &memStore{
		memState: memState{
			orgs:      map[uuid.UUID]domain.Organization{},
			options:   map[uuid.UUID]map[string]domain.OptionRecord{},
			deletions: map[uuid.UUID]domain.ScheduledDeletion{},
			avatars:   map[uuid.UUID]string{},
		},
		users:       map[uuid.UUID]domain.User{},
		memberships: map[uuid.UUID]domain.Membership{},
		features:    map[string]bool{},
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	saved := m.memState.clone()
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.memState = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) addOrganization(org domain.Organization) *domain.Organization {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orgs[org.ID] = org
	return &org
}

func (m *memStore) organization(id uuid.UUID) domain.Organization {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orgs[id]
}

func (m *memStore) GetBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, org := range m.orgs {
		if org.Slug == slug {
			return &org, nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (m *memStore) GetForUpdateTx(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	return &org, nil
}

func (m *memStore) UpdateTx(ctx context.Context, q repository.Querier, org *domain.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, other := range m.orgs {
		if id != org.ID && other.Slug == org.Slug {
			return &pq.Error{Code: "23505", Constraint: "organizations_slug_key"}
		}
	}
	org.UpdatedAt = time.Now()
	m.orgs[org.ID] = *org
	return nil
}

func (m *memStore) TransitionStatusTx(ctx context.Context, q repository.Querier, id uuid.UUID, from, to domain.OrganizationStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok || org.Status != from {
		return false, nil
	}
	org.Status = to
	m.orgs[id] = org
	return true, nil
}

func (m *memStore) setOption(orgID uuid.UUID, key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.options[orgID] == nil {
		m.options[orgID] = map[string]domain.OptionRecord{}
	}
	m.options[orgID][key] = domain.OptionRecord{ID: uuid.New(), OrganizationID: orgID, Key: key, Value: []byte(value)}
}

func (m *memStore) option(orgID uuid.UUID, key string) (domain.OptionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.options[orgID][key]
	return rec, ok
}

func (m *memStore) GetTx(ctx context.Context, q repository.Querier, orgID uuid.UUID, key string) (*domain.OptionRecord, error) {
	rec, ok := m.option(orgID, key)
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	return &rec, nil
}

func (m *memStore) CreateTx(ctx context.Context, q repository.Querier, rec *domain.OptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.options[rec.OrganizationID][rec.Key]; ok {
		return &pq.Error{Code: "23505", Constraint: "organization_options_organization_id_key_key"}
	}
	if m.options[rec.OrganizationID] == nil {
		m.options[rec.OrganizationID] = map[string]domain.OptionRecord{}
	}
	m.options[rec.OrganizationID][rec.Key] = *rec
	return nil
}

func (m *memStore) optionsUpdateTx(rec *domain.OptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.options[rec.OrganizationID][rec.Key]; !ok {
		return domain.ErrOptionNotFound
	}
	m.options[rec.OrganizationID][rec.Key] = *rec
	return nil
}

func (m *memStore) ListByOrganization(ctx context.Context, orgID uuid.UUID) (map[string]*domain.OptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.OptionRecord, len(m.options[orgID]))
	for k, v := range m.options[orgID] {
		out[k] = &v
	}
	return out, nil
}

func (m *memStore) HasAny(ctx context.Context, orgID uuid.UUID, keys []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		if _, ok := m.options[orgID][k]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) RecordTx(ctx context.Context, q repository.Querier, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *memStore) auditEntries() []domain.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.audit)
}

func (m *memStore) EnqueueTx(ctx context.Context, q repository.Querier, msg *domain.OutboxMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outbox = append(m.outbox, *msg)
	return nil
}

func (m *memStore) outboxMessages() []domain.OutboxMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.outbox)
}

func (m *memStore) ScheduleTx(ctx context.Context, q repository.Querier, orgID uuid.UUID, delay time.Duration, actorID *uuid.UUID) (*domain.ScheduledDeletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.deletions[orgID]; ok {
		return &existing, nil
	}
	now := time.Now()
	job := domain.ScheduledDeletion{
		ID:             uuid.New(),
		GUID:           uuid.New(),
		OrganizationID: orgID,
		ActorID:        actorID,
		DateScheduled:  now.Add(delay),
		CreatedAt:      now,
	}
	m.deletions[orgID] = job
	return &job, nil
}

func (m *memStore) CancelTx(ctx context.Context, q repository.Querier, orgID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deletions, orgID)
	return nil
}

func (m *memStore) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*domain.ScheduledDeletion, error) {
	job, ok := m.scheduled(orgID)
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (m *memStore) scheduled(orgID uuid.UUID) (domain.ScheduledDeletion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.deletions[orgID]
	return job, ok
}

func (m *memStore) ExistsForOrganization(ctx context.Context, orgID uuid.UUID) (bool, error) {
	return m.sso, nil
}

func (m *memStore) HasUpload(ctx context.Context, orgID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avatars[orgID] == domain.AvatarTypeUpload, nil
}

func (m *memStore) SaveTx(ctx context.Context, q repository.Querier, orgID uuid.UUID, avatarType string, content []byte, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.avatars[orgID] = avatarType
	return nil
}

func (m *memStore) HasActive(ctx context.Context, orgID uuid.UUID, provider string) (bool, error) {
	return m.codecov && provider == DefaultCodecovProvider, nil
}

func (m *memStore) ForOrganization(ctx context.Context, orgID uuid.UUID) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.features))
	for k, v := range m.features {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &user, nil
}

func (m *memStore) GetByUserAndOrganization(ctx context.Context, userID, orgID uuid.UUID) (*domain.Membership, error) {
	mem, ok := m.memberships[userID]
	if !ok || mem.OrganizationID != orgID {
		return nil, domain.ErrMembershipNotFound
	}
	return &mem, nil
}

// addMember registers a user with an active membership in org.
func (m *memStore) addMember(orgID uuid.UUID, role string, mfa bool) Principal {
	user := domain.User{ID: uuid.New(), Email: role + "@example.com", EmailVerified: true, MFAEnabled: mfa}
	m.users[user.ID] = user
	m.memberships[user.ID] = domain.Membership{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         user.ID,
		Role:           role,
		Status:         domain.MembershipStatusActive,
	}
	return Principal{UserID: user.ID, Authenticated: true, IPAddress: "10.0.0.1"}
}

// memOptions adapts memStore to the Options port. Its UpdateTx clashes with
// the organization method of the same name.
type memOptions struct{ *memStore }

func (o memOptions) UpdateTx(ctx context.Context, q repository.Querier, rec *domain.OptionRecord) error {
	return o.optionsUpdateTx(rec)
}

// fakeMapping records mapping calls and fails the first failures of them.
type fakeMapping struct {
	mu       sync.Mutex
	creates  []MappingCreate
	updates  []string
	failures int
}

var errMappingUnavailable = errors.New("mapping service unavailable")

func (f *fakeMapping) Create(ctx context.Context, req MappingCreate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req)
	if f.failures != 0 {
		f.failures--
		return errMappingUnavailable
	}
	return nil
}

func (f *fakeMapping) Update(ctx context.Context, orgID uuid.UUID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, name)
	if f.failures != 0 {
		f.failures--
		return errMappingUnavailable
	}
	return nil
}
