// Package orgservice coordinates organization updates and deletions. It runs
// validation, applies settings in one transaction and issues the audit,
// outbox and mapping side effects.
package orgservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
)

const tracerName = "github.com/tendant/simple-org-slim/pkg/orgservice"

// Default settings.
const (
	DefaultDeletionDelay   = 24 * time.Hour
	DefaultCodecovProvider = "codecov"
	DefaultMappingRetries  = 3
)

// ConflictSlugMessage is reported when a slug is already taken.
const ConflictSlugMessage = "An organization with this slug already exists."

// Deps are the stores and services the coordinator talks to.
type Deps struct {
	Tx            Transactor
	Organizations Organizations
	Options       Options
	AuditLog      AuditLog
	Outbox        Outbox
	Deletions     Deletions
	AuthProviders AuthProviders
	Avatars       Avatars
	Integrations  Integrations
	Features      Features
	Users         Users
	Memberships   Memberships
	Mapping       MappingService
}

// Config tunes the coordinator.
type Config struct {
	// Region is reported to the mapping service with new slugs.
	Region          string
	DeletionDelay   time.Duration
	CodecovProvider string
	Roles           *domain.RoleSet
	// MappingRetries bounds the retries of one mapping call after commit.
	MappingRetries uint64
	// MappingBackoff is the first wait between mapping retries.
	MappingBackoff time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.DeletionDelay <= 0 {
		c.DeletionDelay = DefaultDeletionDelay
	}
	if c.CodecovProvider == "" {
		c.CodecovProvider = DefaultCodecovProvider
	}
	if c.Roles == nil {
		c.Roles = domain.DefaultRoles()
	}
	if c.MappingRetries == 0 {
		c.MappingRetries = DefaultMappingRetries
	}
	if c.MappingBackoff <= 0 {
		c.MappingBackoff = 200 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Service is the organization update coordinator.
type Service struct {
	deps    Deps
	cfg     Config
	applier *orgsettings.Applier
	tracer  trace.Tracer
	logger  *slog.Logger
}

// New creates a coordinator.
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Tx == nil || deps.Organizations == nil || deps.Options == nil {
		return nil, errors.New("orgservice: transactor, organizations and options are required")
	}
	if deps.AuditLog == nil || deps.Outbox == nil || deps.Deletions == nil {
		return nil, errors.New("orgservice: audit log, outbox and deletions are required")
	}
	if deps.Users == nil || deps.Memberships == nil {
		return nil, errors.New("orgservice: users and memberships are required")
	}
	cfg.applyDefaults()

	return &Service{
		deps:    deps,
		cfg:     cfg,
		applier: orgsettings.NewApplier(cfg.Now),
		tracer:  otel.Tracer(tracerName),
		logger:  cfg.Logger.With("component", "orgservice"),
	}, nil
}

// Roles returns the recognized role set.
func (s *Service) Roles() *domain.RoleSet {
	return s.cfg.Roles
}

// loadOrganization fetches an organization and resolves the caller's actor
// in it, requiring scope.
func (s *Service) loadOrganization(ctx context.Context, slug string, p Principal, scope string) (*domain.Organization, domain.Actor, error) {
	org, err := s.deps.Organizations.GetBySlug(ctx, slug)
	if err != nil {
		return nil, domain.Actor{}, err
	}

	actor, err := s.resolveActor(ctx, org.ID, p)
	if err != nil {
		return nil, domain.Actor{}, err
	}
	if !actor.HasScope(scope) {
		return nil, domain.Actor{}, fmt.Errorf("%w: missing scope %s", domain.ErrForbidden, scope)
	}
	return org, actor, nil
}

func (s *Service) startSpan(ctx context.Context, name, slug string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "orgservice."+name, trace.WithAttributes(
		attribute.String("organization.slug", slug),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
