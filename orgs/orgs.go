// Package orgs provides the organization settings engine as a library.
//
// Setup:
//
//  1. Run migrations from migrations/ folder using your preferred tool
//  2. Create an Orgs instance and mount its router
//
// Basic usage:
//
//	db, _ := sql.Open("postgres", "postgres://localhost/myapp?sslmode=disable")
//
//	o, err := orgs.New(orgs.Config{
//	    DB:        db,
//	    JWTSecret: "your-secret-key-at-least-32-chars",
//	})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//
//	http.ListenAndServe(":8080", o.Router())
//
// With NATS, slug mappings are pushed to the mapping service and outbox
// messages are relayed:
//
//	nc, _ := nats.NewClient(ctx, nats.Config{URL: "nats://localhost:4222"}, logger)
//	o, err := orgs.New(orgs.Config{
//	    DB:        db,
//	    JWTSecret: secret,
//	    Mapping:   nats.NewMappingClient(nc, "org.mapping"),
//	    Publisher: nc,
//	})
//	go o.Relay().Run(ctx)
package orgs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/internal/config"
	httpserver "github.com/tendant/simple-org-slim/internal/http"
	"github.com/tendant/simple-org-slim/internal/http/middleware"
	"github.com/tendant/simple-org-slim/internal/httputil"
	"github.com/tendant/simple-org-slim/internal/outbox"
	"github.com/tendant/simple-org-slim/pkg/auth"
	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/notify"
	"github.com/tendant/simple-org-slim/pkg/orgservice"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

// Config holds the configuration for the library.
type Config struct {
	// DB is the database connection (required).
	DB *sql.DB

	// JWTSecret verifies access tokens (required, min 32 chars).
	JWTSecret string

	// JWTIssuer is the expected issuer claim (default: "simple-org").
	JWTIssuer string

	// MFAEncryptionKey decrypts stored TOTP secrets for sudo checks
	// (optional, 32 bytes). Without it only recent logins and passwords
	// count as sudo proof.
	MFAEncryptionKey []byte

	// SudoWindow is how long a login counts as recent (default: 10 minutes).
	SudoWindow time.Duration

	// Region is reported to the mapping service with new slugs.
	Region string

	// Roles replaces the built-in role set (optional).
	Roles *domain.RoleSet

	// Features are granted to every organization.
	Features []string

	// CodecovProvider names the integration that unlocks codecovAccess.
	CodecovProvider string

	// DeletionDelay is how long a deletion stays cancellable (default: 24h).
	DeletionDelay time.Duration

	// Mapping receives slug and name changes (optional).
	Mapping orgservice.MappingService

	// Publisher receives outbox messages (optional). Relay returns nil
	// without it.
	Publisher outbox.Publisher

	// Outbox tunes the relay.
	Outbox config.OutboxConfig

	// SubjectPrefix is the subject outbox messages are published under
	// (default: "org.outbox").
	SubjectPrefix string

	// NotifyProvider names the chat integration member notices are routed
	// through (default: "slack").
	NotifyProvider string

	RateLimit       config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	MaxRequestBody  int64

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger
}

// Orgs is the main library instance.
type Orgs struct {
	config  Config
	service *orgservice.Service
	tokens  *auth.TokenService
	sudo    *auth.SudoService
	relay   *outbox.Relay
	outbox  *repository.OutboxRepository
}

// New creates a new instance with the given configuration.
// Returns an error if required database tables don't exist.
// Run migrations first - see migrations/ folder for SQL files.
func New(cfg Config) (*Orgs, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	// Validate schema exists
	if err := validateSchema(cfg.DB); err != nil {
		return nil, err
	}

	db := cfg.DB

	// Initialize repositories
	orgsRepo := repository.NewOrganizationsRepository(db)
	optionsRepo := repository.NewOptionsRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	outboxRepo := repository.NewOutboxRepository(db)
	deletionsRepo := repository.NewScheduledDeletionsRepository(db)
	authProvidersRepo := repository.NewAuthProvidersRepository(db)
	avatarsRepo := repository.NewAvatarsRepository(db)
	integrationsRepo := repository.NewIntegrationsRepository(db)
	featuresRepo := repository.NewFeaturesRepository(db, cfg.Features...)
	usersRepo := repository.NewUsersRepository(db)
	membershipsRepo := repository.NewMembershipsRepository(db)
	credsRepo := repository.NewCredentialsRepository(db)
	mfaSecretsRepo := repository.NewMFASecretsRepository(db)
	transactor := repository.NewTransactor(db)

	service, err := orgservice.New(orgservice.Deps{
		Tx:            transactor,
		Organizations: orgsRepo,
		Options:       optionsRepo,
		AuditLog:      auditRepo,
		Outbox:        outboxRepo,
		Deletions:     deletionsRepo,
		AuthProviders: authProvidersRepo,
		Avatars:       avatarsRepo,
		Integrations:  integrationsRepo,
		Features:      featuresRepo,
		Users:         usersRepo,
		Memberships:   membershipsRepo,
		Mapping:       cfg.Mapping,
	}, orgservice.Config{
		Region:          cfg.Region,
		DeletionDelay:   cfg.DeletionDelay,
		CodecovProvider: cfg.CodecovProvider,
		Roles:           cfg.Roles,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, err
	}

	tokens := auth.NewTokenService(auth.TokenConfig{
		JWTSecret: []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
	})
	sudo := auth.NewSudoService(auth.SudoConfig{
		Window:        cfg.SudoWindow,
		EncryptionKey: cfg.MFAEncryptionKey,
	}, mfaSecretsRepo, credsRepo)

	var relay *outbox.Relay
	if cfg.Publisher != nil && cfg.Outbox.Enabled {
		relay = outbox.NewRelay(
			transactor,
			outboxRepo,
			cfg.Publisher,
			membershipsRepo,
			notify.NewResolver(integrationsRepo),
			outbox.Config{
				SubjectPrefix:    cfg.SubjectPrefix,
				BatchSize:        cfg.Outbox.BatchSize,
				PollInterval:     cfg.Outbox.PollInterval,
				MaxAttempts:      cfg.Outbox.MaxAttempts,
				MaxRetryInterval: cfg.Outbox.MaxRetryInterval,
				NotifyProvider:   cfg.NotifyProvider,
				Logger:           cfg.Logger,
			},
		)
	}

	return &Orgs{
		config:  cfg,
		service: service,
		tokens:  tokens,
		sudo:    sudo,
		relay:   relay,
		outbox:  outboxRepo,
	}, nil
}

// Router returns the HTTP handler serving /health and
// /v1/organizations/{slug}:
//
//	GET    /v1/organizations/{slug} - Organization with options (protected)
//	PUT    /v1/organizations/{slug} - Partial settings update (protected)
//	DELETE /v1/organizations/{slug} - Schedule deletion (protected, sudo)
func (o *Orgs) Router() http.Handler {
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          o.config.Logger,
		Organizations:   o.service,
		Tokens:          o.tokens,
		Sudo:            o.sudo,
		RateLimitConfig: o.config.RateLimit,
		SecurityHeaders: o.config.SecurityHeaders,
		MaxRequestBody:  o.config.MaxRequestBody,
	})
}

// Service returns the engine for direct use.
func (o *Orgs) Service() *orgservice.Service {
	return o.service
}

// Relay returns the outbox relay, or nil when no publisher is configured.
func (o *Orgs) Relay() *outbox.Relay {
	return o.relay
}

// PendingMessages returns the number of undelivered outbox messages.
func (o *Orgs) PendingMessages(ctx context.Context) (int, error) {
	return o.outbox.CountPending(ctx)
}

// AuthMiddleware returns middleware that validates JWT tokens.
// Use this to protect your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(o.AuthMiddleware())
//	    r.Get("/protected", handler)
//	})
func (o *Orgs) AuthMiddleware() func(http.Handler) http.Handler {
	return middleware.Auth(o.tokens)
}

// PrincipalFromRequest builds the principal of a request that passed
// AuthMiddleware, for calling Service directly.
func PrincipalFromRequest(r *http.Request) orgservice.Principal {
	userID, ok := middleware.GetUserID(r.Context())
	return orgservice.Principal{
		UserID:        userID,
		Authenticated: ok,
		IPAddress:     auth.ClientIP(r),
	}
}

// GetUserIDFromContext extracts the user ID from a context.
// Use after AuthMiddleware:
//
//	userID, ok := orgs.GetUserIDFromContext(ctx)
func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	return middleware.GetUserID(ctx)
}

// HealthHandler returns a simple health check handler.
func (o *Orgs) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func validateConfig(cfg *Config) error {
	if cfg.DB == nil {
		return errors.New("orgs: DB is required")
	}
	if cfg.JWTSecret == "" {
		return errors.New("orgs: JWTSecret is required")
	}
	if len(cfg.JWTSecret) < 32 {
		return errors.New("orgs: JWTSecret must be at least 32 characters")
	}
	if n := len(cfg.MFAEncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("orgs: MFAEncryptionKey must be 32 bytes, got %d", n)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.JWTIssuer == "" {
		cfg.JWTIssuer = "simple-org"
	}
	if cfg.SudoWindow == 0 {
		cfg.SudoWindow = auth.DefaultSudoWindow
	}
	if cfg.DeletionDelay == 0 {
		cfg.DeletionDelay = orgservice.DefaultDeletionDelay
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "org.outbox"
	}
	if cfg.NotifyProvider == "" {
		cfg.NotifyProvider = "slack"
	}
	if cfg.Outbox == (config.OutboxConfig{}) {
		cfg.Outbox = config.OutboxConfig{Enabled: true}
	}
	if cfg.MaxRequestBody == 0 {
		cfg.MaxRequestBody = 2 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
}

// requiredTables are the tables the engine reads and writes.
var requiredTables = []string{
	"organizations",
	"organization_options",
	"audit_log",
	"org_outbox",
	"scheduled_deletions",
	"users",
	"memberships",
}

// validateSchema checks that required database tables exist.
func validateSchema(db *sql.DB) error {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRow(query, table).Scan(&name)
		if err == sql.ErrNoRows {
			return fmt.Errorf("orgs: missing table '%s' - run migrations first (see migrations/ folder)", table)
		}
		if err != nil {
			return fmt.Errorf("orgs: failed to check schema: %w", err)
		}
	}

	return nil
}
