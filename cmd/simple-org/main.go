package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/tendant/simple-org-slim/internal/config"
	"github.com/tendant/simple-org-slim/internal/logging"
	"github.com/tendant/simple-org-slim/internal/nats"
	"github.com/tendant/simple-org-slim/orgs"
	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "simple-org: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, addr, rolesFile string

	flagSet := pflag.NewFlagSet("simple-org", pflag.ContinueOnError)
	flagSet.StringVar(&envFile, "config", "", "path to a .env file (default: ./.env if present)")
	flagSet.StringVar(&addr, "addr", "", "listen address, overrides SERVER_ADDR and SERVER_PORT")
	flagSet.StringVar(&rolesFile, "roles-file", "", "YAML roles file, overrides ROLES_FILE")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	// Load configuration
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if rolesFile != "" {
		cfg.RolesFile = rolesFile
	}
	if addr == "" {
		addr = fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	}

	// Setup logger
	logger := logging.New(os.Stdout, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	slog.SetDefault(logger)

	var roles *domain.RoleSet
	if cfg.RolesFile != "" {
		roles, err = config.LoadRoles(cfg.RolesFile)
		if err != nil {
			return err
		}
		logger.Info("loaded roles", "file", cfg.RolesFile)
	}

	// Connect to database
	db, err := repository.NewDB(repository.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.Name,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	logger.Info("connected to database")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orgsCfg := orgs.Config{
		DB:              db,
		JWTSecret:       cfg.JWT.Secret,
		JWTIssuer:       cfg.JWT.Issuer,
		SudoWindow:      cfg.Sudo.Window,
		Region:          cfg.Region,
		Roles:           roles,
		Features:        cfg.Features,
		CodecovProvider: cfg.CodecovProvider,
		DeletionDelay:   cfg.Deletion.Delay,
		Outbox:          cfg.Outbox,
		SubjectPrefix:   cfg.NATS.SubjectPrefix,
		NotifyProvider:  cfg.NotifyProvider,
		RateLimit:       cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
		MaxRequestBody:  cfg.MaxRequestBody,
		Logger:          logger,
	}
	if cfg.Sudo.MFAEncryptionKey != "" {
		orgsCfg.MFAEncryptionKey = []byte(cfg.Sudo.MFAEncryptionKey)
	}

	// Connect to NATS if configured
	if cfg.HasNATS() {
		nc, err := nats.NewClient(ctx, nats.Config{
			URL:           cfg.NATS.URL,
			Name:          "simple-org",
			Timeout:       cfg.NATS.RequestTimeout,
			MaxReconnect:  cfg.NATS.MaxReconnect,
			ReconnectWait: cfg.NATS.ReconnectWait,
		}, logger)
		if err != nil {
			return err
		}
		defer nc.Close()

		orgsCfg.Mapping = nats.NewMappingClient(nc, cfg.NATS.MappingSubject)
		orgsCfg.Publisher = nc
	} else {
		logger.Warn("NATS not configured: mapping sync and outbox relay disabled")
	}

	o, err := orgs.New(orgsCfg)
	if err != nil {
		return err
	}

	if relay := o.Relay(); relay != nil {
		// Runs before the deferred NATS and database closes.
		defer startBackground(ctx, relay, logger)()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         addr,
		Handler:      o.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

type runner interface {
	Run(ctx context.Context) error
}

// startBackground runs r until the returned stop function is called or ctx
// ends. stop cancels r and waits for Run to return.
func startBackground(ctx context.Context, r runner, logger *slog.Logger) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox relay stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
