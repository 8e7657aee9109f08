package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/simple-org-slim/internal/config"
	"github.com/tendant/simple-org-slim/internal/http/features/organization"
	"github.com/tendant/simple-org-slim/internal/http/middleware"
	"github.com/tendant/simple-org-slim/internal/httputil"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger          *slog.Logger
	Organizations   organization.Service
	Tokens          middleware.TokenValidator
	Sudo            middleware.SudoVerifier
	RateLimitConfig config.RateLimitConfig
	SecurityHeaders config.SecurityHeadersConfig
	MaxRequestBody  int64
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.SecurityHeaders(cfg.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.MaxRequestBody))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	rateLimiters := middleware.CreateRateLimiters(cfg.RateLimitConfig, logger)

	limits := organization.Limits{
		Read:   rateLimiters["read"],
		Write:  rateLimiters["write"],
		Delete: rateLimiters["delete"],
	}
	if cfg.Sudo != nil {
		limits.Sudo = middleware.RequireSudo(cfg.Sudo, logger)
	} else {
		logger.Warn("sudo verification disabled: organization deletion does not require recent authentication")
	}

	orgHandler := organization.NewHandler(logger, cfg.Organizations)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.Tokens))
		orgHandler.RegisterRoutes(r, limits)
	})

	return r
}
