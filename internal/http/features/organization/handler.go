// Package organization serves the organization settings endpoints.
package organization

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-org-slim/internal/http/middleware"
	"github.com/tendant/simple-org-slim/internal/httputil"
	"github.com/tendant/simple-org-slim/pkg/auth"
	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgservice"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
)

// Service is the organization engine.
type Service interface {
	Get(ctx context.Context, slug string, p orgservice.Principal) (*orgservice.OrganizationView, error)
	Update(ctx context.Context, slug string, p orgservice.Principal, req *orgsettings.UpdateRequest) (*orgservice.UpdateResult, error)
	Delete(ctx context.Context, slug string, p orgservice.Principal) (*domain.Organization, error)
}

// Handler handles organization endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler creates a new organization handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// OrganizationResponse is the organization representation.
type OrganizationResponse struct {
	ID                       string                `json:"id"`
	Slug                     string                `json:"slug"`
	Name                     string                `json:"name"`
	Status                   string                `json:"status"`
	DefaultRole              string                `json:"defaultRole"`
	IsDefault                bool                  `json:"isDefault"`
	OpenMembership           bool                  `json:"openMembership"`
	AllowSharedIssues        bool                  `json:"allowSharedIssues"`
	EnhancedPrivacy          bool                  `json:"enhancedPrivacy"`
	IsEarlyAdopter           bool                  `json:"isEarlyAdopter"`
	CodecovAccess            bool                  `json:"codecovAccess"`
	Require2FA               bool                  `json:"require2FA"`
	RequireEmailVerification bool                  `json:"requireEmailVerification"`
	DateCreated              time.Time             `json:"dateCreated"`
	Options                  map[string]any        `json:"options,omitempty"`
	TrustedRelays            []domain.TrustedRelay `json:"trustedRelays,omitempty"`
	Scopes                   []string              `json:"access,omitempty"`
	DeletionScheduled        *time.Time            `json:"deletionScheduled,omitempty"`
}

// UpdateResponse is returned by a successful update.
type UpdateResponse struct {
	OrganizationResponse
	Changes  domain.ChangeSet `json:"changes"`
	Restored bool             `json:"restored,omitempty"`
}

func toResponse(org *domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:                       org.ID.String(),
		Slug:                     org.Slug,
		Name:                     org.Name,
		Status:                   string(org.Status),
		DefaultRole:              org.DefaultRole,
		IsDefault:                org.IsDefault,
		OpenMembership:           org.Flags.AllowJoinLeave,
		AllowSharedIssues:        !org.Flags.DisableSharedIssues,
		EnhancedPrivacy:          org.Flags.EnhancedPrivacy,
		IsEarlyAdopter:           org.Flags.EarlyAdopter,
		CodecovAccess:            org.Flags.CodecovAccess,
		Require2FA:               org.Flags.Require2FA,
		RequireEmailVerification: org.Flags.RequireEmailVerification,
		DateCreated:              org.CreatedAt,
	}
}

func principal(r *http.Request) orgservice.Principal {
	userID, ok := middleware.GetUserID(r.Context())
	return orgservice.Principal{
		UserID:        userID,
		Authenticated: ok,
		IPAddress:     auth.ClientIP(r),
	}
}

// Get returns an organization with its options.
// GET /v1/organizations/{slug}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), chi.URLParam(r, "slug"), principal(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := toResponse(view.Organization)
	resp.Options = view.Options
	resp.TrustedRelays = view.TrustedRelays
	resp.Scopes = view.Actor.Scopes
	if view.PendingDeletion != nil {
		resp.DeletionScheduled = &view.PendingDeletion.DateScheduled
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// Update applies a partial settings update.
// PUT /v1/organizations/{slug}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req orgsettings.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			httputil.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			httputil.Error(w, http.StatusBadRequest, "request body is required")
		default:
			httputil.Error(w, http.StatusBadRequest, "invalid request body")
		}
		return
	}

	result, err := h.service.Update(r.Context(), chi.URLParam(r, "slug"), principal(r), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	changes := result.Changes
	if changes == nil {
		changes = domain.ChangeSet{}
	}
	httputil.JSON(w, http.StatusOK, UpdateResponse{
		OrganizationResponse: toResponse(result.Organization),
		Changes:              changes,
		Restored:             result.Restored,
	})
}

// Delete schedules an organization for deletion.
// DELETE /v1/organizations/{slug}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.Delete(r.Context(), chi.URLParam(r, "slug"), principal(r))
	if err != nil && !(errors.Is(err, domain.ErrOrganizationNotVisible) && org != nil) {
		h.writeError(w, r, err)
		return
	}
	// An organization already on its way out is reported as accepted.
	httputil.JSON(w, http.StatusAccepted, toResponse(org))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	var cerr *domain.ConflictError

	switch {
	case errors.As(err, &verr):
		httputil.FieldErrors(w, verr.Fields)
	case errors.As(err, &cerr):
		httputil.JSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error:  cerr.Message,
			Fields: map[string]string{cerr.Field: cerr.Message},
		})
	case errors.Is(err, domain.ErrNotAuthenticated):
		httputil.Error(w, http.StatusUnauthorized, domain.ErrNotAuthenticated.Error())
	case errors.Is(err, domain.ErrForbidden):
		httputil.Error(w, http.StatusForbidden, domain.ErrForbidden.Error())
	case errors.Is(err, domain.ErrOrganizationNotFound):
		httputil.Error(w, http.StatusNotFound, "organization not found")
	case errors.Is(err, domain.ErrDefaultOrganization):
		httputil.Error(w, http.StatusBadRequest, domain.ErrDefaultOrganization.Error())
	default:
		h.logger.ErrorContext(r.Context(), "organization request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		httputil.Error(w, http.StatusInternalServerError, "internal error")
	}
}
