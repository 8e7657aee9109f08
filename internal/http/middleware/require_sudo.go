package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/internal/httputil"
	"github.com/tendant/simple-org-slim/pkg/auth"
	"github.com/tendant/simple-org-slim/pkg/domain"
)

// Headers carrying a sudo proof.
const (
	SudoOTPHeader      = "X-Sudo-OTP"
	SudoPasswordHeader = "X-Sudo-Password"
)

// SudoVerifier checks that a user authenticated recently.
type SudoVerifier interface {
	Verify(ctx context.Context, userID uuid.UUID, authTime time.Time, proof auth.SudoProof) error
}

// RequireSudo guards destructive endpoints. The token must be recent or the
// request must carry a TOTP code or the account password.
// This middleware should be applied AFTER the Auth middleware.
//
// Example usage:
//
//	r.With(middleware.Auth(tokens)).
//	  With(middleware.RequireSudo(sudo, logger)).
//	  Delete("/v1/organizations/{slug}", orgHandler.Delete)
func RequireSudo(sudo SudoVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			userID, ok := GetUserID(r.Context())
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			proof := auth.SudoProof{
				OTP:      r.Header.Get(SudoOTPHeader),
				Password: r.Header.Get(SudoPasswordHeader),
			}

			err := sudo.Verify(r.Context(), userID, claims.LastAuthenticated(), proof)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, domain.ErrSudoRequired):
				httputil.Error(w, http.StatusForbidden, "recent authentication required for this operation")
			case errors.Is(err, domain.ErrInvalidMFACode), errors.Is(err, domain.ErrInvalidCredentials):
				httputil.Error(w, http.StatusForbidden, err.Error())
			default:
				if logger != nil {
					logger.ErrorContext(r.Context(), "sudo verification failed", "user_id", userID, "error", err)
				}
				httputil.Error(w, http.StatusInternalServerError, "internal error")
			}
		})
	}
}
