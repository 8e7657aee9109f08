package middleware

import (
	"fmt"
	"net/http"

	"github.com/tendant/simple-org-slim/internal/config"
)

// SecurityHeaders sets the response headers of a JSON API: no framing, no
// content sniffing and no caching of organization data. Empty values are
// skipped.
func SecurityHeaders(cfg config.SecurityHeadersConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	headers := make(map[string]string)
	set := func(name, value string) {
		if value != "" {
			headers[name] = value
		}
	}
	set("Content-Security-Policy", cfg.CSP)
	if cfg.HSTSMaxAge > 0 {
		set("Strict-Transport-Security", fmt.Sprintf("max-age=%d; includeSubDomains", cfg.HSTSMaxAge))
	}
	set("X-Frame-Options", cfg.FrameOptions)
	set("X-Content-Type-Options", cfg.ContentTypeOptions)
	set("Referrer-Policy", cfg.ReferrerPolicy)
	set("Permissions-Policy", cfg.PermissionsPolicy)
	set("Cache-Control", cfg.CacheControl)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range headers {
				h.Set(name, value)
			}
			next.ServeHTTP(w, r)
		})
	}
}
