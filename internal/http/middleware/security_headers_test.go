package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tendant/simple-org-slim/internal/config"
)

func apiHeadersConfig() config.SecurityHeadersConfig {
	return config.SecurityHeadersConfig{
		Enabled:            true,
		CSP:                "default-src 'none'; frame-ancestors 'none'",
		HSTSMaxAge:         31536000,
		FrameOptions:       "DENY",
		ContentTypeOptions: "nosniff",
		ReferrerPolicy:     "no-referrer",
		CacheControl:       "no-store",
	}
}

func TestSecurityHeaders(t *testing.T) {
	cfg := apiHeadersConfig()
	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/v1/organizations/acme", nil))

	want := map[string]string{
		"Content-Security-Policy":   cfg.CSP,
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"X-Frame-Options":           "DENY",
		"X-Content-Type-Options":    "nosniff",
		"Referrer-Policy":           "no-referrer",
		"Cache-Control":             "no-store",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if got := w.Header().Get("Permissions-Policy"); got != "" {
		t.Errorf("Permissions-Policy should not be set when empty, got %q", got)
	}
	if got := w.Header().Get("X-XSS-Protection"); got != "" {
		t.Errorf("X-XSS-Protection should not be set, got %q", got)
	}
}

func TestSecurityHeaders_Disabled(t *testing.T) {
	cfg := apiHeadersConfig()
	cfg.Enabled = false

	handler := SecurityHeaders(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	for _, name := range []string{"Content-Security-Policy", "Cache-Control", "X-Frame-Options"} {
		if got := w.Header().Get(name); got != "" {
			t.Errorf("%s should not be set when disabled, got %q", name, got)
		}
	}
}

func TestSecurityHeaders_HandlerOverridesCacheControl(t *testing.T) {
	handler := SecurityHeaders(apiHeadersConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "max-age=60")
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if got := w.Header().Get("Cache-Control"); got != "max-age=60" {
		t.Errorf("Cache-Control = %q, want max-age=60", got)
	}
}
