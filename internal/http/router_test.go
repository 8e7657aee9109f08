package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/internal/config"
	"github.com/tendant/simple-org-slim/pkg/auth"
	"github.com/tendant/simple-org-slim/pkg/domain"
	"github.com/tendant/simple-org-slim/pkg/orgservice"
	"github.com/tendant/simple-org-slim/pkg/orgsettings"
)

type stubOrganizations struct {
	org     *domain.Organization
	updates int
}

func (s *stubOrganizations) Get(_ context.Context, _ string, _ orgservice.Principal) (*orgservice.OrganizationView, error) {
	return &orgservice.OrganizationView{Organization: s.org}, nil
}

func (s *stubOrganizations) Update(_ context.Context, _ string, _ orgservice.Principal, _ *orgsettings.UpdateRequest) (*orgservice.UpdateResult, error) {
	s.updates++
	return &orgservice.UpdateResult{Organization: s.org, Changes: domain.ChangeSet{}}, nil
}

func (s *stubOrganizations) Delete(_ context.Context, _ string, _ orgservice.Principal) (*domain.Organization, error) {
	return s.org, nil
}

var testSecurityHeaders = config.SecurityHeadersConfig{
	Enabled:            true,
	CSP:                "default-src 'none'; frame-ancestors 'none'",
	FrameOptions:       "DENY",
	ContentTypeOptions: "nosniff",
	CacheControl:       "no-store",
}

func newTestRouter(t *testing.T, orgs *stubOrganizations) (http.Handler, string) {
	t.Helper()
	tokens := auth.NewTokenService(auth.TokenConfig{JWTSecret: []byte("test-secret-key-at-least-32-bytes!!")})
	token, err := tokens.Issue(&domain.User{ID: uuid.New()}, time.Now())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	r := NewRouter(RouterConfig{
		Organizations:   orgs,
		Tokens:          tokens,
		SecurityHeaders: testSecurityHeaders,
		MaxRequestBody:  256,
	})
	return r, token
}

func testOrganization() *domain.Organization {
	return &domain.Organization{ID: uuid.New(), Slug: "acme", Name: "Acme", Status: domain.OrganizationStatusVisible}
}

func TestNewRouter_Health(t *testing.T) {
	r, _ := newTestRouter(t, &stubOrganizations{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestNewRouter_OrganizationsRequireAuth(t *testing.T) {
	r, _ := newTestRouter(t, &stubOrganizations{})

	for _, method := range []string{"GET", "PUT", "DELETE"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, "/v1/organizations/acme", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", method, w.Code)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("%s: Cache-Control = %q, want no-store", method, got)
		}
	}
}

func TestNewRouter_OrganizationResponseHeaders(t *testing.T) {
	r, token := newTestRouter(t, &stubOrganizations{org: testOrganization()})

	req := httptest.NewRequest("GET", "/v1/organizations/acme", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	want := map[string]string{
		"Content-Type":            "application/json",
		"Content-Security-Policy": testSecurityHeaders.CSP,
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Cache-Control":           "no-store",
	}
	for name, value := range want {
		if got := w.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
	if !strings.Contains(w.Body.String(), `"slug":"acme"`) {
		t.Errorf("body = %s, want the organization", w.Body.String())
	}
}

func TestNewRouter_UpdateBodyLimit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		chunked    bool
		wantStatus int
		wantCalls  int
	}{
		{name: "within limit", body: `{"name":"Acme Inc"}`, wantStatus: http.StatusOK, wantCalls: 1},
		{name: "declared length over limit", body: `{"name":"` + strings.Repeat("a", 300) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
		{name: "chunked body over limit", body: `{"name":"` + strings.Repeat("a", 300) + `"}`, chunked: true, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orgs := &stubOrganizations{org: testOrganization()}
			r, token := newTestRouter(t, orgs)

			req := httptest.NewRequest("PUT", "/v1/organizations/acme", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set("Content-Type", "application/json")
			if tt.chunked {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if orgs.updates != tt.wantCalls {
				t.Errorf("service updates = %d, want %d", orgs.updates, tt.wantCalls)
			}
		})
	}
}
