package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := NewTokenService(TokenConfig{JWTSecret: []byte("test-secret"), Issuer: "simple-org"})
	user := &domain.User{ID: uuid.New(), Email: "owner@example.com", EmailVerified: true, MFAEnabled: true}
	authTime := time.Now().Add(-time.Minute).Truncate(time.Second)

	token, err := svc.Issue(user, authTime)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken() error = %v", err)
	}
	if claims.Subject != user.ID.String() {
		t.Errorf("Subject = %q, want %q", claims.Subject, user.ID)
	}
	if !claims.MFAVerified {
		t.Error("MFAVerified = false, want true")
	}
	if !claims.LastAuthenticated().Equal(authTime) {
		t.Errorf("LastAuthenticated() = %v, want %v", claims.LastAuthenticated(), authTime)
	}

	id, err := svc.GetUserIDFromToken(token)
	if err != nil || id != user.ID {
		t.Errorf("GetUserIDFromToken() = %v, %v", id, err)
	}
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService(TokenConfig{JWTSecret: []byte("test-secret"), Issuer: "simple-org"})
	user := &domain.User{ID: uuid.New()}

	otherKey := NewTokenService(TokenConfig{JWTSecret: []byte("other"), Issuer: "simple-org"})
	forged, _ := otherKey.Issue(user, time.Now())

	otherIssuer := NewTokenService(TokenConfig{JWTSecret: []byte("test-secret"), Issuer: "elsewhere"})
	foreign, _ := otherIssuer.Issue(user, time.Now())

	expiredSvc := NewTokenService(TokenConfig{JWTSecret: []byte("test-secret"), Issuer: "simple-org"})
	expiredSvc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expired, _ := expiredSvc.Issue(user, time.Now().Add(-time.Hour))

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: user.ID.String(), Issuer: "simple-org"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := map[string]string{
		"garbage":      "not.a.token",
		"wrong key":    forged,
		"wrong issuer": foreign,
		"expired":      expired,
		"alg none":     unsigned,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(token)
			if !errors.Is(err, domain.ErrInvalidToken) {
				t.Errorf("ValidateAccessToken() error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestAccessTokenClaims_LastAuthenticatedFallsBackToIssuedAt(t *testing.T) {
	iat := time.Unix(1700000000, 0)
	claims := &AccessTokenClaims{RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(iat)}}
	if !claims.LastAuthenticated().Equal(iat) {
		t.Errorf("LastAuthenticated() = %v, want %v", claims.LastAuthenticated(), iat)
	}

	if !(&AccessTokenClaims{}).LastAuthenticated().IsZero() {
		t.Error("LastAuthenticated() without claims should be zero")
	}
}
