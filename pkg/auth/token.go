package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

// DefaultAccessTokenTTL is the lifetime of tokens issued by Issue.
const DefaultAccessTokenTTL = 15 * time.Minute

// TokenConfig holds bearer token settings.
type TokenConfig struct {
	JWTSecret      []byte
	Issuer         string
	AccessTokenTTL time.Duration
}

// AccessTokenClaims represents the claims in an access token.
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	MFAVerified   bool   `json:"mfa_verified,omitempty"`
	// AuthTime is when the user last presented credentials.
	AuthTime *jwt.NumericDate `json:"auth_time,omitempty"`
}

// LastAuthenticated returns the auth_time claim, falling back to iat.
func (c *AccessTokenClaims) LastAuthenticated() time.Time {
	if c.AuthTime != nil {
		return c.AuthTime.Time
	}
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService creates a token service.
func NewTokenService(config TokenConfig) *TokenService {
	if config.AccessTokenTTL == 0 {
		config.AccessTokenTTL = DefaultAccessTokenTTL
	}
	return &TokenService{config: config, now: time.Now}
}

// Issue signs an access token for user. authTime is when the user last
// authenticated interactively.
func (s *TokenService) Issue(user *domain.User, authTime time.Time) (string, error) {
	now := s.now()
	claims := AccessTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.AccessTokenTTL)),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		Email:         user.Email,
		EmailVerified: user.EmailVerified,
		MFAVerified:   user.MFAEnabled,
		AuthTime:      jwt.NewNumericDate(authTime),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.JWTSecret)
}

// ValidateAccessToken validates an access token and returns the claims.
func (s *TokenService) ValidateAccessToken(tokenString string) (*AccessTokenClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessTokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.config.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessTokenClaims)
	if !ok || !token.Valid {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

// GetUserIDFromToken extracts the user ID from an access token.
func (s *TokenService) GetUserIDFromToken(tokenString string) (uuid.UUID, error) {
	claims, err := s.ValidateAccessToken(tokenString)
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return id, nil
}
