package auth

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

const (
	// TOTP parameters
	totpDigits = otp.DigitsSix
	totpPeriod = 30
	totpWindow = 1 // Allow ±30 seconds clock drift

	// DefaultSudoWindow is how long an interactive login counts as recent.
	DefaultSudoWindow = 10 * time.Minute
)

// SudoConfig configures re-authentication checks.
type SudoConfig struct {
	Window        time.Duration
	EncryptionKey []byte // 32 bytes for AES-256
}

// SecretStore reads TOTP secrets.
type SecretStore interface {
	GetByUserIDAndMethod(ctx context.Context, userID uuid.UUID, method domain.MFAMethod) (*domain.MFASecret, error)
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
}

// PasswordStore reads password credentials.
type PasswordStore interface {
	GetPassword(ctx context.Context, userID uuid.UUID) (*domain.UserPassword, error)
}

// SudoProof is the fresh credential a caller may present.
type SudoProof struct {
	OTP      string
	Password string
}

// SudoService decides whether a caller recently proved who they are.
type SudoService struct {
	config    SudoConfig
	secrets   SecretStore
	passwords PasswordStore
	now       func() time.Time
}

// NewSudoService creates a sudo service.
func NewSudoService(config SudoConfig, secrets SecretStore, passwords PasswordStore) *SudoService {
	if config.Window == 0 {
		config.Window = DefaultSudoWindow
	}
	return &SudoService{
		config:    config,
		secrets:   secrets,
		passwords: passwords,
		now:       time.Now,
	}
}

// Verify accepts a login within the sudo window, otherwise a valid TOTP code,
// otherwise a valid password.
func (s *SudoService) Verify(ctx context.Context, userID uuid.UUID, authTime time.Time, proof SudoProof) error {
	if !authTime.IsZero() && s.now().Sub(authTime) <= s.config.Window {
		return nil
	}

	if code := strings.TrimSpace(proof.OTP); code != "" {
		valid, err := s.verifyTOTP(ctx, userID, code)
		if err != nil {
			return err
		}
		if !valid {
			return domain.ErrInvalidMFACode
		}
		return nil
	}

	if proof.Password != "" {
		cred, err := s.passwords.GetPassword(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				return domain.ErrInvalidCredentials
			}
			return err
		}
		if !VerifyPassword(proof.Password, cred.PasswordHash) {
			return domain.ErrInvalidCredentials
		}
		return nil
	}

	return domain.ErrSudoRequired
}

func (s *SudoService) verifyTOTP(ctx context.Context, userID uuid.UUID, code string) (bool, error) {
	secret, err := s.secrets.GetByUserIDAndMethod(ctx, userID, domain.MFAMethodTOTP)
	if err != nil {
		return false, err
	}

	plain, err := s.decryptSecret(secret.SecretEncrypted)
	if err != nil {
		return false, fmt.Errorf("failed to decrypt TOTP secret: %w", err)
	}

	valid, err := totp.ValidateCustom(code, plain, s.now(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpWindow,
		Digits:    totpDigits,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, nil
	}

	if valid {
		// Update last used timestamp
		if err := s.secrets.UpdateLastUsed(ctx, secret.ID); err != nil {
			return false, fmt.Errorf("failed to update last used: %w", err)
		}
	}
	return valid, nil
}

// EncryptSecret encrypts a plaintext TOTP secret using AES-256-GCM.
func (s *SudoService) EncryptSecret(plaintext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *SudoService) decryptSecret(encrypted string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

func (s *SudoService) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.config.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
