package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tendant/simple-org-slim/pkg/domain"
)

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr     string
	ServerPort     int
	MaxRequestBody int64

	Database        DatabaseConfig
	JWT             JWTConfig
	Sudo            SudoConfig
	NATS            NATSConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	Deletion        DeletionConfig
	Outbox          OutboxConfig

	// Region is reported to the mapping service with new slugs.
	Region string
	// RolesFile optionally replaces the built-in role set.
	RolesFile string
	// Features are granted to every organization.
	Features []string
	// CodecovProvider names the integration that unlocks codecovAccess.
	CodecovProvider string
	// NotifyProvider names the chat integration notices are routed through.
	NotifyProvider string

	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds Postgres settings.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnectTimeout  time.Duration
}

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret         string
	Issuer         string
	AccessTokenTTL time.Duration
}

// SudoConfig holds re-authentication settings for destructive operations.
type SudoConfig struct {
	Window           time.Duration
	MFAEncryptionKey string
}

// NATSConfig holds the messaging settings.
type NATSConfig struct {
	URL            string
	SubjectPrefix  string
	MappingSubject string
	RequestTimeout time.Duration
	MaxReconnect   int
	ReconnectWait  time.Duration
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled             bool
	ReadRequestsPerMin  int
	WriteRequestsPerMin int
	DeleteRequestsPerHr int
}

// SecurityHeadersConfig holds response security header values. The service
// only answers JSON, so the defaults forbid framing, rendering and caching.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	ReferrerPolicy     string
	PermissionsPolicy  string
	CacheControl       string
}

// DeletionConfig holds organization deletion settings.
type DeletionConfig struct {
	Delay time.Duration
}

// OutboxConfig holds outbox relay settings.
type OutboxConfig struct {
	Enabled      bool
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int

	// MaxRetryInterval caps the per-message retry delay.
	MaxRetryInterval time.Duration
}

// Load loads configuration from environment variables. A .env file in the
// working directory, or at envFile when set, is read first; variables
// already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	} else {
		// Missing .env is fine
		_ = godotenv.Load()
	}

	cfg := &Config{
		// Server defaults
		ServerAddr:     getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:     getEnvInt("SERVER_PORT", 8080),
		MaxRequestBody: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 2<<20)),

		// Database defaults (matches podman setup: make postgres-start)
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 25432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Name:            getEnv("DB_NAME", "simple_org"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", time.Minute),
		},

		JWT: JWTConfig{
			Secret:         getEnv("JWT_SECRET", ""),
			Issuer:         getEnv("JWT_ISSUER", "simple-org"),
			AccessTokenTTL: getEnvDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		},

		Sudo: SudoConfig{
			Window:           getEnvDuration("SUDO_WINDOW", 10*time.Minute),
			MFAEncryptionKey: getEnv("MFA_ENCRYPTION_KEY", ""),
		},

		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			SubjectPrefix:  getEnv("NATS_SUBJECT_PREFIX", "org.outbox"),
			MappingSubject: getEnv("NATS_MAPPING_SUBJECT", "org.mapping"),
			RequestTimeout: getEnvDuration("NATS_REQUEST_TIMEOUT", 5*time.Second),
			MaxReconnect:   getEnvInt("NATS_MAX_RECONNECT", 10),
			ReconnectWait:  getEnvDuration("NATS_RECONNECT_WAIT", 2*time.Second),
		},

		RateLimit: RateLimitConfig{
			Enabled:             getEnvBool("RATE_LIMIT_ENABLED", true),
			ReadRequestsPerMin:  getEnvInt("RATE_LIMIT_READ_PER_MIN", 120),
			WriteRequestsPerMin: getEnvInt("RATE_LIMIT_WRITE_PER_MIN", 30),
			DeleteRequestsPerHr: getEnvInt("RATE_LIMIT_DELETE_PER_HOUR", 5),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "no-referrer"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", ""),
			CacheControl:       getEnv("SECURITY_CACHE_CONTROL", "no-store"),
		},

		Deletion: DeletionConfig{
			Delay: getEnvDuration("DELETION_DELAY", 24*time.Hour),
		},

		Outbox: OutboxConfig{
			Enabled:          getEnvBool("OUTBOX_ENABLED", true),
			BatchSize:        getEnvInt("OUTBOX_BATCH_SIZE", 50),
			PollInterval:     getEnvDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			MaxAttempts:      getEnvInt("OUTBOX_MAX_ATTEMPTS", 10),
			MaxRetryInterval: getEnvDuration("OUTBOX_MAX_RETRY_INTERVAL", 5*time.Minute),
		},

		Region:          getEnv("REGION", "us"),
		RolesFile:       getEnv("ROLES_FILE", ""),
		Features:        getEnvList("ORG_FEATURES"),
		CodecovProvider: getEnv("CODECOV_PROVIDER", "codecov"),
		NotifyProvider:  getEnv("NOTIFY_PROVIDER", "slack"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
	}

	// Validate required fields
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if key := cfg.Sudo.MFAEncryptionKey; key != "" && len(key) != 32 {
		return nil, fmt.Errorf("MFA_ENCRYPTION_KEY must be 32 bytes, got %d", len(key))
	}

	return cfg, nil
}

// HasNATS returns true if a NATS server is configured.
func (c *Config) HasNATS() bool {
	return c.NATS.URL != ""
}

// rolesFile is the YAML layout of a roles file.
type rolesFile struct {
	Roles []domain.Role `yaml:"roles"`
}

// LoadRoles reads the role set from path. An empty path yields the built-in
// roles.
func LoadRoles(path string) (*domain.RoleSet, error) {
	if path == "" {
		return domain.DefaultRoles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roles file: %w", err)
	}

	var file rolesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roles file: %w", err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("roles file %s defines no roles", path)
	}
	for _, r := range file.Roles {
		if r.ID == "" {
			return nil, fmt.Errorf("roles file %s has a role without id", path)
		}
	}
	return domain.NewRoleSet(file.Roles...), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
