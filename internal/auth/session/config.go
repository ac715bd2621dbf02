package session

import (
	"os"
	"time"
)

// Config defines runtime configuration for the session subsystem.
//
// It is environment-driven so production deployments can tune token
// lifetimes and secrets without code changes.
type Config struct {
	// Issuer is the value set in the "iss" claim of both tokens.
	Issuer string

	// AccessTokenTTL is the lifetime of access tokens.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the lifetime of refresh tokens and of the
	// persisted session rows they bind to.
	RefreshTokenTTL time.Duration

	// AccessSecret and RefreshSecret are independent HMAC keys. Signing
	// the two token kinds with distinct secrets prevents a refresh token
	// from ever verifying as an access token or vice versa.
	AccessSecret  string
	RefreshSecret string
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		Issuer:          "dialogix",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 30 * 24 * time.Hour,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - DIALOGIX_ACCESS_TOKEN_SECRET
//   - DIALOGIX_REFRESH_TOKEN_SECRET
//
// Optional (Go duration strings):
//   - DIALOGIX_AUTH_ISSUER
//   - DIALOGIX_ACCESS_TOKEN_TTL
//   - DIALOGIX_REFRESH_TOKEN_TTL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("DIALOGIX_AUTH_ISSUER"); v != "" {
		cfg.Issuer = v
	}

	if v := os.Getenv("DIALOGIX_ACCESS_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.AccessTokenTTL = d
	}

	if v := os.Getenv("DIALOGIX_REFRESH_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.RefreshTokenTTL = d
	}

	cfg.AccessSecret = os.Getenv("DIALOGIX_ACCESS_TOKEN_SECRET")
	cfg.RefreshSecret = os.Getenv("DIALOGIX_REFRESH_TOKEN_SECRET")
	if len(cfg.AccessSecret) < 32 || len(cfg.RefreshSecret) < 32 {
		return Config{}, ErrConfig
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return Config{}, ErrConfig
	}

	if cfg.RefreshTokenTTL < cfg.AccessTokenTTL {
		return Config{}, ErrConfig
	}

	return cfg, nil
}
