package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

const (
	defaultMaxBodyBytes      = 1 << 20 // 1 MiB
	defaultRefreshCookieName = "refreshToken"
	defaultCookiePath        = "/"
)

// Config tunes the HTTP auth surface. The refresh cookie is HTTP-only
// and SameSite=Strict always; only Secure and the domain are knobs.
type Config struct {
	MaxBodyBytes int64

	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// DefaultConfig returns defaults suitable for development.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      defaultMaxBodyBytes,
		RefreshCookieName: defaultRefreshCookieName,
		CookiePath:        defaultCookiePath,
		CookieSameSite:    http.SameSiteStrictMode,
	}
}

// LoadConfigFromEnv builds a Config with validated defaults.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.CookieDomain = strings.TrimSpace(os.Getenv("DIALOGIX_COOKIE_DOMAIN"))

	if v := strings.TrimSpace(os.Getenv("DIALOGIX_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("DIALOGIX_COOKIE_SECURE")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CookieSecure = b
		}
	}

	return cfg
}
