package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL    string
	DBMaxConns     int32
	DBMinConns     int32
	MigrateOnStart bool

	// MessageKeyHex is the hex-encoded 32-byte key messages are
	// encrypted with before they reach storage.
	MessageKeyHex string

	// If true, /readyz returns 503 unless the database is configured
	// and reachable.
	ReadinessRequireDB bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("DIALOGIX_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("DIALOGIX_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("DIALOGIX_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       EnvDuration("DIALOGIX_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("DIALOGIX_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL:    EnvString("DIALOGIX_DATABASE_URL", ""),
		DBMaxConns:     EnvInt32("DIALOGIX_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("DIALOGIX_DB_MIN_CONNS", 0),
		MigrateOnStart: EnvBool("DIALOGIX_DB_MIGRATE", true),

		MessageKeyHex: EnvString("DIALOGIX_MESSAGE_KEY", ""),

		ReadinessRequireDB: EnvBool("DIALOGIX_READINESS_REQUIRE_DB", false),

		CORSAllowedOrigins:   EnvCSV("DIALOGIX_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("DIALOGIX_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("DIALOGIX_CORS_MAX_AGE_SECONDS", 600),
	}
}
