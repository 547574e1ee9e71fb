package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL          = "http://localhost:5000/api"
	DefaultRefreshSchedule = "@every 2m"
	DefaultDashAddr        = "127.0.0.1:7420"
)

// Config holds all configuration for the application
type Config struct {
	// Remote API Configuration
	API APIConfig

	// Session Configuration
	Session SessionConfig

	// Dashboard Configuration
	Dash DashConfig

	// Logging Configuration
	Logging LoggingConfig

	// Credentials picked up by the login command when flags are omitted
	Credentials CredentialsConfig
}

// APIConfig holds the remote backend configuration
type APIConfig struct {
	URL string `validate:"required,url"`
}

// SessionConfig holds session persistence and refresh configuration
type SessionConfig struct {
	Store             string `validate:"oneof=keyring file sqlite"`
	Path              string // file or sqlite location, empty for the default
	RefreshSchedule   string `validate:"required"`
	AllowLegacyTokens bool
}

// DashConfig holds the local dashboard configuration
type DashConfig struct {
	Addr           string   `validate:"required,hostname_port"`
	AllowedOrigins []string `validate:"dive,url"`
	RoutesFile     string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn warning error fatal panic"`
	Format string `validate:"oneof=json console"` // json, console
}

// CredentialsConfig holds optional login credentials
type CredentialsConfig struct {
	Email    string `validate:"omitempty,email"`
	Password string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	allowLegacy := true
	if v := os.Getenv("QUICKCOURT_ALLOW_LEGACY_TOKENS"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid QUICKCOURT_ALLOW_LEGACY_TOKENS %q: %w", v, err)
		}
		allowLegacy = parsed
	}

	cfg := &Config{
		API: APIConfig{
			URL: getenv("QUICKCOURT_API_URL", DefaultAPIURL),
		},
		Session: SessionConfig{
			Store:             strings.ToLower(getenv("QUICKCOURT_SESSION_STORE", "keyring")),
			Path:              os.Getenv("QUICKCOURT_SESSION_PATH"),
			RefreshSchedule:   getenv("QUICKCOURT_REFRESH_SCHEDULE", DefaultRefreshSchedule),
			AllowLegacyTokens: allowLegacy,
		},
		Dash: DashConfig{
			Addr:           getenv("QUICKCOURT_DASH_ADDR", DefaultDashAddr),
			AllowedOrigins: splitList(os.Getenv("QUICKCOURT_DASH_ALLOWED_ORIGINS")),
			RoutesFile:     os.Getenv("QUICKCOURT_ROUTES_FILE"),
		},
		// Logging configuration - defaults suited to an interactive CLI
		Logging: LoggingConfig{
			Level:  strings.ToLower(getenv("LOG_LEVEL", "warn")),
			Format: strings.ToLower(getenv("LOG_FORMAT", "console")),
		},
		Credentials: CredentialsConfig{
			Email:    os.Getenv("QUICKCOURT_EMAIL"),
			Password: os.Getenv("QUICKCOURT_PASSWORD"),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
