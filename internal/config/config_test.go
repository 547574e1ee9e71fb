package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"QUICKCOURT_API_URL",
		"QUICKCOURT_SESSION_STORE",
		"QUICKCOURT_SESSION_PATH",
		"QUICKCOURT_REFRESH_SCHEDULE",
		"QUICKCOURT_ALLOW_LEGACY_TOKENS",
		"QUICKCOURT_DASH_ADDR",
		"QUICKCOURT_DASH_ALLOWED_ORIGINS",
		"QUICKCOURT_ROUTES_FILE",
		"QUICKCOURT_EMAIL",
		"QUICKCOURT_PASSWORD",
		"LOG_LEVEL",
		"LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DefaultAPIURL, cfg.API.URL)
	require.Equal(t, "keyring", cfg.Session.Store)
	require.Empty(t, cfg.Session.Path)
	require.Equal(t, DefaultRefreshSchedule, cfg.Session.RefreshSchedule)
	require.True(t, cfg.Session.AllowLegacyTokens)
	require.Equal(t, DefaultDashAddr, cfg.Dash.Addr)
	require.Empty(t, cfg.Dash.AllowedOrigins)
	require.Equal(t, "warn", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUICKCOURT_API_URL", "https://api.quickcourt.test/api")
	t.Setenv("QUICKCOURT_SESSION_STORE", "SQLite")
	t.Setenv("QUICKCOURT_SESSION_PATH", "/tmp/qc.sqlite")
	t.Setenv("QUICKCOURT_REFRESH_SCHEDULE", "*/1 * * * *")
	t.Setenv("QUICKCOURT_ALLOW_LEGACY_TOKENS", "false")
	t.Setenv("QUICKCOURT_DASH_ADDR", "localhost:9000")
	t.Setenv("QUICKCOURT_DASH_ALLOWED_ORIGINS", "http://localhost:5173, https://app.quickcourt.test ,")
	t.Setenv("QUICKCOURT_EMAIL", "owner@quickcourt.test")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.quickcourt.test/api", cfg.API.URL)
	require.Equal(t, "sqlite", cfg.Session.Store)
	require.Equal(t, "/tmp/qc.sqlite", cfg.Session.Path)
	require.Equal(t, "*/1 * * * *", cfg.Session.RefreshSchedule)
	require.False(t, cfg.Session.AllowLegacyTokens)
	require.Equal(t, "localhost:9000", cfg.Dash.Addr)
	require.Equal(t, []string{"http://localhost:5173", "https://app.quickcourt.test"}, cfg.Dash.AllowedOrigins)
	require.Equal(t, "owner@quickcourt.test", cfg.Credentials.Email)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown store", "QUICKCOURT_SESSION_STORE", "redis"},
		{"bad api url", "QUICKCOURT_API_URL", "not a url"},
		{"bad legacy flag", "QUICKCOURT_ALLOW_LEGACY_TOKENS", "sometimes"},
		{"bad dash addr", "QUICKCOURT_DASH_ADDR", "7420"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"bad email", "QUICKCOURT_EMAIL", "nobody"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
