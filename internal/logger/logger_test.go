package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	log.Info().Msg("hidden")
	require.Zero(t, buf.Len())

	log.Warn().Str("user_id", "u1").Msg("visible")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, "u1", entry["user_id"])
	require.Equal(t, "visible", entry["message"])
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug", "console")

	log.Debug().Msg("session restored")
	require.Contains(t, buf.String(), "session restored")
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, zerolog.DebugLevel, parseLogLevel("DEBUG"))
	require.Equal(t, zerolog.WarnLevel, parseLogLevel("warning"))
	require.Equal(t, zerolog.InfoLevel, parseLogLevel("loud"))
}
