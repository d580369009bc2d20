package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Level: "warn", Format: "json"}.New(&buf)

	l.Info().Msg("hidden")
	l.Warn().Str("route", "loop").Msg("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "loop", entry["route"])
	assert.Equal(t, "shown", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{Level: "debug", NoColor: true}.New(&buf)

	l.Debug().Int("samples", 3).Msg("Profile built")
	assert.Contains(t, buf.String(), "Profile built")
	assert.Contains(t, buf.String(), "samples=3")
}

func TestLevelFallback(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, Logger{}.level())
	assert.Equal(t, zerolog.InfoLevel, Logger{Level: "loud"}.level())
	assert.Equal(t, zerolog.TraceLevel, Logger{Level: " TRACE "}.level())
	assert.Equal(t, "console", Logger{Format: "yaml"}.format())
	assert.Equal(t, "json", Logger{Format: "JSON"}.format())
}
