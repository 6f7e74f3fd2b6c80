package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONWithComponent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := DefaultConfig()
	cfg.Format, cfg.Output, cfg.Level = "json", path, "debug"
	require.NoError(t, Setup(cfg))
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	WithComponent("ledger").Info().Str("sale_id", "ABC123XYZ").Msg("settled")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "ledger", entry["component"])
	assert.Equal(t, "ABC123XYZ", entry["sale_id"])
	assert.Equal(t, "settled", entry["message"])
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "loud"
	assert.Error(t, Setup(cfg))
}
