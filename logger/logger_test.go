package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Levels(t *testing.T) {
	require.NoError(t, Init(Config{Level: "WARN"}))
	assert.Equal(t, zerolog.WarnLevel, GetLogger().GetLevel())

	require.NoError(t, Init(Config{Level: "error", Debug: true}))
	assert.Equal(t, zerolog.DebugLevel, GetLogger().GetLevel())

	assert.Error(t, Init(Config{Level: "loud"}))

	require.NoError(t, Init(Config{Level: "info"}))
}

func TestWithComponent_KeepsLevel(t *testing.T) {
	require.NoError(t, Init(Config{Level: "debug"}))
	defer func() { _ = Init(Config{Level: "info"}) }()

	l := WithComponent("poller")
	assert.Equal(t, zerolog.DebugLevel, l.GetLevel())
}

func TestInit_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kendalinet.log")
	require.NoError(t, Init(Config{Output: path}))
	defer func() { _ = Init(Config{}) }()

	pl := WithComponent("poller")
	pl.Info().Str("router_id", "r1").Msg("Poll cycle complete")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "kendalinet-layer", entry["service"])
	assert.Equal(t, "poller", entry["component"])
	assert.Equal(t, "r1", entry["router_id"])
	assert.Equal(t, "Poll cycle complete", entry["message"])
}

func TestInit_BadOutput(t *testing.T) {
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "x.log")})
	assert.Error(t, err)
}
