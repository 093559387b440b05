package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/idelchi/dirhover/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "dirhover.log")

	log, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: out})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("visible")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"msg":"visible"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingConfig{Level: "loud", Format: "json", Output: "stderr"})
	require.Error(t, err)
}

func TestSetLevel(t *testing.T) {
	log, err := New(config.LoggingConfig{Level: "warn", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, log.Level())

	require.NoError(t, log.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, log.Level())

	require.Error(t, log.SetLevel("nope"))
	assert.Equal(t, zapcore.DebugLevel, log.Level())
}

func TestNop(t *testing.T) {
	log := Nop()
	log.Info("dropped")
	require.NoError(t, log.SetLevel("error"))
}
