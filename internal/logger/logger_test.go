package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"solana-wallet-engine/internal/config"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	dir := t.TempDir()
	log, err := New(config.LogConfig{Format: "json", LogDir: dir, Level: "debug"})
	require.NoError(t, err)

	log.Debug("tx confirmed")
	_ = log.Sync()

	data, err := os.ReadFile(filepath.Join(dir, fileName))
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"tx confirmed"`), string(data))
}

func TestNew_LevelFilters(t *testing.T) {
	log, err := New(config.LogConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestNew_Rejects(t *testing.T) {
	_, err := New(config.LogConfig{Format: "xml"})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
