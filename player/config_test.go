package player

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 20480, cfg.BufferSize)
	assert.Equal(t, 5, cfg.Priority)
	assert.Equal(t, 4096, cfg.StackSize)
	assert.Equal(t, NoAffinity, cfg.CoreID)
	assert.False(t, cfg.Strict)
	assert.NoError(t, cfg.validate())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "player.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "buffer_size: 65536\nstrict: true\ncore_id: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 65536, cfg.BufferSize)
	assert.True(t, cfg.Strict)
	assert.Equal(t, 1, cfg.CoreID)
	assert.Equal(t, DefaultPriority, cfg.Priority)
	assert.Equal(t, DefaultStackSize, cfg.StackSize)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "buffer_size: [1, 2\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "priority: -1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultBufferSize, cfg.BufferSize)
	assert.Equal(t, DefaultPriority, cfg.Priority)
	assert.Equal(t, DefaultStackSize, cfg.StackSize)
	assert.NotNil(t, cfg.Logger)

	cfg = Config{Priority: 2, StackSize: 8192}.withDefaults()
	assert.Equal(t, 2, cfg.Priority)
	assert.Equal(t, 8192, cfg.StackSize)
}
