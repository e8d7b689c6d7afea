package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsUnderOverride(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "planner.sqlite"), cfg.DBPath())
	assert.Equal(t, filepath.Join(dir, "images"), cfg.ImagesPath())
	assert.Equal(t, filepath.Join(dir, "shared", "projects.json"), cfg.SharedListPath())
	assert.Equal(t, filepath.Join(dir, "settings.json"), cfg.SettingsPath())
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.LogConsole)
	assert.Equal(t, 3*time.Second, cfg.NotificationDelay)
	assert.Equal(t, 5*time.Second, cfg.BusyTimeout)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "db_file: other.db\nimages_dir: /var/tmp/pics\nnotification_delay: 500ms\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(yaml), 0o644))
	t.Setenv("SEWPLAN_LOG_LEVEL", "debug")
	t.Setenv("SEWPLAN_DIR", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "other.db"), cfg.DBPath())
	assert.Equal(t, "/var/tmp/pics", cfg.ImagesPath())
	assert.Equal(t, 500*time.Millisecond, cfg.NotificationDelay)
	assert.Equal(t, "debug", cfg.LogLevel)
}
