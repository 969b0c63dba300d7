package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFilesDefaults(t *testing.T) {
	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 8085, config.Server.Port)
	assert.Equal(t, "./data/conductor", config.Storage.Badger.Path)
	assert.Equal(t, "info", config.Logging.Level)
	assert.False(t, config.Scheduler.Enabled)
}

func TestLoadFromFilesMergeOrder(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
[server]
port = 9000
host = "0.0.0.0"

[logging]
level = "debug"
`)
	override := writeConfigFile(t, "override.toml", `
[server]
port = 9100
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	// Later file wins for port, earlier file's untouched values survive
	assert.Equal(t, 9100, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoadFromFilesEnvOverrides(t *testing.T) {
	base := writeConfigFile(t, "base.toml", `
[server]
port = 9000
`)

	t.Setenv("CONDUCTOR_SERVER_PORT", "9200")
	t.Setenv("CONDUCTOR_LOG_OUTPUT", "stdout, file")
	t.Setenv("CONDUCTOR_SCHEDULER_ENABLED", "true")

	config, err := LoadFromFiles(base)
	require.NoError(t, err)

	assert.Equal(t, 9200, config.Server.Port)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.True(t, config.Scheduler.Enabled)
}

func TestLoadFromFilesMissingFile(t *testing.T) {
	_, err := LoadFromFiles("/nonexistent/conductor.toml")
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	config := NewDefaultConfig()
	ApplyFlagOverrides(config, 7777, "127.0.0.1")

	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)

	// Zero/empty flags leave config untouched
	ApplyFlagOverrides(config, 0, "")
	assert.Equal(t, 7777, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
}

func TestExecutorTimeout(t *testing.T) {
	assert.Equal(t, 45*time.Second, ExecutorConfig{CommandTimeout: "45s"}.Timeout())
	assert.Equal(t, time.Duration(0), ExecutorConfig{}.Timeout())
	assert.Equal(t, time.Duration(0), ExecutorConfig{CommandTimeout: "junk"}.Timeout())
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"every 30 minutes", "*/30 * * * *", false},
		{"hourly", "0 * * * *", false},
		{"every minute rejected", "* * * * *", true},
		{"every 2 minutes rejected", "*/2 * * * *", true},
		{"garbage rejected", "not a cron", true},
		{"too few fields", "0 *", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(tt.schedule)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
