package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "instagram.com", cfg.Platform.Domain)
	assert.Equal(t, 3*time.Minute, cfg.Actions.Timeout)
	assert.Equal(t, DefaultEmojis, cfg.Actions.Emojis)
	assert.Contains(t, cfg.Platform.WarningKeywords, "suspicious")
	assert.Len(t, cfg.Platform.NotFoundPhrases, 3)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty domain", func(c *Config) { c.Platform.Domain = " " }, "platform.domain"},
		{"zero timeout", func(c *Config) { c.Actions.Timeout = 0 }, "actions.timeout"},
		{"inverted comment range", func(c *Config) { c.Actions.CommentMinSec = 6 }, "comment_settle"},
		{"inverted pacing", func(c *Config) { c.Pacing.JitterMax = time.Millisecond }, "pacing"},
		{"unknown ledger backend", func(c *Config) { c.Storage.LedgerBackend = "redis" }, "ledger_backend"},
		{"no api budget", func(c *Config) { c.API.RequestsPerMin = 0 }, "requests_per_minute"},
		{"no helper", func(c *Config) { c.Helper.Command = nil }, "helper.command"},
		{"schedule without users", func(c *Config) { c.Schedule.Enabled = true }, "schedule.usernames"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Platform, cfg.Platform)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[platform]
domain = "platform.example"

[server]
addr = ":8080"

[schedule]
enabled = true
usernames = ["alice", "bob"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "platform.example", cfg.Platform.Domain)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"alice", "bob"}, cfg.Schedule.Usernames)
	// Untouched sections keep their defaults.
	assert.Equal(t, "file", cfg.Storage.LedgerBackend)
	assert.Equal(t, Default().Platform.WarningKeywords, cfg.Platform.WarningKeywords)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("IGW_SERVER_ADDR", ":9999")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Platform.Domain = "platform.example"
	cfg.Actions.Emojis = []string{"🎉"}
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "platform.example", loaded.Platform.Domain)
	assert.Equal(t, []string{"🎉"}, loaded.Actions.Emojis)
	assert.Equal(t, cfg.Actions.Timeout, loaded.Actions.Timeout)
}
