package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Auth.Required)
	assert.True(t, cfg.Auth.RehashOnStart)
	assert.Equal(t, "Bruno Costa", cfg.Webhook.DefaultUser)
	assert.Equal(t, "1", cfg.Identify.HighAmountCard)
	assert.Equal(t, "3", cfg.Identify.LowAmountCard)
	assert.Equal(t, 2*time.Second, cfg.Jobs.PollInterval)
	assert.Empty(t, cfg.Store.URL)
}

func TestLoadEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DASHFIN_STORE_URL", "sqlite:///tmp/dashfin.db")
	t.Setenv("DASHFIN_SERVER_PORT", "9090")
	t.Setenv("DASHFIN_WEBHOOK_DEFAULT_USER", "Ana")
	t.Setenv("DASHFIN_JOBS_POLL_INTERVAL", "500ms")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "sqlite:///tmp/dashfin.db", cfg.Store.URL)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "Ana", cfg.Webhook.DefaultUser)
	assert.Equal(t, 500*time.Millisecond, cfg.Jobs.PollInterval)
}

func TestLoadFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  url: file:data/dashfin.db
log:
  level: warn
auth:
  required: false
`), 0o600))

	cfg, err := Load(path, map[string]any{"log.level": "debug", "log.format": ""})
	require.NoError(t, err)

	assert.Equal(t, "file:data/dashfin.db", cfg.Store.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Auth.Required)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := Load("does-not-exist.yaml", nil)
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DASHFIN_LOG_FORMAT=console\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("DASHFIN_LOG_FORMAT") })

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestValidate(t *testing.T) {
	base := Config{Server: ServerConfig{Port: 8080}}

	tests := []struct {
		name    string
		store   StoreConfig
		wantErr error
	}{
		{"missing url", StoreConfig{}, ErrMissingConfig},
		{"postgres without key", StoreConfig{URL: "postgres://db.example.com/dashfin"}, ErrMissingConfig},
		{"postgres with key", StoreConfig{URL: "postgresql://db.example.com/dashfin", Key: "secret"}, nil},
		{"sqlite needs no key", StoreConfig{URL: "sqlite://dashfin.db"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Store = tt.store
			err := cfg.Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
