package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/cardclient"
	"github.com/capiscio/capiscio-cards/pkg/config"
	"github.com/capiscio/capiscio-cards/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, cardclient.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, config.StorageFile, cfg.StorageBackend)

	ttl, err := cfg.TTL()
	require.NoError(t, err)
	assert.Equal(t, jwt.DefaultTTL, ttl)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
app_id: app-123
api_key_id: key-1
api_key_path: /etc/capiscio/api.jwk
token_ttl: 5m
storage_backend: sqlite
storage_path: /var/lib/capiscio/keys.db
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "app-123", cfg.AppID)
	assert.Equal(t, "key-1", cfg.APIKeyID)
	assert.Equal(t, config.StorageSQLite, cfg.StorageBackend)
	assert.Equal(t, "/var/lib/capiscio/keys.db", cfg.StoragePath)
	assert.Equal(t, cardclient.DefaultBaseURL, cfg.BaseURL, "unset fields keep defaults")

	ttl, err := cfg.TTL()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, ttl)
	assert.NoError(t, cfg.ValidateIssuer())
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "app_id: from-file\nbase_url: https://file.example.com\n")
	t.Setenv("CAPISCIO_APP_ID", "from-env")
	t.Setenv("CAPISCIO_STORAGE_BACKEND", "memory")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.AppID)
	assert.Equal(t, "https://file.example.com", cfg.BaseURL)
	assert.Equal(t, config.StorageMemory, cfg.StorageBackend)
}

func TestLoadDefaultPathMayBeMissing(t *testing.T) {
	t.Setenv("CAPISCIO_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default().BaseURL, cfg.BaseURL)
}

func TestLoadErrors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)

	_, err = config.Load(writeConfig(t, "app_id: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{name: "unknown backend", mutate: func(c *config.Config) { c.StorageBackend = "redis" }, wantErr: true},
		{name: "empty base url", mutate: func(c *config.Config) { c.BaseURL = "" }, wantErr: true},
		{name: "bad ttl", mutate: func(c *config.Config) { c.TokenTTL = "soon" }, wantErr: true},
		{name: "negative ttl", mutate: func(c *config.Config) { c.TokenTTL = "-1m" }, wantErr: true},
		{name: "sub-second ttl", mutate: func(c *config.Config) { c.TokenTTL = "500ms" }, wantErr: true},
		{name: "one second ttl", mutate: func(c *config.Config) { c.TokenTTL = "1s" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestValidateIssuer(t *testing.T) {
	cfg := config.Default()
	assert.ErrorContains(t, cfg.ValidateIssuer(), "app_id")

	cfg.AppID = "app"
	assert.ErrorContains(t, cfg.ValidateIssuer(), "api_key_id")

	cfg.APIKeyID = "kid"
	assert.ErrorContains(t, cfg.ValidateIssuer(), "api_key_path")
}
