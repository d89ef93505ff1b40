// Package config loads CLI and application settings from a YAML file and
// CAPISCIO_* environment variables. Environment values win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/capiscio/capiscio-cards/pkg/cardclient"
	"github.com/capiscio/capiscio-cards/pkg/jwt"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
)

// Config holds all settings.
type Config struct {
	// AppID and APIKeyID identify the application key that signs tokens.
	AppID    string `yaml:"app_id" env:"CAPISCIO_APP_ID"`
	APIKeyID string `yaml:"api_key_id" env:"CAPISCIO_API_KEY_ID"`

	// APIKeyPath is a private JWK file used to sign tokens.
	APIKeyPath string `yaml:"api_key_path" env:"CAPISCIO_API_KEY_PATH"`

	// APIPublicKeyPath is a public JWK file used to verify tokens.
	APIPublicKeyPath string `yaml:"api_public_key_path" env:"CAPISCIO_API_PUBLIC_KEY_PATH"`

	// AuthorityPublicKeyPath is a public JWK file for the card service's
	// authority signature. When empty, authority signatures are not checked.
	AuthorityPublicKeyPath string `yaml:"authority_public_key_path" env:"CAPISCIO_AUTHORITY_PUBLIC_KEY_PATH"`

	// AuthorityJWKSURL is a key set holding the authority key, used when
	// AuthorityPublicKeyPath is empty. AuthorityKeyID picks a key from it.
	AuthorityJWKSURL string `yaml:"authority_jwks_url" env:"CAPISCIO_AUTHORITY_JWKS_URL"`
	AuthorityKeyID   string `yaml:"authority_key_id" env:"CAPISCIO_AUTHORITY_KEY_ID"`

	BaseURL  string `yaml:"base_url" env:"CAPISCIO_BASE_URL"`
	TokenTTL string `yaml:"token_ttl" env:"CAPISCIO_TOKEN_TTL"`

	StorageBackend string `yaml:"storage_backend" env:"CAPISCIO_STORAGE_BACKEND"`
	StoragePath    string `yaml:"storage_path" env:"CAPISCIO_STORAGE_PATH"`

	// Identity is the default token subject.
	Identity string `yaml:"identity" env:"CAPISCIO_IDENTITY"`
}

// Default returns a Config with defaults applied.
func Default() Config {
	return Config{
		BaseURL:        cardclient.DefaultBaseURL,
		TokenTTL:       jwt.DefaultTTL.String(),
		StorageBackend: StorageFile,
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	if envPath := os.Getenv("CAPISCIO_CONFIG"); envPath != "" {
		return envPath
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".capiscio", "cards.yaml")
	}
	return filepath.Join(home, ".capiscio", "cards.yaml")
}

// Load reads the YAML file at path on top of Default, then applies the
// environment. An empty path means DefaultPath, which may be absent.
func Load(path string) (Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath()
	}

	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := FromEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv overlays set CAPISCIO_* variables onto cfg.
func FromEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate checks the settings every command relies on.
func (c Config) Validate() error {
	switch c.StorageBackend {
	case StorageMemory, StorageFile, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if _, err := c.TTL(); err != nil {
		return err
	}
	return nil
}

// ValidateIssuer checks the settings needed to sign tokens.
func (c Config) ValidateIssuer() error {
	if c.AppID == "" {
		return fmt.Errorf("app_id is required")
	}
	if c.APIKeyID == "" {
		return fmt.Errorf("api_key_id is required")
	}
	if c.APIKeyPath == "" {
		return fmt.Errorf("api_key_path is required")
	}
	return nil
}

// TTL parses TokenTTL. An empty value means jwt.DefaultTTL.
func (c Config) TTL() (time.Duration, error) {
	if c.TokenTTL == "" {
		return jwt.DefaultTTL, nil
	}
	ttl, err := time.ParseDuration(c.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid token_ttl %q: %w", c.TokenTTL, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL)
	}
	if ttl < jwt.MinTTL {
		return 0, fmt.Errorf("token_ttl must be at least %s, got %s", jwt.MinTTL, c.TokenTTL)
	}
	return ttl, nil
}
