package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/cardclient"
	"github.com/capiscio/capiscio-cards/pkg/cardmanager"
	"github.com/capiscio/capiscio-cards/pkg/config"
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/jwt"
	"github.com/capiscio/capiscio-cards/pkg/keystorage"
	"github.com/capiscio/capiscio-cards/pkg/tokenprovider"
	"github.com/go-jose/go-jose/v4"
)

// loadPrivateKey loads an Ed25519 private key from a JWK file.
func loadPrivateKey(path string) (ed25519.PrivateKey, string, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read private key file: %w", err)
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal(keyData, &jwk); err != nil {
		return nil, "", fmt.Errorf("failed to parse private JWK: %w", err)
	}

	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, "", fmt.Errorf("key in file is not an Ed25519 private key")
	}
	return priv, jwk.KeyID, nil
}

// loadPublicKey loads an Ed25519 public key from a JWK file.
func loadPublicKey(path string) (ed25519.PublicKey, string, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read public key file: %w", err)
	}
	return crypto.ParsePublicJWK(keyData)
}

// writeJWK writes a key as indented JWK JSON.
func writeJWK(path string, jwk *jose.JSONWebKey, perm os.FileMode) error {
	data, err := json.MarshalIndent(jwk, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, perm)
}

// parseMeta converts key=value pairs into a map.
func parseMeta(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid meta %q, expected key=value", pair)
		}
		meta[strings.TrimSpace(k)] = v
	}
	return meta, nil
}

// openStorage opens the configured key storage backend. The returned
// function releases it.
func openStorage(cfg config.Config) (keystorage.Storage, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case config.StorageMemory:
		return keystorage.NewMemoryStorage(), noop, nil
	case config.StorageFile:
		s, err := keystorage.NewFileStorage(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case config.StorageSQLite:
		path := cfg.StoragePath
		if path == "" {
			dir := keystorage.DefaultKeysDir()
			if err := os.MkdirAll(dir, 0700); err != nil {
				return nil, nil, fmt.Errorf("failed to create keys directory: %w", err)
			}
			path = filepath.Join(dir, "keys.db")
		}
		s, err := keystorage.OpenSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

// newGenerator builds a token generator from the configured application key.
func newGenerator(cfg config.Config) (*jwt.Generator, error) {
	if err := cfg.ValidateIssuer(); err != nil {
		return nil, err
	}
	priv, _, err := loadPrivateKey(cfg.APIKeyPath)
	if err != nil {
		return nil, err
	}
	ttl, err := cfg.TTL()
	if err != nil {
		return nil, err
	}
	return jwt.NewGenerator(jwt.GeneratorConfig{
		AppID:    cfg.AppID,
		APIKeyID: cfg.APIKeyID,
		APIKey:   priv,
		Signer:   crypto.NewTokenSigner(),
		TTL:      ttl,
	})
}

// newVerifier builds the card trust policy: self signatures always, the
// authority signature when its key file or key set is configured.
func newVerifier(ctx context.Context, cfg config.Config, c crypto.CardCrypto) (*card.TrustVerifier, error) {
	vc := card.TrustVerifierConfig{VerifySelfSignature: true}
	switch {
	case cfg.AuthorityPublicKeyPath != "":
		pub, _, err := loadPublicKey(cfg.AuthorityPublicKeyPath)
		if err != nil {
			return nil, err
		}
		vc.VerifyAuthoritySignature = true
		vc.AuthorityPublicKey = pub
	case cfg.AuthorityJWKSURL != "":
		pub, err := crypto.NewKeySetFetcher().PublicKey(ctx, cfg.AuthorityJWKSURL, cfg.AuthorityKeyID)
		if err != nil {
			return nil, fmt.Errorf("failed to load authority key: %w", err)
		}
		vc.VerifyAuthoritySignature = true
		vc.AuthorityPublicKey = pub
	}
	return card.NewTrustVerifier(c, vc)
}

// newManager wires a card manager whose tokens come from a caching provider
// over the local generator.
func newManager(ctx context.Context, cfg config.Config) (*cardmanager.Manager, error) {
	c := crypto.NewEd25519Crypto()

	generator, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	issuer, err := tokenprovider.NewGeneratorProvider(generator, cfg.Identity, nil)
	if err != nil {
		return nil, err
	}
	provider, err := tokenprovider.NewCachingProvider(issuer.GetToken)
	if err != nil {
		return nil, err
	}

	verifier, err := newVerifier(ctx, cfg, c)
	if err != nil {
		return nil, err
	}

	client, err := cardclient.NewClient(cardclient.NewHTTPConnection(cfg.BaseURL))
	if err != nil {
		return nil, err
	}

	return cardmanager.NewManager(cardmanager.Config{
		Crypto:              c,
		TokenProvider:       provider,
		Verifier:            verifier,
		Client:              client,
		RetryOnUnauthorized: true,
	})
}
