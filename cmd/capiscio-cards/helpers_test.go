package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/config"
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMeta(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "pairs", pairs: []string{"identity=alice", "device = laptop"}, want: map[string]string{"identity": "alice", "device": " laptop"}},
		{name: "value with equals", pairs: []string{"q=a=b"}, want: map[string]string{"q": "a=b"}},
		{name: "missing equals", pairs: []string{"nope"}, wantErr: true},
		{name: "empty key", pairs: []string{"=x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMeta(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKeyFilesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	keys, err := crypto.NewEd25519Crypto().GenerateKeys()
	require.NoError(t, err)

	privPath := filepath.Join(dir, "private.jwk")
	pubPath := filepath.Join(dir, "public.jwk")

	require.NoError(t, writeJWK(privPath, &jose.JSONWebKey{
		Key:       keys.PrivateKey,
		KeyID:     "kid-1",
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}, 0600))
	pubJwk, err := crypto.PublicJWK(keys.PublicKey, "kid-1")
	require.NoError(t, err)
	require.NoError(t, writeJWK(pubPath, pubJwk, 0644))

	priv, kid, err := loadPrivateKey(privPath)
	require.NoError(t, err)
	assert.Equal(t, "kid-1", kid)
	assert.True(t, keys.PrivateKey.Equal(priv))

	pub, kid, err := loadPublicKey(pubPath)
	require.NoError(t, err)
	assert.Equal(t, "kid-1", kid)
	assert.True(t, keys.PublicKey.Equal(pub))

	_, _, err = loadPrivateKey(pubPath)
	assert.Error(t, err)

	_, _, err = loadPrivateKey(filepath.Join(dir, "missing.jwk"))
	assert.Error(t, err)
}

func TestOpenStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backends := map[string]config.Config{
		"memory": {StorageBackend: config.StorageMemory},
		"file":   {StorageBackend: config.StorageFile, StoragePath: filepath.Join(dir, "keys")},
		"sqlite": {StorageBackend: config.StorageSQLite, StoragePath: filepath.Join(dir, "keys.db")},
	}

	for name, cfg := range backends {
		t.Run(name, func(t *testing.T) {
			storage, closeStorage, err := openStorage(cfg)
			require.NoError(t, err)
			defer func() { require.NoError(t, closeStorage()) }()

			_, err = storage.Save(ctx, "alice", "dmFsdWU=", nil)
			require.NoError(t, err)
			ok, err := storage.Exists(ctx, "alice")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}

	_, _, err := openStorage(config.Config{StorageBackend: "redis"})
	assert.Error(t, err)
}

func TestImportModel(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	keys, err := c.GenerateKeys()
	require.NoError(t, err)

	model, err := card.GenerateRawSignedModel(c, card.GenerateParams{Identity: "alice", PublicKey: keys.PublicKey})
	require.NoError(t, err)
	require.NoError(t, card.NewModelSigner(c).SelfSign(model, keys.PrivateKey, nil))

	s, err := model.ExportAsString()
	require.NoError(t, err)
	fromString, err := importModel(s + "\n")
	require.NoError(t, err)
	assert.Equal(t, model.ContentSnapshot, fromString.ContentSnapshot)

	data, err := model.ExportAsJSON()
	require.NoError(t, err)
	fromJSON, err := importModel(string(data))
	require.NoError(t, err)
	assert.Equal(t, model.ContentSnapshot, fromJSON.ContentSnapshot)
}

func TestNewVerifier(t *testing.T) {
	ctx := context.Background()
	c := crypto.NewEd25519Crypto()

	verifier, err := newVerifier(ctx, config.Default(), c)
	require.NoError(t, err)
	assert.NotNil(t, verifier)

	_, err = newVerifier(ctx, config.Config{AuthorityPublicKeyPath: filepath.Join(t.TempDir(), "missing.jwk")}, c)
	assert.Error(t, err)
}

func TestNewVerifierFromKeySet(t *testing.T) {
	ctx := context.Background()
	c := crypto.NewEd25519Crypto()

	authority, err := c.GenerateKeys()
	require.NoError(t, err)
	jwk, err := crypto.PublicJWK(authority.PublicKey, "authority-1")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{*jwk}})
	}))
	defer server.Close()

	verifier, err := newVerifier(ctx, config.Config{AuthorityJWKSURL: server.URL, AuthorityKeyID: "authority-1"}, c)
	require.NoError(t, err)
	assert.NotNil(t, verifier)

	_, err = newVerifier(ctx, config.Config{AuthorityJWKSURL: server.URL, AuthorityKeyID: "other"}, c)
	assert.ErrorIs(t, err, crypto.ErrInvalidKey)
}

func TestNewGeneratorRequiresIssuer(t *testing.T) {
	_, err := newGenerator(config.Default())
	assert.ErrorContains(t, err, "app_id")
}
