package crypto

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// JWKExporter implements PrivateKeyExporter using the JSON Web Key format,
// the same format the CLI writes key files in.
type JWKExporter struct {
	// KeyID is written as "kid" on export. Optional.
	KeyID string
}

// NewJWKExporter creates an exporter that tags keys with keyID.
func NewJWKExporter(keyID string) *JWKExporter {
	return &JWKExporter{KeyID: keyID}
}

// ExportPrivateKey serializes the key as a private JWK.
func (e *JWKExporter) ExportPrivateKey(key PrivateKey) ([]byte, error) {
	priv, err := privateKey(key)
	if err != nil {
		return nil, err
	}
	jwk := jose.JSONWebKey{
		Key:       priv,
		KeyID:     e.KeyID,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}
	data, err := json.Marshal(jwk)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal private JWK: %w", err)
	}
	return data, nil
}

// ImportPrivateKey parses a private JWK.
func (e *JWKExporter) ImportPrivateKey(data []byte) (PrivateKey, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, fmt.Errorf("failed to parse private JWK: %w", err)
	}
	priv, ok := jwk.Key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: JWK does not hold an Ed25519 private key", ErrUnsupportedKey)
	}
	return priv, nil
}

// PublicJWK wraps a public key as a JWK for key files.
func PublicJWK(key PublicKey, keyID string) (*jose.JSONWebKey, error) {
	pub, err := publicKey(key)
	if err != nil {
		return nil, err
	}
	return &jose.JSONWebKey{
		Key:       pub,
		KeyID:     keyID,
		Algorithm: string(jose.EdDSA),
		Use:       "sig",
	}, nil
}

// ParsePublicJWK reads an Ed25519 public key from a JWK document. A private
// JWK is accepted and reduced to its public half.
func ParsePublicJWK(data []byte) (ed25519.PublicKey, string, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(data, &jwk); err != nil {
		return nil, "", fmt.Errorf("failed to parse JWK: %w", err)
	}
	switch k := jwk.Key.(type) {
	case ed25519.PublicKey:
		return k, jwk.KeyID, nil
	case ed25519.PrivateKey:
		return k.Public().(ed25519.PublicKey), jwk.KeyID, nil
	default:
		return nil, "", fmt.Errorf("%w: %T", ErrUnsupportedKey, jwk.Key)
	}
}

var _ PrivateKeyExporter = (*JWKExporter)(nil)
