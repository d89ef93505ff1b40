package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"errors"
	"fmt"
)

// Common errors returned by this package.
var (
	ErrInvalidKey     = errors.New("invalid key")
	ErrUnsupportedKey = errors.New("unsupported key type (only Ed25519 supported)")
)

// KeyPair holds a freshly generated key pair.
type KeyPair struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Ed25519Crypto implements CardCrypto with Ed25519 signatures and SHA-512.
// Public keys are exported as the raw 32-byte key.
type Ed25519Crypto struct{}

// NewEd25519Crypto creates a new Ed25519 backend.
func NewEd25519Crypto() *Ed25519Crypto {
	return &Ed25519Crypto{}
}

// GenerateKeys creates a new random key pair.
func (c *Ed25519Crypto) GenerateKeys() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return &KeyPair{PublicKey: pub, PrivateKey: priv}, nil
}

// GenerateSignature signs data with an Ed25519 private key.
func (c *Ed25519Crypto) GenerateSignature(data []byte, key PrivateKey) ([]byte, error) {
	priv, err := privateKey(key)
	if err != nil {
		return nil, err
	}
	return ed25519.Sign(priv, data), nil
}

// VerifySignature checks an Ed25519 signature.
func (c *Ed25519Crypto) VerifySignature(data, signature []byte, key PublicKey) (bool, error) {
	pub, err := publicKey(key)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, data, signature), nil
}

// ExportPublicKey returns the raw public key bytes.
func (c *Ed25519Crypto) ExportPublicKey(key PublicKey) ([]byte, error) {
	pub, err := publicKey(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(pub))
	copy(out, pub)
	return out, nil
}

// ImportPublicKey parses raw public key bytes.
func (c *Ed25519Crypto) ImportPublicKey(data []byte) (PublicKey, error) {
	if len(data) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(data))
	}
	pub := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(pub, data)
	return pub, nil
}

// GenerateSHA512 hashes data with SHA-512.
func (c *Ed25519Crypto) GenerateSHA512(data []byte) ([]byte, error) {
	sum := sha512.Sum512(data)
	return sum[:], nil
}

func privateKey(key PrivateKey) (ed25519.PrivateKey, error) {
	switch k := key.(type) {
	case ed25519.PrivateKey:
		if len(k) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
		}
		return k, nil
	case *ed25519.PrivateKey:
		if k == nil {
			return nil, ErrInvalidKey
		}
		return privateKey(*k)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

func publicKey(key PublicKey) (ed25519.PublicKey, error) {
	switch k := key.(type) {
	case ed25519.PublicKey:
		if len(k) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
		}
		return k, nil
	case *ed25519.PublicKey:
		if k == nil {
			return nil, ErrInvalidKey
		}
		return publicKey(*k)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedKey, key)
	}
}

var _ CardCrypto = (*Ed25519Crypto)(nil)
