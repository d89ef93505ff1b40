// Package crypto defines the cryptographic capabilities the card and token
// packages depend on, plus an Ed25519 backend that satisfies all of them.
// Any other backend can be plugged in by implementing the interfaces.
package crypto

// PublicKey is an opaque public key handle owned by a CardCrypto backend.
type PublicKey interface{}

// PrivateKey is an opaque private key handle owned by a backend.
type PrivateKey interface{}

// CardCrypto signs, verifies and hashes card snapshots.
type CardCrypto interface {
	// GenerateSignature signs data with the private key.
	GenerateSignature(data []byte, key PrivateKey) ([]byte, error)

	// VerifySignature reports whether signature is valid for data.
	// An error means the inputs could not be checked at all.
	VerifySignature(data, signature []byte, key PublicKey) (bool, error)

	// ExportPublicKey returns the wire form of a public key.
	ExportPublicKey(key PublicKey) ([]byte, error)

	// ImportPublicKey is the inverse of ExportPublicKey.
	ImportPublicKey(data []byte) (PublicKey, error)

	// GenerateSHA512 returns the 64-byte SHA-512 digest of data.
	GenerateSHA512(data []byte) ([]byte, error)
}

// AccessTokenSigner signs and verifies access token bytes.
type AccessTokenSigner interface {
	// GenerateTokenSignature signs the "header.payload" bytes of a token.
	GenerateTokenSignature(data []byte, key PrivateKey) ([]byte, error)

	// VerifyTokenSignature reports whether signature is valid for data.
	VerifyTokenSignature(data, signature []byte, key PublicKey) (bool, error)

	// Algorithm is the value written to the token's "alg" header.
	Algorithm() string
}

// PrivateKeyExporter converts private keys to and from bytes for storage.
type PrivateKeyExporter interface {
	ExportPrivateKey(key PrivateKey) ([]byte, error)
	ImportPrivateKey(data []byte) (PrivateKey, error)
}
