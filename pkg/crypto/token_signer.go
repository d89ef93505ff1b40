package crypto

import (
	"errors"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// TokenSigner implements AccessTokenSigner with the EdDSA signing method
// from golang-jwt.
type TokenSigner struct {
	method *gojwt.SigningMethodEd25519
}

// NewTokenSigner creates a TokenSigner for Ed25519 keys.
func NewTokenSigner() *TokenSigner {
	return &TokenSigner{method: gojwt.SigningMethodEdDSA}
}

// Algorithm returns "EdDSA".
func (s *TokenSigner) Algorithm() string {
	return s.method.Alg()
}

// GenerateTokenSignature signs data with an Ed25519 private key.
func (s *TokenSigner) GenerateTokenSignature(data []byte, key PrivateKey) ([]byte, error) {
	priv, err := privateKey(key)
	if err != nil {
		return nil, err
	}
	return s.method.Sign(string(data), priv)
}

// VerifyTokenSignature checks an Ed25519 token signature. A signature that
// does not match is reported as false; a bad key is an error.
func (s *TokenSigner) VerifyTokenSignature(data, signature []byte, key PublicKey) (bool, error) {
	pub, err := publicKey(key)
	if err != nil {
		return false, err
	}
	err = s.method.Verify(string(data), signature, pub)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, gojwt.ErrEd25519Verification):
		return false, nil
	default:
		return false, err
	}
}

var _ AccessTokenSigner = (*TokenSigner)(nil)
