package jwt

import (
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// VerifierConfig holds the application public key material.
type VerifierConfig struct {
	APIKeyID     string
	APIPublicKey crypto.PublicKey
	Signer       crypto.AccessTokenSigner
}

// Verifier checks token signatures. Expiry is not checked here; callers
// combine Verify with Token.IsExpired.
type Verifier struct {
	config VerifierConfig
}

// NewVerifier validates config and creates a Verifier.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	if config.APIKeyID == "" {
		return nil, sdkerr.New(sdkerr.CodeValidation, "api key id is required")
	}
	if config.APIPublicKey == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "api public key is required")
	}
	if config.Signer == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "access token signer is required")
	}
	return &Verifier{config: config}, nil
}

// Verify reports whether the token was signed by the configured key.
// It never returns an error: any failure is reported as false.
func (v *Verifier) Verify(token *Token) bool {
	if token == nil || token.Header.KeyID != v.config.APIKeyID {
		return false
	}
	ok, err := v.config.Signer.VerifyTokenSignature(token.SignedData(), token.Signature, v.config.APIPublicKey)
	return err == nil && ok
}
