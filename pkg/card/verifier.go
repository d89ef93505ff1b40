package card

import (
	"fmt"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// Verifier decides whether a card can be trusted.
type Verifier interface {
	VerifyCard(card *Card) bool
}

// Credentials identify a trusted signer by name and public key.
type Credentials struct {
	Signer    string
	PublicKey crypto.PublicKey
}

// Whitelist is satisfied when the card carries a valid signature from at
// least one of its credentials.
type Whitelist struct {
	Credentials []Credentials
}

// TrustVerifierConfig configures a TrustVerifier.
type TrustVerifierConfig struct {
	// VerifySelfSignature requires a valid SelfSigner signature by the card's key.
	VerifySelfSignature bool

	// VerifyAuthoritySignature requires a valid AuthoritySigner signature.
	VerifyAuthoritySignature bool

	// AuthorityPublicKey verifies the authority signature.
	AuthorityPublicKey crypto.PublicKey

	// Whitelists must all be satisfied.
	Whitelists []Whitelist
}

// VerificationResult contains the outcome of verifying one card.
type VerificationResult struct {
	Valid  bool
	Errors []string
}

// TrustVerifier checks card signatures against a trust policy.
type TrustVerifier struct {
	crypto crypto.CardCrypto
	config TrustVerifierConfig
}

// NewTrustVerifier creates a TrustVerifier.
func NewTrustVerifier(c crypto.CardCrypto, config TrustVerifierConfig) (*TrustVerifier, error) {
	if c == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "card crypto is required")
	}
	if config.VerifyAuthoritySignature && config.AuthorityPublicKey == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "authority public key is required to verify authority signatures")
	}
	for i, wl := range config.Whitelists {
		if len(wl.Credentials) == 0 {
			return nil, sdkerr.Newf(sdkerr.CodeValidation, "whitelist %d has no credentials", i)
		}
	}
	return &TrustVerifier{crypto: c, config: config}, nil
}

// VerifyCard reports whether the card satisfies the policy.
func (v *TrustVerifier) VerifyCard(card *Card) bool {
	return v.Verify(card).Valid
}

// Verify checks the card and reports every failed rule.
func (v *TrustVerifier) Verify(card *Card) *VerificationResult {
	result := &VerificationResult{}
	if card == nil {
		result.Errors = append(result.Errors, "card is nil")
		return result
	}

	if v.config.VerifySelfSignature {
		if err := v.verifySignature(card, SelfSigner, card.PublicKey); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	if v.config.VerifyAuthoritySignature {
		if err := v.verifySignature(card, AuthoritySigner, v.config.AuthorityPublicKey); err != nil {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	for i, wl := range v.config.Whitelists {
		satisfied := false
		for _, cred := range wl.Credentials {
			if v.verifySignature(card, cred.Signer, cred.PublicKey) == nil {
				satisfied = true
				break
			}
		}
		if !satisfied {
			result.Errors = append(result.Errors, fmt.Sprintf("whitelist %d: no valid signature from a trusted signer", i))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

func (v *TrustVerifier) verifySignature(card *Card, signer string, key crypto.PublicKey) error {
	sig, ok := card.SignatureBy(signer)
	if !ok {
		return fmt.Errorf("%s signature is missing", signer)
	}
	valid, err := v.crypto.VerifySignature(signedData(card.ContentSnapshot, sig.Snapshot), sig.Signature, key)
	if err != nil {
		return fmt.Errorf("%s signature could not be checked: %v", signer, err)
	}
	if !valid {
		return fmt.Errorf("%s signature is invalid", signer)
	}
	return nil
}

var _ Verifier = (*TrustVerifier)(nil)
