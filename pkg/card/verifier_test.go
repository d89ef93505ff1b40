package card_test

import (
	"testing"

	"github.com/capiscio/capiscio-cards/pkg/card"
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustVerifier_SelfSignature(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	verifier, err := card.NewTrustVerifier(c, card.TrustVerifierConfig{VerifySelfSignature: true})
	require.NoError(t, err)

	parsed, _ := newSelfSignedCard(t, c, "alice", "")
	assert.True(t, verifier.VerifyCard(parsed))

	t.Run("tampered signature", func(t *testing.T) {
		tampered := *parsed
		tampered.Signatures = []card.Signature{parsed.Signatures[0]}
		sig := append([]byte{}, parsed.Signatures[0].Signature...)
		sig[0] ^= 0x01
		tampered.Signatures[0].Signature = sig

		result := verifier.Verify(&tampered)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "self signature is invalid")
	})

	t.Run("missing signature", func(t *testing.T) {
		unsigned := *parsed
		unsigned.Signatures = nil
		assert.False(t, verifier.VerifyCard(&unsigned))
	})
}

func TestTrustVerifier_Authority(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	authority, err := c.GenerateKeys()
	require.NoError(t, err)
	keys, err := c.GenerateKeys()
	require.NoError(t, err)

	model, err := card.GenerateRawSignedModel(c, card.GenerateParams{Identity: "alice", PublicKey: keys.PublicKey})
	require.NoError(t, err)
	signer := card.NewModelSigner(c)
	require.NoError(t, signer.SelfSign(model, keys.PrivateKey, nil))

	verifier, err := card.NewTrustVerifier(c, card.TrustVerifierConfig{
		VerifySelfSignature:      true,
		VerifyAuthoritySignature: true,
		AuthorityPublicKey:       authority.PublicKey,
	})
	require.NoError(t, err)

	unsignedByAuthority, err := card.ParseRawSignedModel(c, model, false)
	require.NoError(t, err)
	assert.False(t, verifier.VerifyCard(unsignedByAuthority))

	require.NoError(t, signer.Sign(model, card.SignParams{Signer: card.AuthoritySigner, PrivateKey: authority.PrivateKey}))
	signed, err := card.ParseRawSignedModel(c, model, false)
	require.NoError(t, err)
	assert.True(t, verifier.VerifyCard(signed))
}

func TestTrustVerifier_Whitelist(t *testing.T) {
	c := crypto.NewEd25519Crypto()
	partner, err := c.GenerateKeys()
	require.NoError(t, err)
	stranger, err := c.GenerateKeys()
	require.NoError(t, err)
	keys, err := c.GenerateKeys()
	require.NoError(t, err)

	verifier, err := card.NewTrustVerifier(c, card.TrustVerifierConfig{
		Whitelists: []card.Whitelist{{
			Credentials: []card.Credentials{{Signer: "partner", PublicKey: partner.PublicKey}},
		}},
	})
	require.NoError(t, err)

	model, err := card.GenerateRawSignedModel(c, card.GenerateParams{Identity: "alice", PublicKey: keys.PublicKey})
	require.NoError(t, err)
	// Signed under the whitelisted name but with the wrong key.
	require.NoError(t, card.NewModelSigner(c).Sign(model, card.SignParams{Signer: "partner", PrivateKey: stranger.PrivateKey}))

	parsed, err := card.ParseRawSignedModel(c, model, false)
	require.NoError(t, err)
	assert.False(t, verifier.VerifyCard(parsed))

	model.Signatures = nil
	require.NoError(t, card.NewModelSigner(c).Sign(model, card.SignParams{
		Signer:      "partner",
		PrivateKey:  partner.PrivateKey,
		ExtraFields: map[string]string{"level": "2"},
	}))
	parsed, err = card.ParseRawSignedModel(c, model, false)
	require.NoError(t, err)
	assert.True(t, verifier.VerifyCard(parsed))
}

func TestNewTrustVerifier_Validation(t *testing.T) {
	c := crypto.NewEd25519Crypto()

	_, err := card.NewTrustVerifier(c, card.TrustVerifierConfig{VerifyAuthoritySignature: true})
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	_, err = card.NewTrustVerifier(c, card.TrustVerifierConfig{Whitelists: []card.Whitelist{{}}})
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	_, err = card.NewTrustVerifier(nil, card.TrustVerifierConfig{})
	assert.ErrorIs(t, err, sdkerr.ErrValidation)
}
