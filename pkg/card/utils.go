package card

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/capiscio/capiscio-cards/pkg/snapshot"
)

// cardIDSize is the number of digest bytes kept in a card id.
const cardIDSize = 32

// GenerateCardID computes a card id: SHA-512 of the content snapshot,
// truncated to 32 bytes, hex encoded.
func GenerateCardID(c crypto.CardCrypto, contentSnapshot []byte) (string, error) {
	digest, err := c.GenerateSHA512(contentSnapshot)
	if err != nil {
		return "", fmt.Errorf("failed to hash content snapshot: %w", err)
	}
	if len(digest) < cardIDSize {
		return "", fmt.Errorf("digest too short: %d bytes", len(digest))
	}
	return hex.EncodeToString(digest[:cardIDSize]), nil
}

// ParseRawSignedModel decodes a wire model into a Card.
func ParseRawSignedModel(c crypto.CardCrypto, model *RawSignedModel, isOutdated bool) (*Card, error) {
	if model == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "raw signed model is required")
	}

	content, err := snapshot.Parse[RawCardContent](model.ContentSnapshot)
	if err != nil {
		return nil, err
	}

	keyBytes, err := base64.StdEncoding.DecodeString(content.PublicKey)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeParse, "public_key is not valid base64", err)
	}
	publicKey, err := c.ImportPublicKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to import card public key: %w", err)
	}

	id, err := GenerateCardID(c, model.ContentSnapshot)
	if err != nil {
		return nil, err
	}

	signatures := make([]Signature, 0, len(model.Signatures))
	for _, raw := range model.Signatures {
		signatures = append(signatures, Signature{
			Signer:      raw.Signer,
			Signature:   raw.Signature,
			Snapshot:    raw.Snapshot,
			ExtraFields: parseExtraFields(raw.Snapshot),
		})
	}

	return &Card{
		ID:              id,
		Identity:        content.Identity,
		PublicKey:       publicKey,
		ContentSnapshot: model.ContentSnapshot,
		Version:         content.Version,
		CreatedAt:       time.Unix(content.CreatedAt, 0),
		PreviousCardID:  content.PreviousCardID,
		Signatures:      signatures,
		IsOutdated:      isOutdated,
	}, nil
}

// parseExtraFields decodes signature metadata. Unlike content snapshots it is
// best effort: anything that does not decode yields an empty map so that one
// signer's malformed metadata cannot make a card unreadable.
func parseExtraFields(data []byte) map[string]string {
	if len(data) == 0 {
		return map[string]string{}
	}
	fields, err := snapshot.Parse[map[string]string](data)
	if err != nil || fields == nil {
		return map[string]string{}
	}
	return fields
}

// GenerateParams describes a new card.
type GenerateParams struct {
	Identity       string
	PublicKey      crypto.PublicKey
	PreviousCardID string

	// Now overrides the creation time (for testing).
	Now func() time.Time
}

// GenerateRawSignedModel builds the content snapshot for a new card. The
// returned model has no signatures; use ModelSigner to add them.
func GenerateRawSignedModel(c crypto.CardCrypto, params GenerateParams) (*RawSignedModel, error) {
	if params.Identity == "" {
		return nil, sdkerr.New(sdkerr.CodeValidation, "identity is required")
	}
	if params.PublicKey == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "public key is required")
	}
	now := time.Now
	if params.Now != nil {
		now = params.Now
	}

	keyBytes, err := c.ExportPublicKey(params.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to export public key: %w", err)
	}

	content := RawCardContent{
		Identity:       params.Identity,
		PublicKey:      base64.StdEncoding.EncodeToString(keyBytes),
		CreatedAt:      now().Unix(),
		Version:        CardVersion,
		PreviousCardID: params.PreviousCardID,
	}
	contentSnapshot, err := snapshot.Take(content)
	if err != nil {
		return nil, err
	}

	return &RawSignedModel{
		ContentSnapshot: contentSnapshot,
		Signatures:      []RawSignature{},
	}, nil
}
