// Package card implements identity cards: signed records binding a public key
// to an identity, optionally superseding an earlier card.
package card

import (
	"time"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
)

// CardVersion is the content format version written into new cards.
const CardVersion = "5.0"

// Well-known signer names.
const (
	// SelfSigner marks the signature made with the card's own private key.
	SelfSigner = "self"

	// AuthoritySigner marks the signature added by the card service.
	AuthoritySigner = "authority"
)

// Card is a parsed identity record.
type Card struct {
	// ID is the hex digest of ContentSnapshot. See GenerateCardID.
	ID string

	// Identity is the subject's claimed identity (e.g. an email or username).
	Identity string

	// PublicKey is the key handle imported through CardCrypto.
	PublicKey crypto.PublicKey

	// ContentSnapshot is the canonical RawCardContent. It must not be modified.
	ContentSnapshot []byte

	// Version is the content format version.
	Version string

	// CreatedAt comes from the snapshot's Unix seconds.
	CreatedAt time.Time

	// PreviousCardID references the card this one supersedes, if any.
	PreviousCardID string

	// PreviousCard is populated only by LinkedCardList. Never serialized.
	PreviousCard *Card

	// Signatures in the order they were added.
	Signatures []Signature

	// IsOutdated is true when a newer card supersedes this one.
	IsOutdated bool
}

// Signature is a signature over the card's content snapshot.
type Signature struct {
	Signer    string
	Signature []byte

	// Snapshot holds signed extra metadata, appended to the content snapshot
	// before signing. Empty when the signer added no metadata.
	Snapshot []byte

	// ExtraFields is Snapshot decoded. Always non-nil.
	ExtraFields map[string]string
}

// RawCardContent is the signed body of a card. Field order is part of the
// wire contract: identity, public_key, created_at, version, previous_card_id.
type RawCardContent struct {
	Identity       string `json:"identity"`
	PublicKey      string `json:"public_key"`
	CreatedAt      int64  `json:"created_at"`
	Version        string `json:"version"`
	PreviousCardID string `json:"previous_card_id,omitempty"`
}

// RawSignature is the wire form of one card signature.
type RawSignature struct {
	Signer    string `json:"signer"`
	Signature []byte `json:"signature"`
	Snapshot  []byte `json:"snapshot,omitempty"`
}

// RawSignedModel is the only transmitted and persisted form of a card.
// Binary fields travel as standard base64.
type RawSignedModel struct {
	ContentSnapshot []byte         `json:"content_snapshot"`
	Signatures      []RawSignature `json:"signatures"`
}

// SignatureBy returns the signature made by signer, if present.
func (c *Card) SignatureBy(signer string) (Signature, bool) {
	for _, s := range c.Signatures {
		if s.Signer == signer {
			return s, true
		}
	}
	return Signature{}, false
}
