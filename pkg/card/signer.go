package card

import (
	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/capiscio/capiscio-cards/pkg/snapshot"
)

// SignParams describes one signature to add to a model.
type SignParams struct {
	// Signer names the signing party, e.g. SelfSigner.
	Signer string

	PrivateKey crypto.PrivateKey

	// ExtraFields is optional signed metadata.
	ExtraFields map[string]string
}

// ModelSigner adds signatures to raw signed models.
type ModelSigner struct {
	crypto crypto.CardCrypto
}

// NewModelSigner creates a ModelSigner.
func NewModelSigner(c crypto.CardCrypto) *ModelSigner {
	return &ModelSigner{crypto: c}
}

// Sign appends a signature over the content snapshot followed by the
// snapshot of params.ExtraFields. Each signer may sign a model once.
func (s *ModelSigner) Sign(model *RawSignedModel, params SignParams) error {
	if model == nil {
		return sdkerr.New(sdkerr.CodeValidation, "raw signed model is required")
	}
	if params.Signer == "" {
		return sdkerr.New(sdkerr.CodeValidation, "signer is required")
	}
	if params.PrivateKey == nil {
		return sdkerr.New(sdkerr.CodeValidation, "private key is required")
	}
	for _, existing := range model.Signatures {
		if existing.Signer == params.Signer {
			return sdkerr.Newf(sdkerr.CodeValidation, "model already has a signature from %q", params.Signer)
		}
	}

	var extraSnapshot []byte
	if len(params.ExtraFields) > 0 {
		var err error
		extraSnapshot, err = snapshot.Take(params.ExtraFields)
		if err != nil {
			return err
		}
	}

	signature, err := s.crypto.GenerateSignature(signedData(model.ContentSnapshot, extraSnapshot), params.PrivateKey)
	if err != nil {
		return err
	}

	model.Signatures = append(model.Signatures, RawSignature{
		Signer:    params.Signer,
		Signature: signature,
		Snapshot:  extraSnapshot,
	})
	return nil
}

// SelfSign signs the model as SelfSigner.
func (s *ModelSigner) SelfSign(model *RawSignedModel, privateKey crypto.PrivateKey, extraFields map[string]string) error {
	return s.Sign(model, SignParams{
		Signer:      SelfSigner,
		PrivateKey:  privateKey,
		ExtraFields: extraFields,
	})
}

// signedData is the byte string a signature covers.
func signedData(contentSnapshot, extraSnapshot []byte) []byte {
	out := make([]byte, 0, len(contentSnapshot)+len(extraSnapshot))
	out = append(out, contentSnapshot...)
	return append(out, extraSnapshot...)
}
