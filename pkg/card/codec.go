package card

import (
	"encoding/base64"
	"encoding/json"

	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// ExportRawSignedModel converts a card back to its wire form.
func ExportRawSignedModel(c *Card) *RawSignedModel {
	signatures := make([]RawSignature, 0, len(c.Signatures))
	for _, s := range c.Signatures {
		signatures = append(signatures, RawSignature{
			Signer:    s.Signer,
			Signature: s.Signature,
			Snapshot:  s.Snapshot,
		})
	}
	return &RawSignedModel{
		ContentSnapshot: c.ContentSnapshot,
		Signatures:      signatures,
	}
}

// ExportAsJSON returns the model's wire JSON.
func (m *RawSignedModel) ExportAsJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeValidation, "failed to marshal raw signed model", err)
	}
	return data, nil
}

// ExportAsString returns the wire JSON as standard base64.
func (m *RawSignedModel) ExportAsString() (string, error) {
	data, err := m.ExportAsJSON()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ImportRawSignedModelFromJSON parses wire JSON.
func ImportRawSignedModelFromJSON(data []byte) (*RawSignedModel, error) {
	var m RawSignedModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeParse, "invalid raw signed model JSON", err)
	}
	if len(m.ContentSnapshot) == 0 {
		return nil, sdkerr.New(sdkerr.CodeParse, "raw signed model has no content_snapshot")
	}
	return &m, nil
}

// ImportRawSignedModelFromString parses the output of ExportAsString.
func ImportRawSignedModelFromString(s string) (*RawSignedModel, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeParse, "raw signed model is not valid base64", err)
	}
	return ImportRawSignedModelFromJSON(data)
}
