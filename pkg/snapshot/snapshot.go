// Package snapshot produces the canonical byte form of card content and
// signature metadata. Snapshots are the input to hashing and signing, so the
// same value must always serialize to the same bytes.
//
// Struct fields serialize in declaration order and map keys are sorted, which
// is what encoding/json does. HTML escaping is disabled so "<", ">" and "&"
// appear literally, matching snapshots produced by other SDKs.
package snapshot

import (
	"bytes"
	"encoding/json"
	"unicode/utf8"

	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// Take returns the canonical JSON snapshot of v.
func Take(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeValidation, "failed to take snapshot", err)
	}
	// Encode always appends a newline.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Parse decodes a snapshot produced by Take.
func Parse[T any](data []byte) (T, error) {
	var out T
	if !utf8.Valid(data) {
		return out, sdkerr.New(sdkerr.CodeParse, "snapshot is not valid UTF-8")
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, sdkerr.Wrap(sdkerr.CodeParse, "snapshot is not valid JSON", err)
	}
	return out, nil
}
