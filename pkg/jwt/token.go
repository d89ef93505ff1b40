// Package jwt implements the access tokens used to authenticate against the
// card service: a compact three-segment token signed with an application key.
package jwt

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// Fixed header and claim values.
const (
	ContentType = "capiscio-jwt;v=1"
	TokenType   = "JWT"

	// IssuerPrefix precedes the application id in "iss".
	IssuerPrefix = "app-"

	// SubjectPrefix precedes the identity in "sub".
	SubjectPrefix = "identity-"
)

// Header is the first token segment.
type Header struct {
	Algorithm   string `json:"alg"`
	ContentType string `json:"cty"`
	KeyID       string `json:"kid"`
	Type        string `json:"typ"`
}

// Body is the second token segment. Times are Unix seconds.
type Body struct {
	Issuer         string         `json:"iss"`
	Subject        string         `json:"sub"`
	IssuedAt       int64          `json:"iat"`
	ExpiresAt      int64          `json:"exp"`
	AdditionalData map[string]any `json:"ada,omitempty"`
}

// Token is a parsed or freshly generated access token.
type Token struct {
	Header    Header
	Body      Body
	Signature []byte

	// signedData is the exact "header.payload" text the signature covers.
	// Verification uses it instead of re-encoding Header and Body.
	signedData string
	raw        string
}

// Parse decodes a token string. Only the structure is checked; use
// Verifier to check the signature.
func Parse(s string) (*Token, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return nil, sdkerr.Newf(sdkerr.CodeMalformedToken, "token must have 3 segments, got %d", len(parts))
	}

	var header Header
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMalformedToken, "invalid token header", err)
	}
	var body Body
	if err := decodeSegment(parts[1], &body); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMalformedToken, "invalid token body", err)
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeMalformedToken, "invalid token signature encoding", err)
	}

	return &Token{
		Header:     header,
		Body:       body,
		Signature:  signature,
		signedData: parts[0] + "." + parts[1],
		raw:        s,
	}, nil
}

// String returns the compact token.
func (t *Token) String() string {
	return t.raw
}

// SignedData returns the bytes covered by the signature.
func (t *Token) SignedData() []byte {
	return []byte(t.signedData)
}

// IssuedAt returns the "iat" claim.
func (t *Token) IssuedAt() time.Time {
	return time.Unix(t.Body.IssuedAt, 0)
}

// ExpiresAt returns the "exp" claim.
func (t *Token) ExpiresAt() time.Time {
	return time.Unix(t.Body.ExpiresAt, 0)
}

// IsExpired reports whether the token is expired at the given time.
// There is no leeway.
func (t *Token) IsExpired(at time.Time) bool {
	return !at.Before(t.ExpiresAt())
}

// Identity returns the subject without its prefix.
func (t *Token) Identity() (string, error) {
	identity, ok := strings.CutPrefix(t.Body.Subject, SubjectPrefix)
	if !ok {
		return "", sdkerr.Newf(sdkerr.CodeMalformedToken, "sub must start with %q", SubjectPrefix)
	}
	return identity, nil
}

// AppID returns the issuer without its prefix.
func (t *Token) AppID() (string, error) {
	appID, ok := strings.CutPrefix(t.Body.Issuer, IssuerPrefix)
	if !ok {
		return "", sdkerr.Newf(sdkerr.CodeMalformedToken, "iss must start with %q", IssuerPrefix)
	}
	return appID, nil
}

func encodeSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeSegment(segment string, v any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
