package jwt

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// DefaultTTL is the token lifetime when GeneratorConfig.TTL is zero.
const DefaultTTL = 20 * time.Minute

// MinTTL is the shortest lifetime a token can carry. Claims are whole
// seconds, so a shorter TTL could yield exp == iat.
const MinTTL = time.Second

// GeneratorConfig holds the application key material for issuing tokens.
type GeneratorConfig struct {
	AppID    string
	APIKeyID string
	APIKey   crypto.PrivateKey
	Signer   crypto.AccessTokenSigner
	TTL      time.Duration

	// Now overrides the current time (for testing).
	Now func() time.Time
}

// Generator issues signed tokens. It is meant for server-side use where the
// application private key is available.
type Generator struct {
	config GeneratorConfig
}

// NewGenerator validates config and creates a Generator.
func NewGenerator(config GeneratorConfig) (*Generator, error) {
	if config.AppID == "" {
		return nil, sdkerr.New(sdkerr.CodeValidation, "app id is required")
	}
	if config.APIKeyID == "" {
		return nil, sdkerr.New(sdkerr.CodeValidation, "api key id is required")
	}
	if config.APIKey == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "api key is required")
	}
	if config.Signer == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "access token signer is required")
	}
	if config.TTL < 0 {
		return nil, sdkerr.New(sdkerr.CodeValidation, "ttl must not be negative")
	}
	if config.TTL == 0 {
		config.TTL = DefaultTTL
	}
	if config.TTL < MinTTL {
		return nil, sdkerr.Newf(sdkerr.CodeValidation, "ttl must be at least %s, got %s", MinTTL, config.TTL)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Generator{config: config}, nil
}

// TTL returns the configured token lifetime.
func (g *Generator) TTL() time.Duration {
	return g.config.TTL
}

// Generate issues a token for identity. additionalData is optional.
func (g *Generator) Generate(identity string, additionalData map[string]any) (*Token, error) {
	now := g.config.Now()

	header := Header{
		Algorithm:   g.config.Signer.Algorithm(),
		ContentType: ContentType,
		KeyID:       g.config.APIKeyID,
		Type:        TokenType,
	}
	body := Body{
		Issuer:         IssuerPrefix + g.config.AppID,
		Subject:        SubjectPrefix + identity,
		IssuedAt:       now.Unix(),
		ExpiresAt:      now.Add(g.config.TTL).Unix(),
		AdditionalData: additionalData,
	}

	headerSegment, err := encodeSegment(header)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token header: %w", err)
	}
	bodySegment, err := encodeSegment(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token body: %w", err)
	}
	signedData := headerSegment + "." + bodySegment

	signature, err := g.config.Signer.GenerateTokenSignature([]byte(signedData), g.config.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Token{
		Header:     header,
		Body:       body,
		Signature:  signature,
		signedData: signedData,
		raw:        signedData + "." + base64.RawURLEncoding.EncodeToString(signature),
	}, nil
}
