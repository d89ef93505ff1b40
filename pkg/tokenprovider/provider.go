// Package tokenprovider supplies access tokens to card service clients.
// Providers range from a fixed token to a caching provider that renews
// tokens on demand with at most one renewal in flight.
package tokenprovider

import (
	"context"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/jwt"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// AccessToken is a bearer credential. *jwt.Token implements it.
type AccessToken interface {
	String() string
	Identity() (string, error)
	IsExpired(at time.Time) bool
}

// TokenContext describes the request a token is needed for.
type TokenContext struct {
	Identity  string
	Service   string
	Operation string

	// ForceReload asks caching providers to skip their cached token.
	ForceReload bool
}

// Provider obtains access tokens.
type Provider interface {
	GetToken(ctx context.Context, tc *TokenContext) (AccessToken, error)
}

// TokenFunc produces a token for a request.
type TokenFunc func(ctx context.Context, tc *TokenContext) (AccessToken, error)

// RenewFunc produces a token in its compact string form.
type RenewFunc func(ctx context.Context, tc *TokenContext) (string, error)

// FromString adapts a RenewFunc by parsing its output with jwt.Parse.
func FromString(fn RenewFunc) TokenFunc {
	return func(ctx context.Context, tc *TokenContext) (AccessToken, error) {
		s, err := fn(ctx, tc)
		if err != nil {
			return nil, err
		}
		token, err := jwt.Parse(s)
		if err != nil {
			return nil, err
		}
		return token, nil
	}
}

// ConstProvider always returns the same token.
type ConstProvider struct {
	token AccessToken
}

// NewConstProvider creates a ConstProvider. token must not be nil.
func NewConstProvider(token AccessToken) (*ConstProvider, error) {
	if IsNil(token) {
		return nil, sdkerr.New(sdkerr.CodeValidation, "access token is required")
	}
	return &ConstProvider{token: token}, nil
}

// GetToken returns the fixed token.
func (p *ConstProvider) GetToken(_ context.Context, _ *TokenContext) (AccessToken, error) {
	return p.token, nil
}

// CallbackProvider calls a user function for every request.
type CallbackProvider struct {
	fn TokenFunc
}

// NewCallbackProvider creates a CallbackProvider.
func NewCallbackProvider(fn TokenFunc) (*CallbackProvider, error) {
	if fn == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "token callback is required")
	}
	return &CallbackProvider{fn: fn}, nil
}

// GetToken invokes the callback.
func (p *CallbackProvider) GetToken(ctx context.Context, tc *TokenContext) (AccessToken, error) {
	return call(ctx, p.fn, tc)
}

// GeneratorProvider issues tokens locally with a jwt.Generator. Server side only.
type GeneratorProvider struct {
	generator       *jwt.Generator
	defaultIdentity string
	additionalData  map[string]any
}

// NewGeneratorProvider creates a GeneratorProvider. defaultIdentity is used
// when the token context carries no identity.
func NewGeneratorProvider(generator *jwt.Generator, defaultIdentity string, additionalData map[string]any) (*GeneratorProvider, error) {
	if generator == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "jwt generator is required")
	}
	return &GeneratorProvider{
		generator:       generator,
		defaultIdentity: defaultIdentity,
		additionalData:  additionalData,
	}, nil
}

// GetToken generates a fresh token.
func (p *GeneratorProvider) GetToken(_ context.Context, tc *TokenContext) (AccessToken, error) {
	identity := p.defaultIdentity
	if tc != nil && tc.Identity != "" {
		identity = tc.Identity
	}
	token, err := p.generator.Generate(identity, p.additionalData)
	if err != nil {
		return nil, err
	}
	return token, nil
}

// call runs fn and rejects a nil token without an error.
func call(ctx context.Context, fn TokenFunc, tc *TokenContext) (AccessToken, error) {
	if tc == nil {
		tc = &TokenContext{}
	}
	token, err := fn(ctx, tc)
	if err != nil {
		return nil, err
	}
	if IsNil(token) {
		return nil, sdkerr.New(sdkerr.CodeValidation, "token callback returned no token")
	}
	return token, nil
}

// IsNil reports whether token is nil, including a nil *jwt.Token.
func IsNil(token AccessToken) bool {
	if token == nil {
		return true
	}
	t, ok := token.(*jwt.Token)
	return ok && t == nil
}

var (
	_ Provider = (*ConstProvider)(nil)
	_ Provider = (*CallbackProvider)(nil)
	_ Provider = (*GeneratorProvider)(nil)
)
