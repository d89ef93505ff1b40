package tokenprovider_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/crypto"
	"github.com/capiscio/capiscio-cards/pkg/jwt"
	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/capiscio/capiscio-cards/pkg/tokenprovider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	value     string
	identity  string
	expiresAt time.Time
}

func (t *fakeToken) String() string { return t.value }
func (t *fakeToken) Identity() (string, error) { return t.identity, nil }
func (t *fakeToken) IsExpired(at time.Time) bool { return !at.Before(t.expiresAt) }

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newGenerator(t *testing.T) *jwt.Generator {
	t.Helper()
	keys, err := crypto.NewEd25519Crypto().GenerateKeys()
	require.NoError(t, err)
	g, err := jwt.NewGenerator(jwt.GeneratorConfig{
		AppID:    "app-1",
		APIKeyID: "kid-1",
		APIKey:   keys.PrivateKey,
		Signer:   crypto.NewTokenSigner(),
	})
	require.NoError(t, err)
	return g
}

func TestConstProvider(t *testing.T) {
	_, err := tokenprovider.NewConstProvider(nil)
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	var typedNil *jwt.Token
	_, err = tokenprovider.NewConstProvider(typedNil)
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	token := &fakeToken{value: "abc"}
	p, err := tokenprovider.NewConstProvider(token)
	require.NoError(t, err)

	got, err := p.GetToken(context.Background(), nil)
	require.NoError(t, err)
	assert.Same(t, token, got)
}

func TestCallbackProviderFromString(t *testing.T) {
	generated, err := newGenerator(t).Generate("alice", nil)
	require.NoError(t, err)

	var seen *tokenprovider.TokenContext
	p, err := tokenprovider.NewCallbackProvider(tokenprovider.FromString(
		func(_ context.Context, tc *tokenprovider.TokenContext) (string, error) {
			seen = tc
			return generated.String(), nil
		}))
	require.NoError(t, err)

	tc := &tokenprovider.TokenContext{Identity: "alice", Service: "cards", Operation: "get"}
	got, err := p.GetToken(context.Background(), tc)
	require.NoError(t, err)
	assert.Equal(t, generated.String(), got.String())
	assert.Same(t, tc, seen)

	identity, err := got.Identity()
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestCallbackProviderErrors(t *testing.T) {
	_, err := tokenprovider.NewCallbackProvider(nil)
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	malformed, err := tokenprovider.NewCallbackProvider(tokenprovider.FromString(
		func(context.Context, *tokenprovider.TokenContext) (string, error) {
			return "not-a-token", nil
		}))
	require.NoError(t, err)
	_, err = malformed.GetToken(context.Background(), nil)
	assert.ErrorIs(t, err, sdkerr.ErrMalformedToken)

	boom := errors.New("boom")
	failing, err := tokenprovider.NewCallbackProvider(
		func(context.Context, *tokenprovider.TokenContext) (tokenprovider.AccessToken, error) {
			return nil, boom
		})
	require.NoError(t, err)
	_, err = failing.GetToken(context.Background(), nil)
	assert.ErrorIs(t, err, boom)

	empty, err := tokenprovider.NewCallbackProvider(
		func(context.Context, *tokenprovider.TokenContext) (tokenprovider.AccessToken, error) {
			return nil, nil
		})
	require.NoError(t, err)
	_, err = empty.GetToken(context.Background(), nil)
	assert.ErrorIs(t, err, sdkerr.ErrValidation)
}

func TestGeneratorProvider(t *testing.T) {
	_, err := tokenprovider.NewGeneratorProvider(nil, "", nil)
	assert.ErrorIs(t, err, sdkerr.ErrValidation)

	p, err := tokenprovider.NewGeneratorProvider(newGenerator(t), "service", map[string]any{"scope": "cards"})
	require.NoError(t, err)

	token, err := p.GetToken(context.Background(), &tokenprovider.TokenContext{})
	require.NoError(t, err)
	identity, err := token.Identity()
	require.NoError(t, err)
	assert.Equal(t, "service", identity)
	require.IsType(t, &jwt.Token{}, token)
	assert.Equal(t, "cards", token.(*jwt.Token).Body.AdditionalData["scope"])

	token, err = p.GetToken(context.Background(), &tokenprovider.TokenContext{Identity: "bob"})
	require.NoError(t, err)
	identity, err = token.Identity()
	require.NoError(t, err)
	assert.Equal(t, "bob", identity)
}
