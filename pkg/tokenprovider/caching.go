package tokenprovider

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
)

// DefaultExpirationMargin is how long before expiry a cached token is renewed.
const DefaultExpirationMargin = 5 * time.Second

// Option configures a CachingProvider.
type Option func(*CachingProvider)

// WithExpirationMargin overrides DefaultExpirationMargin.
func WithExpirationMargin(margin time.Duration) Option {
	return func(p *CachingProvider) {
		if margin >= 0 {
			p.margin = margin
		}
	}
}

// WithClock overrides the clock (for testing).
func WithClock(now func() time.Time) Option {
	return func(p *CachingProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// WithInitialToken seeds the cache.
func WithInitialToken(token AccessToken) Option {
	return func(p *CachingProvider) {
		if !IsNil(token) {
			p.cached = token
		}
	}
}

// renewal is one in-flight call to the renew function. done is closed once
// token and err are set.
type renewal struct {
	done  chan struct{}
	token AccessToken
	err   error
}

// CachingProvider caches the token returned by a renew function and renews
// it when it is about to expire.
//
// The provider is either idle (inflight == nil) or renewing. While renewing,
// every caller waits on the same renewal, so overlapping requests trigger a
// single call to the renew function. A failed renewal leaves the cache as it
// was.
type CachingProvider struct {
	renew  TokenFunc
	margin time.Duration
	now    func() time.Time

	mu       sync.Mutex
	cached   AccessToken
	inflight *renewal
}

// NewCachingProvider creates a CachingProvider around renew.
func NewCachingProvider(renew TokenFunc, opts ...Option) (*CachingProvider, error) {
	if renew == nil {
		return nil, sdkerr.New(sdkerr.CodeValidation, "renew callback is required")
	}
	p := &CachingProvider{
		renew:  renew,
		margin: DefaultExpirationMargin,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(p)
	}
	return p, nil
}

// GetToken returns the cached token while it is fresh, otherwise the result
// of the current or a new renewal. Cancelling ctx stops this caller waiting;
// the renewal itself runs to completion for the other waiters.
func (p *CachingProvider) GetToken(ctx context.Context, tc *TokenContext) (AccessToken, error) {
	if tc == nil {
		tc = &TokenContext{}
	}

	p.mu.Lock()
	if p.cached != nil && !tc.ForceReload && !p.cached.IsExpired(p.now().Add(p.margin)) {
		token := p.cached
		p.mu.Unlock()
		return token, nil
	}
	r := p.inflight
	if r == nil {
		r = &renewal{done: make(chan struct{})}
		p.inflight = r
		go p.run(context.WithoutCancel(ctx), tc, r)
	}
	p.mu.Unlock()

	select {
	case <-r.done:
		return r.token, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *CachingProvider) run(ctx context.Context, tc *TokenContext, r *renewal) {
	token, err := call(ctx, p.renew, tc)

	p.mu.Lock()
	if err == nil {
		p.cached = token
	} else if p.cached != nil {
		log.Printf("access token renewal failed, keeping cached token: %v", err)
	}
	r.token, r.err = token, err
	p.inflight = nil
	p.mu.Unlock()

	close(r.done)
}

var _ Provider = (*CachingProvider)(nil)
