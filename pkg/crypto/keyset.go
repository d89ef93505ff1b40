package crypto

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/capiscio/capiscio-cards/pkg/sdkerr"
	"github.com/go-jose/go-jose/v4"
)

// DefaultKeySetTTL is how long a fetched key set is reused.
const DefaultKeySetTTL = time.Hour

const maxKeySetSize = 1 << 20

type keySetEntry struct {
	keys      *jose.JSONWebKeySet
	expiresAt time.Time
}

// KeySetFetcher downloads JSON Web Key Sets, such as the card service's
// authority keys, and caches them per URL.
type KeySetFetcher struct {
	client *http.Client
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]keySetEntry
	ttl   time.Duration
}

// NewKeySetFetcher creates a fetcher with a 10 second timeout and DefaultKeySetTTL.
func NewKeySetFetcher() *KeySetFetcher {
	return &KeySetFetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		now:    time.Now,
		cache:  make(map[string]keySetEntry),
		ttl:    DefaultKeySetTTL,
	}
}

// SetTTL configures the cache time-to-live.
func (f *KeySetFetcher) SetTTL(ttl time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttl = ttl
}

// FlushCache drops all cached key sets.
func (f *KeySetFetcher) FlushCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cache = make(map[string]keySetEntry)
}

// Fetch returns the key set at url, from cache while it is fresh.
func (f *KeySetFetcher) Fetch(ctx context.Context, url string) (*jose.JSONWebKeySet, error) {
	if keys := f.cached(url); keys != nil {
		return keys, nil
	}
	return f.refresh(ctx, url)
}

// PublicKey returns the Ed25519 key with the given kid from the key set at
// url. An empty kid selects the only Ed25519 key in the set. A kid missing
// from a cached set triggers one refresh, so rotated keys are picked up
// before the TTL runs out.
func (f *KeySetFetcher) PublicKey(ctx context.Context, url, kid string) (ed25519.PublicKey, error) {
	cached := f.cached(url)
	keys := cached
	if keys == nil {
		var err error
		if keys, err = f.refresh(ctx, url); err != nil {
			return nil, err
		}
	}

	candidates := ed25519Keys(keys, kid)
	if len(candidates) == 0 && kid != "" && cached != nil {
		refreshed, err := f.refresh(ctx, url)
		if err != nil {
			return nil, err
		}
		candidates = ed25519Keys(refreshed, kid)
	}

	switch {
	case len(candidates) == 1:
		return candidates[0], nil
	case len(candidates) == 0 && kid != "":
		return nil, fmt.Errorf("%w: no Ed25519 key %q in key set", ErrInvalidKey, kid)
	case len(candidates) == 0:
		return nil, fmt.Errorf("%w: key set has no Ed25519 keys", ErrInvalidKey)
	default:
		return nil, fmt.Errorf("%w: key set has %d Ed25519 keys, a kid is required", ErrInvalidKey, len(candidates))
	}
}

func (f *KeySetFetcher) cached(url string) *jose.JSONWebKeySet {
	f.mu.RLock()
	defer f.mu.RUnlock()
	entry, ok := f.cache[url]
	if !ok || !f.now().Before(entry.expiresAt) {
		return nil
	}
	return entry.keys
}

// refresh downloads the key set and replaces the cache entry.
func (f *KeySetFetcher) refresh(ctx context.Context, url string) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeHTTP, "invalid key set request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeHTTP, "key set download failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, sdkerr.Newf(sdkerr.CodeHTTP, "key set download failed: status %d", resp.StatusCode)
	}

	var keys jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxKeySetSize)).Decode(&keys); err != nil {
		return nil, sdkerr.Wrap(sdkerr.CodeParse, "invalid key set document", err)
	}

	f.mu.Lock()
	f.cache[url] = keySetEntry{keys: &keys, expiresAt: f.now().Add(f.ttl)}
	f.mu.Unlock()

	return &keys, nil
}

// ed25519Keys returns the Ed25519 public keys in keys, filtered by kid
// unless kid is empty.
func ed25519Keys(keys *jose.JSONWebKeySet, kid string) []ed25519.PublicKey {
	var out []ed25519.PublicKey
	for _, jwk := range keys.Keys {
		if kid != "" && jwk.KeyID != kid {
			continue
		}
		switch k := jwk.Key.(type) {
		case ed25519.PublicKey:
			out = append(out, k)
		case ed25519.PrivateKey:
			out = append(out, k.Public().(ed25519.PublicKey))
		}
	}
	return out
}
