package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// jwksMinFetchInterval caps how often unknown-kid lookups can hit the
// upstream endpoint, so a stream of garbage tokens cannot hammer it.
const jwksMinFetchInterval = 10 * time.Second

// JWKSCache caches the RSA public keys of a JWKS endpoint. Lookups never
// block on the upstream while a cached key is available: a stale set is
// served as-is and refreshed in the background. Only an unknown kid forces
// a synchronous fetch, and concurrent fetches collapse into one.
type JWKSCache struct {
	uri     string
	refresh time.Duration
	client  *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time

	fetchMu sync.Mutex
}

func NewJWKSCache(uri string, refresh time.Duration) *JWKSCache {
	return &JWKSCache{
		uri:     uri,
		refresh: refresh,
		client:  &http.Client{Timeout: 10 * time.Second},
		keys:    make(map[string]*rsa.PublicKey),
	}
}

// Key returns the public key for kid. When the token carries no kid and the
// set holds exactly one key, that key is used.
func (c *JWKSCache) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	key, ok := c.lookupLocked(kid)
	stale := c.fetchedAt.IsZero() || time.Since(c.fetchedAt) > c.refresh
	c.mu.RUnlock()

	if ok {
		if stale {
			go func() {
				if err := c.Refresh(context.Background()); err != nil {
					log.WithError(err).Warn("Background JWKS refresh failed, keeping cached key set")
				}
			}()
		}
		return key, nil
	}

	// Unknown kid or cold cache: the token cannot be verified against what
	// we hold, so fetch before deciding. Upstream key rotation lands here.
	if err := c.Refresh(ctx); err != nil {
		c.mu.RLock()
		empty := len(c.keys) == 0
		c.mu.RUnlock()
		if empty {
			return nil, err
		}
		log.WithError(err).Warn("JWKS refresh failed, falling back to cached key set")
	}

	c.mu.RLock()
	key, ok = c.lookupLocked(kid)
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no key %q in JWKS key set", kid)
	}
	return key, nil
}

func (c *JWKSCache) lookupLocked(kid string) (*rsa.PublicKey, bool) {
	if key, ok := c.keys[kid]; ok {
		return key, true
	}
	if kid == "" && len(c.keys) == 1 {
		for _, key := range c.keys {
			return key, true
		}
	}
	return nil, false
}

// Refresh fetches the key set from the configured URI. Concurrent callers
// serialize on fetchMu; a caller that waited out another refresh returns
// without a second upstream round-trip.
func (c *JWKSCache) Refresh(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	c.mu.RLock()
	recent := !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < jwksMinFetchInterval
	c.mu.RUnlock()
	if recent {
		return nil
	}

	keys, err := c.fetch(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.keys = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	log.WithField("keys", len(keys)).Debug("JWKS key set refreshed")
	return nil
}

func (c *JWKSCache) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.uri, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS from %s: %w", c.uri, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint %s returned status %d", c.uri, resp.StatusCode)
	}

	var doc JWKSDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding JWKS document: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		if jwk.Kty != "RSA" || (jwk.Use != "" && jwk.Use != "sig") {
			continue
		}
		pub, err := parseRSAKey(jwk)
		if err != nil {
			log.WithError(err).WithField("kid", jwk.Kid).Warn("Skipping unparseable JWKS entry")
			continue
		}
		keys[jwk.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("JWKS document from %s contains no usable RSA signing keys", c.uri)
	}
	return keys, nil
}

func parseRSAKey(jwk JSONWebKey) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 {
		return nil, errors.New("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
