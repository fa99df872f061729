package session

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

type decodeResult struct {
	claims *Claims
	err    error
}

// Cache memoizes the raw token, its decoded claims and the derived identity
// for the lifetime of the process. All three are reset together by
// Invalidate. The store stays the single source of truth.
type Cache struct {
	store   *TokenStore
	decoder Decoder
	logger  *zap.Logger

	mu       sync.Mutex
	loaded   bool
	token    string
	identity *Identity
	// raw token -> decodeResult; failed decodes are remembered too
	decoded *gocache.Cache
}

func NewCache(store *TokenStore, decoder Decoder, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		store:   store,
		decoder: decoder,
		logger:  logger.With(zap.String("component", "session_cache")),
		decoded: gocache.New(gocache.NoExpiration, 0),
	}
}

// Token returns the persisted bearer token, reading the store on first use.
func (c *Cache) Token(ctx context.Context) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenLocked(ctx)
}

func (c *Cache) tokenLocked(ctx context.Context) (string, bool) {
	if !c.loaded {
		rec, ok := c.store.Read(ctx)
		c.loaded = true
		if ok {
			c.token = rec.Token
		}
	}
	return c.token, c.token != ""
}

// Claims returns the decoded payload of the current token. The decoder runs
// at most once per distinct token until the next Invalidate.
func (c *Cache) Claims(ctx context.Context) (*Claims, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.claimsLocked(ctx)
}

func (c *Cache) claimsLocked(ctx context.Context) (*Claims, error) {
	token, ok := c.tokenLocked(ctx)
	if !ok {
		return nil, ErrNoSession
	}

	if v, found := c.decoded.Get(token); found {
		res := v.(decodeResult)
		return res.claims, res.err
	}

	claims, err := c.decoder.Decode(token)
	if err != nil {
		c.logger.Warn("Failed to decode session token", zap.Error(err))
	}
	c.decoded.Set(token, decodeResult{claims: claims, err: err}, gocache.NoExpiration)
	return claims, err
}

// Identity returns the username and role of the current token.
func (c *Cache) Identity(ctx context.Context) (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity != nil {
		return *c.identity, true
	}
	claims, err := c.claimsLocked(ctx)
	if err != nil {
		return Identity{}, false
	}
	id := identityFromClaims(claims)
	c.identity = &id
	return id, true
}

// Invalidate drops every memoized value so the next access re-reads the
// store. The store itself is left alone.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.loaded = false
	c.token = ""
	c.identity = nil
	c.decoded.Flush()
	c.logger.Debug("Session cache invalidated")
}
