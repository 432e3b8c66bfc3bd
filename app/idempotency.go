package app

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// CachedResponse is the recorded result of a completed request, replayed
// verbatim for later requests carrying the same idempotency key.
type CachedResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type idemEntry struct {
	done chan struct{}
	resp CachedResponse
	ok   bool
}

// IdempotencyCache deduplicates mutating requests by client-supplied key.
// The first request for a key wins and executes; concurrent requests for
// the same key block until the winner stores its response, then replay it.
// At most one side effect happens per key.
type IdempotencyCache struct {
	mu      sync.Mutex
	entries map[string]*idemEntry
	logger  zerolog.Logger
}

// NewIdempotencyCache creates an empty cache.
func NewIdempotencyCache(logger zerolog.Logger) *IdempotencyCache {
	return &IdempotencyCache{
		entries: make(map[string]*idemEntry),
		logger:  logger,
	}
}

// Check claims a key or waits for its response. A false return means the
// caller is the winner and must finish with Store or Abandon; a true return
// carries the recorded response to replay.
func (c *IdempotencyCache) Check(key string) (CachedResponse, bool) {
	for {
		c.mu.Lock()
		e, exists := c.entries[key]
		if !exists {
			c.entries[key] = &idemEntry{done: make(chan struct{})}
			c.mu.Unlock()
			return CachedResponse{}, false
		}
		c.mu.Unlock()

		<-e.done
		if e.ok {
			return e.resp, true
		}
		// The winner abandoned the key; race to claim it again.
	}
}

// Store records the winner's response and releases any waiters.
func (c *IdempotencyCache) Store(key string, resp CachedResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists {
		e = &idemEntry{done: make(chan struct{})}
		c.entries[key] = e
	}
	if e.ok {
		return
	}
	e.resp = resp
	e.ok = true
	close(e.done)
}

// Abandon releases a claimed key without caching anything, for requests
// that never reached their side effect. Waiters retry the claim.
func (c *IdempotencyCache) Abandon(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, exists := c.entries[key]
	if !exists || e.ok {
		return
	}
	delete(c.entries, key)
	close(e.done)
}

// Clear drops all cached responses and releases in-flight claims.
func (c *IdempotencyCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if !e.ok {
			close(e.done)
		}
	}
	c.entries = make(map[string]*idemEntry)
	c.logger.Debug().Msg("idempotency cache cleared")
}
