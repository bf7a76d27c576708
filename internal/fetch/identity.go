// Package fetch retrieves product documents with identity rotation,
// anti-automation detection, per-host rate limits and circuit breakers,
// and a retry controller that merges partial extractions across attempts.
package fetch

import (
	"sync"
)

// Identity is one request fingerprint: the header set a fetch presents.
type Identity struct {
	UserAgent      string
	AcceptLanguage string
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36 Edg/124.0.0.0",
}

// IdentityPool hands out identities round-robin so consecutive attempts
// against the same host present different fingerprints.
type IdentityPool struct {
	mu         sync.Mutex
	identities []Identity
	next       int
}

// NewIdentityPool builds a pool from the given user agents, falling back to
// the built-in set when none are provided.
func NewIdentityPool(userAgents ...string) *IdentityPool {
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	identities := make([]Identity, len(userAgents))
	for i, ua := range userAgents {
		identities[i] = Identity{
			UserAgent:      ua,
			AcceptLanguage: "en-US,en;q=0.9",
		}
	}
	return &IdentityPool{identities: identities}
}

// Next returns the next identity in rotation.
func (p *IdentityPool) Next() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.identities[p.next%len(p.identities)]
	p.next++
	return id
}

// Size returns the number of distinct identities in the pool.
func (p *IdentityPool) Size() int { return len(p.identities) }
