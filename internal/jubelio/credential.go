package jubelio

import (
	"sync"
	"time"

	"storefront-gateway/internal/domain"
)

// CredentialCache holds the process-wide upstream credential.
// Construct it once and share it between the token provider and handlers.
type CredentialCache struct {
	mu   sync.RWMutex
	cred domain.Credential
}

func NewCredentialCache() *CredentialCache {
	return &CredentialCache{}
}

// Get returns the cached token when it is still valid at now
func (c *CredentialCache) Get(now time.Time) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.cred.Valid(now) {
		return "", false
	}
	return c.cred.Token, true
}

// Set replaces the cached credential. Last writer wins.
func (c *CredentialCache) Set(cred domain.Credential) {
	c.mu.Lock()
	c.cred = cred
	c.mu.Unlock()
}

// Invalidate drops the cached credential so the next lookup re-authenticates
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	c.cred = domain.Credential{}
	c.mu.Unlock()
}
