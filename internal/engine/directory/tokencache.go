package directory

import (
	"sync"
	"time"
)

// TokenCache holds a provider access token between runs. It is injected
// into the client so each tenant gets its own slot and tests can supply
// a deterministic fake.
type TokenCache interface {
	Get() string
	Set(token string, expiresIn time.Duration)
}

// expiryMargin refreshes tokens slightly early so a token never expires
// mid-request.
const expiryMargin = 60 * time.Second

type memoryTokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{}
}

func (c *memoryTokenCache) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || time.Now().After(c.expiresAt) {
		return ""
	}
	return c.token
}

func (c *memoryTokenCache) Set(token string, expiresIn time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.expiresAt = time.Now().Add(expiresIn - expiryMargin)
}
