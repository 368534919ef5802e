package site

import (
	"sync"
	"time"
)

// PageSnapshot holds one fully rendered page.
type PageSnapshot struct {
	Body     []byte
	LoadedAt time.Time
}

// PageCache keeps rendered page bytes for reuse across requests. The home
// page is cached only once a snapshot-backed render happened, so early
// requests never freeze partial content.
type PageCache struct {
	mu   sync.RWMutex
	home PageSnapshot
}

func newPageCache() *PageCache {
	return &PageCache{}
}

// UpdateHome stores the rendered home page.
func (c *PageCache) UpdateHome(body []byte) {
	c.mu.Lock()
	c.home = PageSnapshot{Body: body, LoadedAt: time.Now()}
	c.mu.Unlock()
}

// Home returns the cached home page bytes. Callers must not modify them.
func (c *PageCache) Home() ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.home.Body == nil {
		return nil, false
	}
	return c.home.Body, true
}
