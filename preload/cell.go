package preload

import "sync"

// snapshotCell holds the bundle with write-once semantics. It is either
// empty or set; once set it never changes, so readers observing a bundle can
// rely on its contents for the life of the process.
type snapshotCell struct {
	mu     sync.Mutex
	bundle *Bundle
	set    bool
}

// store places the bundle into the cell. Only the first call wins; later
// calls report false and leave the cell untouched.
func (c *snapshotCell) store(b *Bundle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return false
	}
	c.bundle = b
	c.set = true
	return true
}

// load returns the stored bundle, if any.
func (c *snapshotCell) load() (*Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bundle, c.set
}
