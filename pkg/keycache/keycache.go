// Package keycache keeps decrypted record keys in memory for the duration of
// a client session.
//
// It is a convenience, not a security boundary: entries are held in plain
// memory, never persisted, and anyone with access to the process can read
// them. Revoking a grant server side does not evict keys a doctor already
// cached here; they stay usable until they expire or Clear is called.
package keycache

import (
	"time"

	gocache "github.com/pmylund/go-cache"
)

const (
	DefaultTTL     = 30 * time.Minute
	DefaultCleanup = 10 * time.Minute
)

// Cache maps record ids to keys. Safe for concurrent use.
type Cache struct {
	items *gocache.Cache
}

// New builds a cache whose entries expire after ttl. A zero ttl keeps entries
// until Delete or Clear.
func New(ttl, cleanup time.Duration) *Cache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	if cleanup <= 0 {
		cleanup = DefaultCleanup
	}
	return &Cache{items: gocache.New(ttl, cleanup)}
}

func (c *Cache) Put(recordID string, key []byte) {
	c.items.Set(recordID, clone(key), gocache.DefaultExpiration)
}

// Get returns a copy of the cached key.
func (c *Cache) Get(recordID string) ([]byte, bool) {
	v, ok := c.items.Get(recordID)
	if !ok {
		return nil, false
	}
	key, ok := v.([]byte)
	if !ok {
		return nil, false
	}
	return clone(key), true
}

func (c *Cache) Delete(recordID string) {
	c.items.Delete(recordID)
}

// Len counts live entries. Expired keys still waiting for the cleanup run
// are not included.
func (c *Cache) Len() int {
	return len(c.items.Items())
}

// Clear drops every entry. Called on logout.
func (c *Cache) Clear() {
	c.items.Flush()
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
