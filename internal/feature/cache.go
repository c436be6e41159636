package feature

import "sync"

// Key identifies one cached feature text: the record's similarity hash plus the
// group name. A struct key avoids collision risk from string concatenation.
type Key struct {
	Hash  string
	Group string
}

// Cache memoizes synthesized feature texts. Safe for concurrent use; a miss
// computed twice in a race is wasted work, not a correctness problem.
type Cache struct {
	mu sync.RWMutex
	m  map[Key]string
}

// NewCache creates an empty feature text cache.
func NewCache() *Cache {
	return &Cache{m: make(map[Key]string)}
}

// Get returns the cached text for key if present.
func (c *Cache) Get(key Key) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	text, ok := c.m[key]
	return text, ok
}

// Set stores the text for key.
func (c *Cache) Set(key Key, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = text
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Invalidate drops every cached group for the given record hash.
func (c *Cache) Invalidate(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.m {
		if k.Hash == hash {
			delete(c.m, k)
		}
	}
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[Key]string)
}
