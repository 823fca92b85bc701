package decode

import "sync"

// Cache memoizes fetched or decoded input bytes under caller-chosen
// keys. It is constructed explicitly and threaded through by the
// caller; there is no process-wide cache and no ambient toggle.
type Cache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

// Get returns the bytes stored under key, if any.
func (c *Cache) Get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok
}

// Put stores data under key, replacing any previous entry.
func (c *Cache) Put(key string, data []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
}

// Clear discards every entry.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
