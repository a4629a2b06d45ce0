package windowing

import "sync"

// Cache holds precomputed Hann coefficients keyed by window length.
// Entries are populated lazily on first use of a given size and reused
// for every later frame of that size. Population is write-once-per-key,
// so concurrent readers never observe a partial window.
type Cache struct {
	mu      sync.Mutex
	windows map[int]*Hann
}

// NewCache creates an empty window cache
func NewCache() *Cache {
	return &Cache{
		windows: make(map[int]*Hann),
	}
}

// Get returns the Hann window for the given size, generating and caching
// it on first use
func (c *Cache) Get(size int) *Hann {
	c.mu.Lock()
	defer c.mu.Unlock()

	if w, ok := c.windows[size]; ok {
		return w
	}

	w := NewHann(size)
	c.windows[size] = w
	return w
}

// Len returns the number of cached window sizes
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// Reset drops all cached windows
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.windows = make(map[int]*Hann)
}
