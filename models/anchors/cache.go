package anchors

import "sync"

type gridKey struct {
	w, h int
}

// Cache memoizes grids per input resolution for a single Config.
//
// A Cache is owned by its caller and is safe for concurrent use. The returned
// slices are shared between callers and must not be modified.
type Cache struct {
	cfg   Config
	mu    sync.Mutex
	grids map[gridKey][]Anchor
}

// NewCache creates an empty cache for cfg.
func NewCache(cfg Config) *Cache {
	return &Cache{
		cfg:   cfg,
		grids: make(map[gridKey][]Anchor),
	}
}

// Config returns the layout the cache generates grids for.
func (c *Cache) Config() Config {
	return c.cfg
}

// Get returns the grid for a w x h input, generating it on first use.
func (c *Cache) Get(w, h int) []Anchor {
	key := gridKey{w: w, h: h}

	c.mu.Lock()
	defer c.mu.Unlock()

	if grid, ok := c.grids[key]; ok {
		return grid
	}
	grid := Generate(w, h, c.cfg)
	c.grids[key] = grid

	return grid
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.grids)
}
