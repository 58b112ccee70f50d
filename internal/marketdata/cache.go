package marketdata

import "sync"

// Cache keeps the latest quote per symbol. Safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewCache() *Cache {
	return &Cache{quotes: make(map[string]Quote)}
}

// Update stores the quote as the latest snapshot for its symbol.
func (c *Cache) Update(q Quote) {
	c.mu.Lock()
	c.quotes[q.Symbol] = q
	c.mu.Unlock()
}

// Latest returns the most recent quote for a symbol, if any.
func (c *Cache) Latest(symbol string) (Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.quotes[symbol]
	return q, ok
}

// Symbols returns the symbols currently held in the cache.
func (c *Cache) Symbols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.quotes))
	for s := range c.quotes {
		out = append(out, s)
	}
	return out
}
