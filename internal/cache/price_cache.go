// Package cache holds the in-memory caches: last-known mid prices and
// TTL-bounded REST baselines.
package cache

import "sync"

// PriceCache keeps the last pushed mid-price map. Each update replaces
// the map wholesale; there is no incremental merge.
type PriceCache struct {
	mu   sync.RWMutex
	mids map[string]string
	subs map[int64]func(map[string]string)
	seq  int64
}

func NewPriceCache() *PriceCache {
	return &PriceCache{
		mids: make(map[string]string),
		subs: make(map[int64]func(map[string]string)),
	}
}

// Update replaces the cached map and notifies subscribers. Every
// subscriber receives its own copy so none can mutate the cache.
func (c *PriceCache) Update(mids map[string]string) {
	c.mu.Lock()
	c.mids = mids
	callbacks := make([]func(map[string]string), 0, len(c.subs))
	for _, cb := range c.subs {
		callbacks = append(callbacks, cb)
	}
	c.mu.Unlock()

	for _, cb := range callbacks {
		cb(copyMids(mids))
	}
}

// Snapshot returns a copy of the current map.
func (c *PriceCache) Snapshot() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyMids(c.mids)
}

// Mid returns the last-known mid price for a symbol.
func (c *PriceCache) Mid(symbol string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	px, ok := c.mids[symbol]
	return px, ok
}

// Subscribe registers cb for future updates and, when the cache is
// already populated, invokes it immediately with the current map. The
// returned function unsubscribes and is safe to call more than once.
func (c *PriceCache) Subscribe(cb func(map[string]string)) func() {
	c.mu.Lock()
	c.seq++
	id := c.seq
	c.subs[id] = cb
	current := copyMids(c.mids)
	c.mu.Unlock()

	if len(current) > 0 {
		cb(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *PriceCache) SubscriberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

func copyMids(mids map[string]string) map[string]string {
	cp := make(map[string]string, len(mids))
	for k, v := range mids {
		cp[k] = v
	}
	return cp
}
