package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hlview/hl-dashboard/internal/account"
)

// BaselineCache keeps recent REST account snapshots so panels
// re-subscribing to the same address within the TTL do not refetch.
type BaselineCache struct {
	cache *gocache.Cache
}

// NewBaselineCache creates the cache; cleanup runs at twice the TTL.
func NewBaselineCache(ttl time.Duration) *BaselineCache {
	return &BaselineCache{
		cache: gocache.New(ttl, ttl*2),
	}
}

func (c *BaselineCache) Get(address string) (account.Snapshot, bool) {
	v, ok := c.cache.Get(strings.ToLower(address))
	if !ok {
		return account.Snapshot{}, false
	}
	return v.(account.Snapshot), true
}

func (c *BaselineCache) Set(address string, snap account.Snapshot) {
	c.cache.Set(strings.ToLower(address), snap, gocache.DefaultExpiration)
}

func (c *BaselineCache) Delete(address string) {
	c.cache.Delete(strings.ToLower(address))
}

func (c *BaselineCache) ItemCount() int {
	return c.cache.ItemCount()
}
