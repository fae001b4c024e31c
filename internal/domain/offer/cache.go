package offer

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ Repository = (*CachedRepository)(nil)

// CachedRepository reads offers through a bounded LRU with per-entry TTL.
// Misses and errors are not cached.
type CachedRepository struct {
	next  Repository
	cache *expirable.LRU[int64, Offer]
}

// NewCachedRepository wraps next. A non-positive size or ttl disables caching
// and every call goes to next.
func NewCachedRepository(next Repository, size int, ttl time.Duration) *CachedRepository {
	c := &CachedRepository{next: next}
	if size > 0 && ttl > 0 {
		c.cache = expirable.NewLRU[int64, Offer](size, nil, ttl)
	}
	return c
}

// FindOffer returns a copy of the cached offer or loads it from next.
func (c *CachedRepository) FindOffer(ctx context.Context, id int64) (*Offer, error) {
	if c.cache == nil {
		return c.next.FindOffer(ctx, id)
	}
	if o, ok := c.cache.Get(id); ok {
		return &o, nil
	}

	o, err := c.next.FindOffer(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.Add(id, *o)
	return o, nil
}

// size returns the number of cached offers.
func (c *CachedRepository) size() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Len()
}
