package location

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedSource memoizes option lists per (level, parent) for a short TTL.
type CachedSource struct {
	src   OptionSource
	cache *expirable.LRU[string, []Option]
}

func NewCachedSource(src OptionSource, size int, ttl time.Duration) *CachedSource {
	return &CachedSource{
		src:   src,
		cache: expirable.NewLRU[string, []Option](size, nil, ttl),
	}
}

func (c *CachedSource) Options(ctx context.Context, level Level, parentID string) ([]Option, error) {
	k := level.String() + ":" + parentID
	if opts, ok := c.cache.Get(k); ok {
		return opts, nil
	}
	opts, err := c.src.Options(ctx, level, parentID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(k, opts)
	return opts, nil
}
