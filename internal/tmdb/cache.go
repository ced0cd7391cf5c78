package tmdb

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"showcase/catalogservice/internal/domain"
	"showcase/catalogservice/internal/metrics"
)

// sharedLoadTimeout bounds a load shared between concurrent callers. The load
// runs detached from the caller that started it.
const sharedLoadTimeout = 30 * time.Second

// ShowCache maps a query key to the show list it produced. Entries never
// expire; the first successful store for a key wins until Reset.
//
// Every Reset advances the epoch. Producers capture the epoch before they
// start, and a store carrying an older epoch is dropped so a result computed
// for the previous locale never lands in the fresh cache.
type ShowCache struct {
	mu          sync.RWMutex
	entries     map[string][]domain.Show
	epoch       uint64
	group       singleflight.Group
	loadTimeout time.Duration
}

func NewShowCache() *ShowCache {
	return &ShowCache{
		entries:     make(map[string][]domain.Show),
		loadTimeout: sharedLoadTimeout,
	}
}

func (c *ShowCache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

func (c *ShowCache) Get(key string) ([]domain.Show, bool) {
	c.mu.RLock()
	shows, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return domain.CloneShows(shows), true
}

// Store records shows under key unless the key is already set or a reset
// happened after epoch was read. It reports whether the entry was written.
func (c *ShowCache) Store(epoch uint64, key string, shows []domain.Show) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if epoch != c.epoch {
		return false
	}
	if _, exists := c.entries[key]; exists {
		return false
	}
	if shows == nil {
		shows = []domain.Show{}
	}
	c.entries[key] = domain.CloneShows(shows)
	return true
}

// GetOrCompute returns the cached list for key, running produce at most once
// per key while a computation is in flight. Concurrent callers share the
// result of the running producer.
//
// produce runs on a context that keeps the first caller's values but not its
// cancellation, so a caller giving up never fails the others. Each caller
// stops waiting when its own ctx ends. A producer error, including the load
// timing out, leaves the key uncached.
func (c *ShowCache) GetOrCompute(ctx context.Context, key string, produce func(context.Context) ([]domain.Show, error)) ([]domain.Show, error) {
	if shows, ok := c.Get(key); ok {
		metrics.CacheHitsTotal.WithLabelValues("shows").Inc()
		return shows, nil
	}
	metrics.CacheMissesTotal.WithLabelValues("shows").Inc()

	results := c.group.DoChan(key, func() (any, error) {
		if shows, ok := c.Get(key); ok {
			return shows, nil
		}
		epoch := c.Epoch()
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		shows, err := produce(loadCtx)
		if err == nil {
			err = loadCtx.Err()
		}
		if err != nil {
			return nil, err
		}
		c.Store(epoch, key, shows)
		if stored, ok := c.Get(key); ok {
			return stored, nil
		}
		return shows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Err
		}
		return domain.CloneShows(result.Val.([]domain.Show)), nil
	}
}

func (c *ShowCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ShowCache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string][]domain.Show)
	c.epoch++
	c.mu.Unlock()
}
