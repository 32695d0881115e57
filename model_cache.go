package ribose

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// ModelCache loads Models from disk at most once per path: an LRU
// bounds how many parsed Models stay resident, and a singleflight
// group collapses concurrent loads of the same path into one disk
// read, so N goroutines racing to start a Transductor against a model
// that isn't cached yet don't all pay the decode cost (spec §5:
// "a Model is shared, read-mostly, bound to many Transductors").
type ModelCache struct {
	cfg   *Config
	cache *lru.Cache[string, *Model]
	group singleflight.Group
}

// NewModelCache builds a cache sized by cfg's loader.cache_size.
func NewModelCache(cfg *Config) (*ModelCache, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	c, err := lru.New[string, *Model](cfg.GetInt("loader.cache_size"))
	if err != nil {
		return nil, err
	}
	return &ModelCache{cfg: cfg, cache: c}, nil
}

// Load returns the Model for path, loading and caching it on first
// use. Concurrent callers for the same path block on one load.
func (c *ModelCache) Load(path string) (*Model, error) {
	if m, ok := c.cache.Get(path); ok {
		return m, nil
	}
	v, err, _ := c.group.Do(path, func() (interface{}, error) {
		if m, ok := c.cache.Get(path); ok {
			return m, nil
		}
		m, err := LoadModelFile(path, c.cfg)
		if err != nil {
			return nil, err
		}
		c.cache.Add(path, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Model), nil
}

// Evict drops path from the cache, forcing the next Load to re-read
// the file from disk.
func (c *ModelCache) Evict(path string) { c.cache.Remove(path) }

// Len reports how many Models are currently cached.
func (c *ModelCache) Len() int { return c.cache.Len() }
