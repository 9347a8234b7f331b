package container

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// CacheStats reports section cache usage
type CacheStats struct {
	Capacity int   `json:"capacity"`
	Size     int   `json:"size"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// SectionCache memoizes decoded section bytes by key. Concurrent requests
// for the same missing section decode it once.
type SectionCache struct {
	capacity int
	items    *lru.Cache[string, []byte]
	group    singleflight.Group
	hits     atomic.Int64
	misses   atomic.Int64
}

// NewSectionCache creates a cache holding up to capacity sections
func NewSectionCache(capacity int) *SectionCache {
	if capacity <= 0 {
		capacity = 8 // Default capacity
	}
	items, err := lru.New[string, []byte](capacity)
	if err != nil {
		// lru.New only fails for non-positive sizes
		panic(err)
	}
	return &SectionCache{capacity: capacity, items: items}
}

// GetOrLoad returns the cached bytes for key or calls load and stores the result
func (c *SectionCache) GetOrLoad(key string, load func() ([]byte, error)) ([]byte, error) {
	if v, ok := c.items.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		data, err := load()
		if err != nil {
			return nil, err
		}
		c.items.Add(key, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Purge drops every cached section
func (c *SectionCache) Purge() {
	c.items.Purge()
}

// Stats returns cache usage statistics
func (c *SectionCache) Stats() CacheStats {
	return CacheStats{
		Capacity: c.capacity,
		Size:     c.items.Len(),
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}
