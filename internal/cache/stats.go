package cache

import (
	"sync/atomic"
)

// Stats is a point-in-time snapshot of cache activity and tier occupancy.
type Stats struct {
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Evictions   uint64 `json:"evictions"`
	Expirations uint64 `json:"expirations"`
	// HitRate is hits/(hits+misses), 0 before any lookups.
	HitRate float64 `json:"hit_rate"`
	// CompressionRatio is total raw bytes divided by total stored bytes in
	// the memory tier, 1 when nothing is stored.
	CompressionRatio float64   `json:"compression_ratio"`
	Memory           TierStats `json:"memory"`
	Persistent       TierStats `json:"persistent"`
}

// TierStats describes one tier's occupancy.
type TierStats struct {
	Enabled  bool  `json:"enabled"`
	Entries  int64 `json:"entries"`
	Size     int64 `json:"size"`
	Capacity int64 `json:"capacity,omitempty"`
}

// counters tracks cache activity with atomic counters so foreground
// operations and the sweeper can report concurrently.
type counters struct {
	hits        atomic.Uint64
	misses      atomic.Uint64
	evictions   atomic.Uint64
	expirations atomic.Uint64
}

func (c *counters) Hit()  { c.hits.Add(1) }
func (c *counters) Miss() { c.misses.Add(1) }

func (c *counters) Evictions(n int) {
	if n > 0 {
		c.evictions.Add(uint64(n))
	}
}

func (c *counters) Expirations(n int) {
	if n > 0 {
		c.expirations.Add(uint64(n))
	}
}

// Reset zeroes all counters. Stored entries are untouched.
func (c *counters) Reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.expirations.Store(0)
}

func (c *counters) snapshot() (hits, misses, evictions, expirations uint64, hitRate float64) {
	hits = c.hits.Load()
	misses = c.misses.Load()
	evictions = c.evictions.Load()
	expirations = c.expirations.Load()
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return
}
