package cache

import (
	"sync"
	"time"
)

// MemoryTier is the synchronous in-process L1 store. It is bounded by
// aggregate payload bytes and applies the configured eviction policy when an
// insert would overflow capacity.
//
// MemoryTier is safe for concurrent use by multiple goroutines.
type MemoryTier struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	order    []string // insertion order, the deterministic traversal order
	size     int64
	rawSize  int64
	capacity int64
	policy   Policy
}

// NewMemoryTier creates an empty L1 tier with the given byte capacity.
func NewMemoryTier(capacity int64, policy Policy) *MemoryTier {
	return &MemoryTier{
		entries:  make(map[string]*Entry),
		capacity: capacity,
		policy:   policy,
	}
}

// Get returns the entry for key and records the access. Expired entries are
// removed lazily and reported as absent without touching their bookkeeping.
func (m *MemoryTier) Get(key string, now time.Time) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.Expired(now) {
		m.removeLocked(key)
		return nil, false
	}
	e.Touch(now)
	return e, true
}

// Peek reports whether key holds a valid entry without updating access
// bookkeeping. Expired entries are removed lazily.
func (m *MemoryTier) Peek(key string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return false
	}
	if e.Expired(now) {
		m.removeLocked(key)
		return false
	}
	return true
}

// Set inserts or replaces an entry, evicting via the configured policy until
// the entry fits. When the tier has been emptied and the entry still exceeds
// capacity it is admitted anyway; a single entry is never rejected solely for
// being larger than the tier. Returns the number of entries evicted.
func (m *MemoryTier) Set(e *Entry) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Replace semantics: old accounting is released before the new entry
	// is measured against capacity.
	m.removeLocked(e.Key)

	evicted := 0
	for m.size+e.Size > m.capacity && len(m.entries) > 0 {
		victim := selectVictim(m.policy, m.snapshotLocked())
		if victim == "" {
			break
		}
		m.removeLocked(victim)
		evicted++
	}

	m.entries[e.Key] = e
	m.order = append(m.order, e.Key)
	m.size += e.Size
	m.rawSize += e.RawSize
	return evicted
}

// Delete removes key if present. Delete is idempotent so sweep and eviction
// removals may interleave safely.
func (m *MemoryTier) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(key)
}

// Clear removes every entry.
func (m *MemoryTier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Entry)
	m.order = nil
	m.size = 0
	m.rawSize = 0
}

// RemoveExpired deletes every entry whose TTL has passed and returns how
// many were removed. Used by the periodic sweep.
func (m *MemoryTier) RemoveExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, key := range m.snapshotKeysLocked() {
		if e, ok := m.entries[key]; ok && e.Expired(now) {
			m.removeLocked(key)
			removed++
		}
	}
	return removed
}

// KeysWithTag returns the keys of all entries carrying the tag, via a full
// scan in traversal order.
func (m *MemoryTier) KeysWithTag(tag string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for _, key := range m.order {
		if e, ok := m.entries[key]; ok && e.HasTag(tag) {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of stored entries.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Size returns the aggregate stored bytes.
func (m *MemoryTier) Size() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Capacity returns the configured byte bound.
func (m *MemoryTier) Capacity() int64 {
	return m.capacity
}

// Occupancy returns entry count, stored bytes and raw (pre-compression) bytes.
func (m *MemoryTier) Occupancy() (entries int64, size int64, rawSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), m.size, m.rawSize
}

// removeLocked deletes key from the map, the order slice and the size
// accounting. Caller holds m.mu.
func (m *MemoryTier) removeLocked(key string) bool {
	e, ok := m.entries[key]
	if !ok {
		return false
	}
	delete(m.entries, key)
	m.size -= e.Size
	m.rawSize -= e.RawSize
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// snapshotLocked returns the live entries in traversal order. Caller holds m.mu.
func (m *MemoryTier) snapshotLocked() []*Entry {
	snapshot := make([]*Entry, 0, len(m.entries))
	for _, key := range m.order {
		if e, ok := m.entries[key]; ok {
			snapshot = append(snapshot, e)
		}
	}
	return snapshot
}

func (m *MemoryTier) snapshotKeysLocked() []string {
	keys := make([]string, len(m.order))
	copy(keys, m.order)
	return keys
}
