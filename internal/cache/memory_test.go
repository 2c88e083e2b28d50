package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sizedEntry(key string, size int64, now time.Time) *Entry {
	return &Entry{
		Key:          key,
		Value:        make([]byte, size),
		CreatedAt:    now,
		LastAccessed: now,
		Size:         size,
		RawSize:      size,
	}
}

func TestMemoryTierGetSet(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)

	_, found := tier.Get("missing", now)
	assert.False(t, found)

	tier.Set(sizedEntry("k", 10, now))
	e, found := tier.Get("k", now.Add(time.Second))
	require.True(t, found)
	assert.Equal(t, int64(1), e.AccessCount)
	assert.Equal(t, now.Add(time.Second), e.LastAccessed)
	assert.Equal(t, int64(10), tier.Size())
	assert.Equal(t, 1, tier.Len())
}

func TestMemoryTierLazyExpiry(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)

	e := sizedEntry("k", 10, now)
	e.ExpiresAt = now.Add(time.Minute)
	tier.Set(e)

	// Still valid just before the deadline.
	_, found := tier.Get("k", now.Add(59*time.Second))
	assert.True(t, found)

	_, found = tier.Get("k", now.Add(2*time.Minute))
	assert.False(t, found)
	assert.Equal(t, 0, tier.Len())
	assert.Equal(t, int64(0), tier.Size())
}

func TestMemoryTierPeekDoesNotTouch(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)
	tier.Set(sizedEntry("k", 10, now))

	assert.True(t, tier.Peek("k", now.Add(time.Second)))

	e, found := tier.Get("k", now.Add(2*time.Second))
	require.True(t, found)
	assert.Equal(t, int64(1), e.AccessCount)
}

func TestMemoryTierReplaceAccounting(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(100, PolicyLRU)

	tier.Set(sizedEntry("k", 60, now))
	tier.Set(sizedEntry("k", 80, now.Add(time.Second)))

	assert.Equal(t, 1, tier.Len())
	assert.Equal(t, int64(80), tier.Size())
}

func TestMemoryTierEvictsUntilFit(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(100, PolicyLRU)

	for i := 0; i < 5; i++ {
		tier.Set(sizedEntry(fmt.Sprintf("k%d", i), 20, now.Add(time.Duration(i)*time.Second)))
	}
	assert.Equal(t, int64(100), tier.Size())

	evicted := tier.Set(sizedEntry("big", 60, now.Add(time.Minute)))
	assert.Equal(t, 3, evicted)
	assert.LessOrEqual(t, tier.Size(), int64(100))

	// The least recently used entries went first.
	_, found := tier.Get("k0", now.Add(time.Minute))
	assert.False(t, found)
	_, found = tier.Get("k4", now.Add(time.Minute))
	assert.True(t, found)
}

func TestMemoryTierOversizedEntryAdmitted(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(100, PolicyLRU)
	tier.Set(sizedEntry("small", 20, now))

	tier.Set(sizedEntry("huge", 500, now.Add(time.Second)))

	// Everything else was evicted, but the oversized entry is stored.
	assert.Equal(t, 1, tier.Len())
	_, found := tier.Get("huge", now.Add(2*time.Second))
	assert.True(t, found)
}

func TestMemoryTierRemoveExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)

	fresh := sizedEntry("fresh", 10, now)
	fresh.ExpiresAt = now.Add(time.Hour)
	stale := sizedEntry("stale", 10, now)
	stale.ExpiresAt = now.Add(time.Minute)
	forever := sizedEntry("forever", 10, now)

	tier.Set(fresh)
	tier.Set(stale)
	tier.Set(forever)

	removed := tier.RemoveExpired(now.Add(30 * time.Minute))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 2, tier.Len())
	assert.True(t, tier.Peek("fresh", now.Add(30*time.Minute)))
	assert.True(t, tier.Peek("forever", now.Add(30*time.Minute)))
}

func TestMemoryTierKeysWithTag(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)

	a := sizedEntry("a", 10, now)
	a.Tags = []string{"grp"}
	b := sizedEntry("b", 10, now)
	b.Tags = []string{"grp", "other"}
	c := sizedEntry("c", 10, now)
	c.Tags = []string{"other"}

	tier.Set(a)
	tier.Set(b)
	tier.Set(c)

	assert.Equal(t, []string{"a", "b"}, tier.KeysWithTag("grp"))
	assert.Empty(t, tier.KeysWithTag("nope"))
}

func TestMemoryTierDeleteIdempotent(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)
	tier.Set(sizedEntry("k", 10, now))

	assert.True(t, tier.Delete("k"))
	assert.False(t, tier.Delete("k"))
	assert.Equal(t, int64(0), tier.Size())
}

func TestMemoryTierClear(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	tier := NewMemoryTier(1024, PolicyLRU)
	tier.Set(sizedEntry("a", 10, now))
	tier.Set(sizedEntry("b", 10, now))

	tier.Clear()
	assert.Equal(t, 0, tier.Len())
	assert.Equal(t, int64(0), tier.Size())
}
