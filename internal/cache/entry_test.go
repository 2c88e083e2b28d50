package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryExpired(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	never := &Entry{Key: "k"}
	assert.False(t, never.Expired(now))
	assert.False(t, never.Expired(now.AddDate(100, 0, 0)))

	timed := &Entry{Key: "k", ExpiresAt: now.Add(time.Minute)}
	assert.False(t, timed.Expired(now))
	assert.False(t, timed.Expired(now.Add(59*time.Second)))
	assert.True(t, timed.Expired(now.Add(time.Minute)))
	assert.True(t, timed.Expired(now.Add(time.Hour)))
}

func TestEntryTouch(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e := &Entry{Key: "k", LastAccessed: now}

	e.Touch(now.Add(time.Second))
	e.Touch(now.Add(2 * time.Second))

	assert.Equal(t, int64(2), e.AccessCount)
	assert.Equal(t, now.Add(2*time.Second), e.LastAccessed)
}

func TestEntryHasTag(t *testing.T) {
	e := &Entry{Key: "k", Tags: []string{"a", "b"}}
	assert.True(t, e.HasTag("a"))
	assert.True(t, e.HasTag("b"))
	assert.False(t, e.HasTag("c"))

	bare := &Entry{Key: "k"}
	assert.False(t, bare.HasTag("a"))
}
