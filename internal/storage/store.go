// Package storage defines the durable key-value interface backing the
// persistent cache tier, with secondary indices on expiry and tags so the
// sweep and tag invalidation stay portable across backends.
package storage

import (
	"context"
	"time"
)

// Record is the stored form of a cache entry in the persistent tier.
type Record struct {
	Key          string
	Value        []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time // zero = never expires
	LastAccessed time.Time
	AccessCount  int64
	Size         int64
	RawSize      int64
	Compressed   bool
	Tags         []string
	Metadata     map[string]string
}

// Expired reports whether the record's TTL has passed at the given time.
func (r *Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}

// TierStats describes the store's occupancy.
type TierStats struct {
	Entries int64
	Size    int64
}

// Store is the abstract durable key-value backend. Get returns (nil, nil)
// for absent keys so callers can distinguish misses from backend failures.
// All write operations are idempotent by key.
type Store interface {
	// Open prepares the backend (connects, migrates schema, builds indices).
	Open(ctx context.Context) error

	Get(ctx context.Context, key string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error

	// Touch writes back access bookkeeping after a successful read.
	Touch(ctx context.Context, key string, lastAccessed time.Time, accessCount int64) error

	// DeleteExpired removes every record with a finite expiry at or before
	// cutoff, using the expiry index. Returns the number removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteByTag removes every record whose tag set contains tag, using
	// the tag index. Returns the number removed.
	DeleteByTag(ctx context.Context, tag string) (int64, error)

	Stats(ctx context.Context) (*TierStats, error)
	Close() error
}
