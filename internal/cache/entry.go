package cache

import (
	"time"
)

// Entry is the unit of storage in both tiers. Value holds the serialized
// payload, compressed when Compressed is true. Size is the stored byte
// length; RawSize is the length before compression.
type Entry struct {
	Key          string            `json:"key"`
	Value        []byte            `json:"value"`
	CreatedAt    time.Time         `json:"created_at"`
	ExpiresAt    time.Time         `json:"expires_at,omitempty"` // zero = never expires
	LastAccessed time.Time         `json:"last_accessed"`
	AccessCount  int64             `json:"access_count"`
	Size         int64             `json:"size"`
	RawSize      int64             `json:"raw_size"`
	Compressed   bool              `json:"compressed"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the entry's TTL has passed at the given time.
// Entries with a zero ExpiresAt never expire.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Touch records a successful read. Only valid reads update access bookkeeping.
func (e *Entry) Touch(now time.Time) {
	e.LastAccessed = now
	e.AccessCount++
}

// HasTag reports whether the entry carries the given tag.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
