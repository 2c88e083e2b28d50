package cache

import (
	"tiercache/internal/common/errors"
)

// Policy identifies an eviction strategy for the memory tier.
type Policy string

const (
	// PolicyLRU evicts the entry with the oldest LastAccessed.
	PolicyLRU Policy = "lru"
	// PolicyLFU evicts the entry with the smallest AccessCount.
	PolicyLFU Policy = "lfu"
	// PolicyFIFO evicts the entry with the oldest CreatedAt.
	PolicyFIFO Policy = "fifo"
	// PolicyTTL evicts the entry with the nearest finite ExpiresAt. When no
	// entry carries a finite expiry it falls back to FIFO, so capacity
	// eviction can always make progress.
	PolicyTTL Policy = "ttl"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PolicyLRU, PolicyLFU, PolicyFIFO, PolicyTTL:
		return Policy(name), nil
	default:
		return "", errors.ConfigError("unsupported eviction policy: " + name)
	}
}

// selectVictim picks the key to evict from a snapshot of the tier's entries.
// The snapshot must be in a deterministic traversal order; ties resolve to
// the first entry encountered. Returns "" when the snapshot is empty.
func selectVictim(policy Policy, entries []*Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var victim *Entry
	for _, e := range entries {
		if victim == nil {
			if policy == PolicyTTL && e.ExpiresAt.IsZero() {
				continue
			}
			victim = e
			continue
		}

		switch policy {
		case PolicyLRU:
			if e.LastAccessed.Before(victim.LastAccessed) {
				victim = e
			}
		case PolicyLFU:
			if e.AccessCount < victim.AccessCount {
				victim = e
			}
		case PolicyFIFO:
			if e.CreatedAt.Before(victim.CreatedAt) {
				victim = e
			}
		case PolicyTTL:
			if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(victim.ExpiresAt) {
				victim = e
			}
		}
	}

	// TTL with no expiring entries has no defined victim; fall back to FIFO.
	if victim == nil {
		return selectVictim(PolicyFIFO, entries)
	}
	return victim.Key
}
