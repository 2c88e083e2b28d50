// Package cache implements a two-tier caching engine: a byte-bounded
// in-process tier (L1) backed by a durable key-value tier (L2), unified
// behind one service API with TTL expiration, pluggable eviction, optional
// compression, tag invalidation and hit/miss statistics.
//
// The persistent tier fails open: backend errors degrade reads to misses and
// writes to no-ops, so callers never see an L2 failure surface from the
// public API.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/singleflight"

	"tiercache/internal/common/errors"
	"tiercache/internal/common/logging"
	"tiercache/internal/storage"
)

// Layer selects which tiers an operation touches.
type Layer string

const (
	// LayerAll touches L1 and, when enabled, L2.
	LayerAll Layer = "all"
	// LayerMemory touches only the in-process tier.
	LayerMemory Layer = "memory"
	// LayerPersistent touches only the durable tier.
	LayerPersistent Layer = "persistent"
)

func (l Layer) memory() bool     { return l == LayerAll || l == LayerMemory }
func (l Layer) persistent() bool { return l == LayerAll || l == LayerPersistent }

// Config holds cache engine settings.
type Config struct {
	MaxMemorySize        int64
	DefaultTTL           time.Duration // 0 = entries never expire by default
	EvictionPolicy       Policy
	CompressionType      string
	CompressionThreshold int
	CleanupInterval      time.Duration
	// DedupeLoads collapses concurrent GetOrSet misses on the same key into
	// a single factory invocation. Off by default: concurrent callers may
	// each invoke the factory, last write wins.
	DedupeLoads bool
	// BackendTimeout bounds each persistent tier call. Defaults to 5s.
	BackendTimeout time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxMemorySize:        50 * 1024 * 1024,
		DefaultTTL:           30 * time.Minute,
		EvictionPolicy:       PolicyLRU,
		CompressionType:      CompressionNone,
		CompressionThreshold: 1024,
		CleanupInterval:      5 * time.Minute,
	}
}

// SetOptions controls a single write.
type SetOptions struct {
	// TTL of the entry: 0 uses the configured default, negative means the
	// entry never expires.
	TTL      time.Duration
	Tags     []string
	Compress bool
	Layer    Layer
	Metadata map[string]string
}

// WarmEntry is one element of a Warm batch.
type WarmEntry struct {
	Key     string
	Value   interface{}
	Options SetOptions
}

// Factory computes a value on a cache miss.
type Factory func(ctx context.Context) (interface{}, error)

// Service is the cache engine orchestrator. Construct with NewService, call
// Start to open the persistent tier and begin the cleanup sweep, and Close
// on shutdown. Multiple isolated services can coexist in one process.
type Service struct {
	config     Config
	codec      Codec
	memory     *MemoryTier
	persistent *PersistentTier // nil when the durable tier is disabled
	stats      counters
	sweeper    *sweeper
	locks      *KeyLocker
	group      singleflight.Group
	logger     logging.Logger

	// now is the clock; tests substitute it to simulate time.
	now func() time.Time
}

// NewService creates a cache engine. store may be nil, in which case the
// service runs on the memory tier alone.
func NewService(config Config, store storage.Store) (*Service, error) {
	if config.MaxMemorySize <= 0 {
		return nil, errors.ValidationError("max memory size must be positive")
	}
	policy, err := ParsePolicy(string(config.EvictionPolicy))
	if err != nil {
		return nil, err
	}
	codec, err := NewCodec(config.CompressionType)
	if err != nil {
		return nil, err
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}

	s := &Service{
		config: config,
		codec:  codec,
		memory: NewMemoryTier(config.MaxMemorySize, policy),
		locks:  NewKeyLocker(),
		logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "cache"}),
		now:    time.Now,
	}
	if store != nil {
		s.persistent = NewPersistentTier(store, config.BackendTimeout)
	}

	sw, err := newSweeper(config.CleanupInterval, s.sweep)
	if err != nil {
		return nil, err
	}
	s.sweeper = sw
	return s, nil
}

// Start opens the persistent tier and begins the periodic sweep. An open
// failure disables the persistent tier rather than failing startup; the
// service then runs on L1 alone.
func (s *Service) Start(ctx context.Context) error {
	if s.persistent != nil {
		if err := s.persistent.Open(ctx); err != nil {
			s.logger.Warn("persistent tier unavailable, running memory-only", logging.Err(err))
			s.persistent = nil
		}
	}
	s.sweeper.Start()
	return nil
}

// Close stops the sweep and closes the persistent tier.
func (s *Service) Close() error {
	s.sweeper.Stop()
	if s.persistent != nil {
		if err := s.persistent.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the stored payload for key, checking L1 first and falling
// through to L2. A valid L2 hit is promoted into L1 when layer is LayerAll.
// The boolean reports whether a valid (non-expired) entry was found.
func (s *Service) Get(ctx context.Context, key string, layer Layer) ([]byte, bool) {
	if layer == "" {
		layer = LayerAll
	}
	now := s.now()

	if layer.memory() {
		if e, ok := s.memory.Get(key, now); ok {
			s.stats.Hit()
			return s.decode(e.Value, e.Compressed), true
		}
	}

	if layer.persistent() && s.persistent != nil {
		rec, err := s.persistent.Get(ctx, key)
		if err != nil {
			s.logger.Warn("persistent get failed, treating as miss",
				logging.Field{Key: "key", Value: key}, logging.Err(err))
		} else if rec != nil {
			if rec.Expired(now) {
				if err := s.persistent.Delete(ctx, key); err != nil {
					s.logger.Debug("lazy expiry delete failed", logging.Field{Key: "key", Value: key}, logging.Err(err))
				}
				s.stats.Expirations(1)
			} else {
				rec.AccessCount++
				rec.LastAccessed = now
				if err := s.persistent.Touch(ctx, key, now, rec.AccessCount); err != nil {
					s.logger.Debug("access write-back failed", logging.Field{Key: "key", Value: key}, logging.Err(err))
				}
				if layer == LayerAll {
					s.stats.Evictions(s.memory.Set(entryFromRecord(rec)))
				}
				s.stats.Hit()
				return s.decode(rec.Value, rec.Compressed), true
			}
		}
	}

	s.stats.Miss()
	return nil, false
}

// Set serializes value and writes it into the requested tiers. The returned
// error is non-nil only for serialization or validation failures; persistent
// tier errors degrade to a no-op write.
func (s *Service) Set(ctx context.Context, key string, value interface{}, opts SetOptions) error {
	_, err := s.set(ctx, key, value, opts)
	return err
}

// set performs the write and returns the raw (uncompressed) payload.
func (s *Service) set(ctx context.Context, key string, value interface{}, opts SetOptions) ([]byte, error) {
	if key == "" {
		return nil, errors.ValidationError("cache key must not be empty")
	}
	layer := opts.Layer
	if layer == "" {
		layer = LayerAll
	}

	raw, e, err := s.buildEntry(key, value, opts)
	if err != nil {
		return nil, err
	}

	if layer.memory() {
		s.stats.Evictions(s.memory.Set(e))
	}

	if layer.persistent() && s.persistent != nil {
		if err := s.persistent.Put(ctx, recordFromEntry(e)); err != nil {
			s.logger.Warn("persistent put failed, entry not durable",
				logging.Field{Key: "key", Value: key}, logging.Err(err))
		}
	}

	return raw, nil
}

// buildEntry serializes and optionally compresses value into an Entry.
func (s *Service) buildEntry(key string, value interface{}, opts SetOptions) ([]byte, *Entry, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, nil, errors.SerializationError("failed to serialize value", err)
	}

	now := s.now()
	payload := raw
	compressed := false

	_, noop := s.codec.(noopCodec)
	if !noop && (opts.Compress || len(raw) >= s.config.CompressionThreshold) {
		encoded, err := s.codec.Encode(raw)
		if err != nil {
			s.logger.Warn("compression failed, storing raw payload",
				logging.Field{Key: "key", Value: key}, logging.Err(err))
		} else {
			payload = encoded
			compressed = true
		}
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = s.config.DefaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	e := &Entry{
		Key:          key,
		Value:        payload,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
		LastAccessed: now,
		Size:         int64(len(payload)),
		RawSize:      int64(len(raw)),
		Compressed:   compressed,
		Tags:         opts.Tags,
		Metadata:     opts.Metadata,
	}
	return raw, e, nil
}

// Has reports whether key holds a valid entry, without updating access
// bookkeeping. Expired entries are removed lazily.
func (s *Service) Has(ctx context.Context, key string, layer Layer) bool {
	if layer == "" {
		layer = LayerAll
	}
	now := s.now()

	if layer.memory() && s.memory.Peek(key, now) {
		return true
	}

	if layer.persistent() && s.persistent != nil {
		rec, err := s.persistent.Get(ctx, key)
		if err != nil {
			s.logger.Warn("persistent has failed, treating as absent",
				logging.Field{Key: "key", Value: key}, logging.Err(err))
			return false
		}
		if rec == nil {
			return false
		}
		if rec.Expired(now) {
			if err := s.persistent.Delete(ctx, key); err != nil {
				s.logger.Debug("lazy expiry delete failed", logging.Field{Key: "key", Value: key}, logging.Err(err))
			}
			s.stats.Expirations(1)
			return false
		}
		return true
	}

	return false
}

// Delete removes key from the requested tiers. Deleting an absent key is a
// no-op.
func (s *Service) Delete(ctx context.Context, key string, layer Layer) error {
	if layer == "" {
		layer = LayerAll
	}

	if layer.memory() {
		s.memory.Delete(key)
	}
	if layer.persistent() && s.persistent != nil {
		if err := s.persistent.Delete(ctx, key); err != nil {
			s.logger.Warn("persistent delete failed",
				logging.Field{Key: "key", Value: key}, logging.Err(err))
		}
	}
	return nil
}

// Clear removes every entry from the requested tiers.
func (s *Service) Clear(ctx context.Context, layer Layer) error {
	if layer == "" {
		layer = LayerAll
	}

	if layer.memory() {
		s.memory.Clear()
	}
	if layer.persistent() && s.persistent != nil {
		if err := s.persistent.Clear(ctx); err != nil {
			s.logger.Warn("persistent clear failed", logging.Err(err))
		}
	}
	return nil
}

// InvalidateByTag removes every entry in both tiers carrying tag and returns
// how many were removed. L1 uses a full scan; L2 uses its tag index.
func (s *Service) InvalidateByTag(ctx context.Context, tag string) (int64, error) {
	var removed int64
	for _, key := range s.memory.KeysWithTag(tag) {
		if s.memory.Delete(key) {
			removed++
		}
	}

	if s.persistent != nil {
		n, err := s.persistent.DeleteByTag(ctx, tag)
		removed += n
		if err != nil {
			s.logger.Warn("persistent tag invalidation failed",
				logging.Field{Key: "tag", Value: tag}, logging.Err(err))
		}
	}
	return removed, nil
}

// Warm sequentially applies Set for a batch of entries, prefilling the cache.
func (s *Service) Warm(ctx context.Context, entries []WarmEntry) error {
	for _, we := range entries {
		if err := s.Set(ctx, we.Key, we.Value, we.Options); err != nil {
			return err
		}
	}
	return nil
}

// Preload copies the given keys from L2 into L1 without altering L2. Keys
// already valid in L1 or absent from L2 are skipped.
func (s *Service) Preload(ctx context.Context, keys []string) error {
	if s.persistent == nil {
		return nil
	}
	now := s.now()

	for _, key := range keys {
		if s.memory.Peek(key, now) {
			continue
		}
		rec, err := s.persistent.Get(ctx, key)
		if err != nil {
			s.logger.Warn("preload read failed",
				logging.Field{Key: "key", Value: key}, logging.Err(err))
			continue
		}
		if rec == nil || rec.Expired(now) {
			continue
		}
		s.stats.Evictions(s.memory.Set(entryFromRecord(rec)))
	}
	return nil
}

// GetOrSet returns the cached payload for key, or invokes factory on a miss,
// stores the result and returns it. Without DedupeLoads, concurrent callers
// observing a miss may each invoke factory; the last write wins.
func (s *Service) GetOrSet(ctx context.Context, key string, factory Factory, opts SetOptions) ([]byte, error) {
	layer := opts.Layer
	if layer == "" {
		layer = LayerAll
	}

	if payload, ok := s.Get(ctx, key, layer); ok {
		return payload, nil
	}

	if s.config.DedupeLoads {
		result, err, _ := s.group.Do(key, func() (interface{}, error) {
			// Re-check: another caller may have stored while we queued.
			if payload, ok := s.Get(ctx, key, layer); ok {
				return payload, nil
			}
			return s.loadAndStore(ctx, key, factory, opts)
		})
		if err != nil {
			return nil, err
		}
		return result.([]byte), nil
	}

	return s.loadAndStore(ctx, key, factory, opts)
}

func (s *Service) loadAndStore(ctx context.Context, key string, factory Factory, opts SetOptions) ([]byte, error) {
	value, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	return s.set(ctx, key, value, opts)
}

// WithKeyLock runs fn while holding the per-key lock, giving check-then-act
// sequences on a single key atomicity that the tiers alone do not provide.
func (s *Service) WithKeyLock(key string, fn func() error) error {
	release := s.locks.Acquire(key)
	defer release()
	return fn()
}

// Stats returns a snapshot of activity counters and tier occupancy.
func (s *Service) Stats(ctx context.Context) Stats {
	hits, misses, evictions, expirations, hitRate := s.stats.snapshot()
	entries, size, rawSize := s.memory.Occupancy()

	ratio := 1.0
	if size > 0 {
		ratio = float64(rawSize) / float64(size)
	}

	stats := Stats{
		Hits:             hits,
		Misses:           misses,
		Evictions:        evictions,
		Expirations:      expirations,
		HitRate:          hitRate,
		CompressionRatio: ratio,
		Memory: TierStats{
			Enabled:  true,
			Entries:  entries,
			Size:     size,
			Capacity: s.memory.Capacity(),
		},
	}

	if s.persistent != nil {
		stats.Persistent.Enabled = true
		if ts, err := s.persistent.Stats(ctx); err != nil {
			s.logger.Warn("persistent stats failed", logging.Err(err))
		} else {
			stats.Persistent.Entries = ts.Entries
			stats.Persistent.Size = ts.Size
		}
	}
	return stats
}

// ResetStats zeroes the activity counters without clearing stored entries.
func (s *Service) ResetStats() {
	s.stats.Reset()
}

// sweep removes expired entries from both tiers. Runs on the cron goroutine.
func (s *Service) sweep() {
	now := s.now()

	removed := s.memory.RemoveExpired(now)
	s.stats.Expirations(removed)

	if s.persistent != nil {
		n, err := s.persistent.DeleteExpired(context.Background(), now)
		if err != nil {
			s.logger.Warn("persistent sweep failed", logging.Err(err))
		} else {
			s.stats.Expirations(int(n))
		}
		removed += int(n)
	}

	if removed > 0 {
		s.logger.Debug("cleanup sweep removed expired entries",
			logging.Field{Key: "removed", Value: removed})
	}
}

// decode reverses the codec when the payload was stored compressed. A decode
// failure returns the stored bytes unchanged rather than surfacing an error.
func (s *Service) decode(payload []byte, compressed bool) []byte {
	if !compressed {
		return payload
	}
	decoded, err := s.codec.Decode(payload)
	if err != nil {
		s.logger.Warn("decompression failed, returning stored bytes", logging.Err(err))
		return payload
	}
	return decoded
}

func entryFromRecord(rec *storage.Record) *Entry {
	return &Entry{
		Key:          rec.Key,
		Value:        rec.Value,
		CreatedAt:    rec.CreatedAt,
		ExpiresAt:    rec.ExpiresAt,
		LastAccessed: rec.LastAccessed,
		AccessCount:  rec.AccessCount,
		Size:         rec.Size,
		RawSize:      rec.RawSize,
		Compressed:   rec.Compressed,
		Tags:         rec.Tags,
		Metadata:     rec.Metadata,
	}
}

func recordFromEntry(e *Entry) *storage.Record {
	return &storage.Record{
		Key:          e.Key,
		Value:        e.Value,
		CreatedAt:    e.CreatedAt,
		ExpiresAt:    e.ExpiresAt,
		LastAccessed: e.LastAccessed,
		AccessCount:  e.AccessCount,
		Size:         e.Size,
		RawSize:      e.RawSize,
		Compressed:   e.Compressed,
		Tags:         e.Tags,
		Metadata:     e.Metadata,
	}
}
