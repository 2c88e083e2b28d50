// Package redis implements the durable cache store on Redis. Records are
// stored as JSON strings; a sorted set keyed by expiry millis serves as the
// expiry index and one set per tag serves as the tag index.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"tiercache/internal/storage"
)

// Config holds Redis backend settings.
type Config struct {
	Address   string
	Password  string
	DB        int
	PoolSize  int
	KeyPrefix string
}

// Store is a Redis-backed storage.Store.
type Store struct {
	rdb    *redis.Client
	config *Config
}

// record is the JSON wire form of a storage.Record.
type record struct {
	Key          string            `json:"key"`
	Value        []byte            `json:"value"`
	CreatedAt    int64             `json:"created_at"`
	ExpiresAt    int64             `json:"expires_at"`
	LastAccessed int64             `json:"last_accessed"`
	AccessCount  int64             `json:"access_count"`
	Size         int64             `json:"size"`
	RawSize      int64             `json:"raw_size"`
	Compressed   bool              `json:"compressed"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// New creates an unopened Redis store.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}
	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "tiercache:"
	}
	return &Store{config: config}, nil
}

// Open connects and pings the server.
func (s *Store) Open(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.config.Address,
		Password: s.config.Password,
		DB:       s.config.DB,
		PoolSize: s.config.PoolSize,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	s.rdb = rdb
	return nil
}

func (s *Store) entryKey(key string) string { return s.config.KeyPrefix + "entry:" + key }
func (s *Store) tagKey(tag string) string   { return s.config.KeyPrefix + "tag:" + tag }
func (s *Store) keysKey() string            { return s.config.KeyPrefix + "keys" }
func (s *Store) tagsKey() string            { return s.config.KeyPrefix + "tags" }
func (s *Store) expiryKey() string          { return s.config.KeyPrefix + "index:expiry" }
func (s *Store) sizeKey() string            { return s.config.KeyPrefix + "size" }

// Get returns the record for key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (*storage.Record, error) {
	val, err := s.rdb.Get(ctx, s.entryKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode entry: %w", err)
	}
	return fromWire(&rec), nil
}

// Put inserts or fully replaces the record for rec.Key, keeping the expiry
// and tag indices and the aggregate size counter in step.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	old, err := s.Get(ctx, rec.Key)
	if err != nil {
		return err
	}

	data, err := json.Marshal(toWire(rec))
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.entryKey(rec.Key), data, 0)
	pipe.SAdd(ctx, s.keysKey(), rec.Key)

	sizeDelta := rec.Size
	if old != nil {
		sizeDelta -= old.Size
		for _, tag := range old.Tags {
			pipe.SRem(ctx, s.tagKey(tag), rec.Key)
		}
	}
	pipe.IncrBy(ctx, s.sizeKey(), sizeDelta)

	if rec.ExpiresAt.IsZero() {
		pipe.ZRem(ctx, s.expiryKey(), rec.Key)
	} else {
		pipe.ZAdd(ctx, s.expiryKey(), &redis.Z{Score: float64(rec.ExpiresAt.UnixMilli()), Member: rec.Key})
	}

	for _, tag := range rec.Tags {
		pipe.SAdd(ctx, s.tagKey(tag), rec.Key)
		pipe.SAdd(ctx, s.tagsKey(), tag)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}
	return nil
}

// Delete removes key and its index entries. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	old, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if old == nil {
		return nil
	}

	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, s.entryKey(key))
	pipe.SRem(ctx, s.keysKey(), key)
	pipe.ZRem(ctx, s.expiryKey(), key)
	pipe.DecrBy(ctx, s.sizeKey(), old.Size)
	for _, tag := range old.Tags {
		pipe.SRem(ctx, s.tagKey(tag), key)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Clear removes every record and all index structures.
func (s *Store) Clear(ctx context.Context) error {
	keys, err := s.rdb.SMembers(ctx, s.keysKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list keys: %w", err)
	}
	tags, err := s.rdb.SMembers(ctx, s.tagsKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to list tags: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, s.entryKey(key))
	}
	for _, tag := range tags {
		pipe.Del(ctx, s.tagKey(tag))
	}
	pipe.Del(ctx, s.keysKey(), s.tagsKey(), s.expiryKey(), s.sizeKey())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	return nil
}

// Touch writes back access bookkeeping after a successful read.
func (s *Store) Touch(ctx context.Context, key string, lastAccessed time.Time, accessCount int64) error {
	val, err := s.rdb.Get(ctx, s.entryKey(key)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to touch entry: %w", err)
	}

	var rec record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return fmt.Errorf("failed to decode entry: %w", err)
	}
	rec.LastAccessed = lastAccessed.UnixMilli()
	rec.AccessCount = accessCount

	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}
	if err := s.rdb.Set(ctx, s.entryKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to touch entry: %w", err)
	}
	return nil
}

// DeleteExpired removes records with a finite expiry at or before cutoff via
// the expiry sorted set.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	keys, err := s.rdb.ZRangeByScore(ctx, s.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to query expiry index: %w", err)
	}

	var removed int64
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// DeleteByTag removes records carrying tag via the tag set.
func (s *Store) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	keys, err := s.rdb.SMembers(ctx, s.tagKey(tag)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to query tag index: %w", err)
	}

	var removed int64
	for _, key := range keys {
		if err := s.Delete(ctx, key); err != nil {
			return removed, err
		}
		removed++
	}

	if err := s.rdb.Del(ctx, s.tagKey(tag)).Err(); err != nil {
		return removed, fmt.Errorf("failed to drop tag index: %w", err)
	}
	if err := s.rdb.SRem(ctx, s.tagsKey(), tag).Err(); err != nil {
		return removed, fmt.Errorf("failed to unregister tag: %w", err)
	}
	return removed, nil
}

// Stats returns entry count and aggregate stored bytes.
func (s *Store) Stats(ctx context.Context) (*storage.TierStats, error) {
	entries, err := s.rdb.SCard(ctx, s.keysKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	size, err := s.rdb.Get(ctx, s.sizeKey()).Int64()
	if err == redis.Nil {
		size = 0
	} else if err != nil {
		return nil, fmt.Errorf("failed to read size counter: %w", err)
	}

	return &storage.TierStats{Entries: entries, Size: size}, nil
}

// Close closes the client.
func (s *Store) Close() error {
	if s.rdb != nil {
		return s.rdb.Close()
	}
	return nil
}

func toWire(r *storage.Record) *record {
	return &record{
		Key:          r.Key,
		Value:        r.Value,
		CreatedAt:    toMillis(r.CreatedAt),
		ExpiresAt:    toMillis(r.ExpiresAt),
		LastAccessed: toMillis(r.LastAccessed),
		AccessCount:  r.AccessCount,
		Size:         r.Size,
		RawSize:      r.RawSize,
		Compressed:   r.Compressed,
		Tags:         r.Tags,
		Metadata:     r.Metadata,
	}
}

func fromWire(r *record) *storage.Record {
	return &storage.Record{
		Key:          r.Key,
		Value:        r.Value,
		CreatedAt:    fromMillis(r.CreatedAt),
		ExpiresAt:    fromMillis(r.ExpiresAt),
		LastAccessed: fromMillis(r.LastAccessed),
		AccessCount:  r.AccessCount,
		Size:         r.Size,
		RawSize:      r.RawSize,
		Compressed:   r.Compressed,
		Tags:         r.Tags,
		Metadata:     r.Metadata,
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
