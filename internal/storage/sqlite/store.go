// Package sqlite implements the durable cache store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tiercache/internal/storage"
)

// Config holds SQLite backend settings.
type Config struct {
	Path string
}

// Store is a SQLite-backed storage.Store. Entries live in cache_entries with
// secondary indices on expires_at and last_accessed; tags live in a separate
// cache_entry_tags table indexed by tag.
type Store struct {
	db     *sql.DB
	config *Config
}

// New creates an unopened SQLite store.
func New(config *Config) (*Store, error) {
	if config == nil || config.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return &Store{config: config}, nil
}

// Open connects and migrates the schema.
func (s *Store) Open(ctx context.Context) error {
	db, err := sql.Open("sqlite3", s.config.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL DEFAULT 0,
			last_accessed INTEGER NOT NULL,
			access_count INTEGER NOT NULL DEFAULT 0,
			size INTEGER NOT NULL,
			raw_size INTEGER NOT NULL,
			compressed INTEGER NOT NULL DEFAULT 0,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS cache_entry_tags (
			key TEXT NOT NULL,
			tag TEXT NOT NULL,
			PRIMARY KEY (key, tag)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_last_accessed ON cache_entries(last_accessed)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entry_tags_tag ON cache_entry_tags(tag)`,
	}

	for _, query := range queries {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

// Get returns the record for key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (*storage.Record, error) {
	query := `SELECT key, value, created_at, expires_at, last_accessed, access_count, size, raw_size, compressed, metadata
			  FROM cache_entries WHERE key = ?`

	var (
		rec                              storage.Record
		createdAt, expiresAt, lastAccess int64
		metadataJSON                     string
	)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&rec.Key, &rec.Value, &createdAt,
		&expiresAt, &lastAccess, &rec.AccessCount, &rec.Size, &rec.RawSize, &rec.Compressed, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	rec.CreatedAt = fromMillis(createdAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.LastAccessed = fromMillis(lastAccess)
	if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode entry metadata: %w", err)
	}

	tags, err := s.tagsFor(ctx, key)
	if err != nil {
		return nil, err
	}
	rec.Tags = tags
	return &rec, nil
}

func (s *Store) tagsFor(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM cache_entry_tags WHERE key = ? ORDER BY tag`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to get entry tags: %w", err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Put inserts or fully replaces the record for rec.Key.
func (s *Store) Put(ctx context.Context, rec *storage.Record) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode entry metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `INSERT OR REPLACE INTO cache_entries
			  (key, value, created_at, expires_at, last_accessed, access_count, size, raw_size, compressed, metadata)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, rec.Key, rec.Value, toMillis(rec.CreatedAt),
		toMillis(rec.ExpiresAt), toMillis(rec.LastAccessed), rec.AccessCount,
		rec.Size, rec.RawSize, rec.Compressed, string(metadataJSON)); err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entry_tags WHERE key = ?`, rec.Key); err != nil {
		return fmt.Errorf("failed to clear entry tags: %w", err)
	}
	for _, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO cache_entry_tags (key, tag) VALUES (?, ?)`, rec.Key, tag); err != nil {
			return fmt.Errorf("failed to put entry tag: %w", err)
		}
	}

	return tx.Commit()
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.deleteKeys(ctx, []string{key})
}

func (s *Store) deleteKeys(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete entry: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entry_tags WHERE key = ?`, key); err != nil {
			return fmt.Errorf("failed to delete entry tags: %w", err)
		}
	}
	return tx.Commit()
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cache_entry_tags`); err != nil {
		return fmt.Errorf("failed to clear entry tags: %w", err)
	}
	return tx.Commit()
}

// Touch writes back access bookkeeping after a successful read.
func (s *Store) Touch(ctx context.Context, key string, lastAccessed time.Time, accessCount int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET last_accessed = ?, access_count = ? WHERE key = ?`,
		toMillis(lastAccessed), accessCount, key)
	if err != nil {
		return fmt.Errorf("failed to touch entry: %w", err)
	}
	return nil
}

// DeleteExpired removes records with a finite expiry at or before cutoff via
// the expires_at index.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	keys, err := s.keysWhere(ctx,
		`SELECT key FROM cache_entries WHERE expires_at > 0 AND expires_at <= ?`, toMillis(cutoff))
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

// DeleteByTag removes records carrying tag via the tag index.
func (s *Store) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	keys, err := s.keysWhere(ctx, `SELECT key FROM cache_entry_tags WHERE tag = ?`, tag)
	if err != nil {
		return 0, err
	}
	if err := s.deleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}

func (s *Store) keysWhere(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Stats returns entry count and aggregate stored bytes.
func (s *Store) Stats(ctx context.Context) (*storage.TierStats, error) {
	var stats storage.TierStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM cache_entries`).Scan(&stats.Entries, &stats.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
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
