// Package postgres implements the durable cache store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tiercache/internal/storage"
)

// Config holds PostgreSQL backend settings.
type Config struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string
}

// ConnString builds the pgx connection string.
func (c *Config) ConnString() string {
	return fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode)
}

// Validate checks required connection settings.
func (c *Config) Validate() error {
	if c.Host == "" || c.Database == "" || c.User == "" {
		return fmt.Errorf("postgres host, database and user are required")
	}
	return nil
}

// Store is a PostgreSQL-backed storage.Store with the same schema shape as
// the SQLite backend.
type Store struct {
	pool   *pgxpool.Pool
	config *Config
}

// New creates an unopened PostgreSQL store.
func New(config *Config) (*Store, error) {
	if config == nil {
		return nil, fmt.Errorf("postgres config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid postgres config: %w", err)
	}
	return &Store{config: config}, nil
}

// Open connects the pool and migrates the schema.
func (s *Store) Open(ctx context.Context) error {
	pool, err := pgxpool.New(ctx, s.config.ConnString())
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.pool = pool
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			created_at BIGINT NOT NULL,
			expires_at BIGINT NOT NULL DEFAULT 0,
			last_accessed BIGINT NOT NULL,
			access_count BIGINT NOT NULL DEFAULT 0,
			size BIGINT NOT NULL,
			raw_size BIGINT NOT NULL,
			compressed BOOLEAN NOT NULL DEFAULT false,
			metadata JSONB NOT NULL DEFAULT '{}'
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
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}
	return nil
}

// Get returns the record for key, or (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, key string) (*storage.Record, error) {
	query := `SELECT key, value, created_at, expires_at, last_accessed, access_count, size, raw_size, compressed, metadata
			  FROM cache_entries WHERE key = $1`

	var (
		rec                              storage.Record
		createdAt, expiresAt, lastAccess int64
		metadataJSON                     []byte
	)
	err := s.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.Value, &createdAt,
		&expiresAt, &lastAccess, &rec.AccessCount, &rec.Size, &rec.RawSize, &rec.Compressed, &metadataJSON)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}

	rec.CreatedAt = fromMillis(createdAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	rec.LastAccessed = fromMillis(lastAccess)
	if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
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
	rows, err := s.pool.Query(ctx, `SELECT tag FROM cache_entry_tags WHERE key = $1 ORDER BY tag`, key)
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO cache_entries
			  (key, value, created_at, expires_at, last_accessed, access_count, size, raw_size, compressed, metadata)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			  ON CONFLICT (key) DO UPDATE SET
			  value = EXCLUDED.value, created_at = EXCLUDED.created_at,
			  expires_at = EXCLUDED.expires_at, last_accessed = EXCLUDED.last_accessed,
			  access_count = EXCLUDED.access_count, size = EXCLUDED.size,
			  raw_size = EXCLUDED.raw_size, compressed = EXCLUDED.compressed,
			  metadata = EXCLUDED.metadata`
	if _, err := tx.Exec(ctx, query, rec.Key, rec.Value, toMillis(rec.CreatedAt),
		toMillis(rec.ExpiresAt), toMillis(rec.LastAccessed), rec.AccessCount,
		rec.Size, rec.RawSize, rec.Compressed, metadataJSON); err != nil {
		return fmt.Errorf("failed to put entry: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cache_entry_tags WHERE key = $1`, rec.Key); err != nil {
		return fmt.Errorf("failed to clear entry tags: %w", err)
	}
	for _, tag := range rec.Tags {
		if _, err := tx.Exec(ctx, `INSERT INTO cache_entry_tags (key, tag) VALUES ($1, $2) ON CONFLICT DO NOTHING`, rec.Key, tag); err != nil {
			return fmt.Errorf("failed to put entry tag: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM cache_entry_tags WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete entry tags: %w", err)
	}
	return tx.Commit(ctx)
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE cache_entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	if _, err := tx.Exec(ctx, `TRUNCATE cache_entry_tags`); err != nil {
		return fmt.Errorf("failed to clear entry tags: %w", err)
	}
	return tx.Commit(ctx)
}

// Touch writes back access bookkeeping after a successful read.
func (s *Store) Touch(ctx context.Context, key string, lastAccessed time.Time, accessCount int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE cache_entries SET last_accessed = $1, access_count = $2 WHERE key = $3`,
		toMillis(lastAccessed), accessCount, key)
	if err != nil {
		return fmt.Errorf("failed to touch entry: %w", err)
	}
	return nil
}

// DeleteExpired removes records with a finite expiry at or before cutoff via
// the expires_at index.
func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM cache_entry_tags WHERE key IN
		 (SELECT key FROM cache_entries WHERE expires_at > 0 AND expires_at <= $1)`,
		toMillis(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to delete expired entry tags: %w", err)
	}

	res, err := tx.Exec(ctx,
		`DELETE FROM cache_entries WHERE expires_at > 0 AND expires_at <= $1`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// DeleteByTag removes records carrying tag via the tag index.
func (s *Store) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	res, err := tx.Exec(ctx,
		`DELETE FROM cache_entries WHERE key IN
		 (SELECT key FROM cache_entry_tags WHERE tag = $1)`, tag)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tagged entries: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM cache_entry_tags WHERE key IN
		 (SELECT key FROM cache_entry_tags WHERE tag = $1)`, tag); err != nil {
		return 0, fmt.Errorf("failed to delete entry tags: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

// Stats returns entry count and aggregate stored bytes.
func (s *Store) Stats(ctx context.Context) (*storage.TierStats, error) {
	var stats storage.TierStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size), 0) FROM cache_entries`).Scan(&stats.Entries, &stats.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
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
