package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"tiercache/internal/common/errors"
	"tiercache/internal/common/logging"
	"tiercache/internal/storage"
)

// PersistentTier wraps the durable store with a per-call timeout and a
// circuit breaker so a stalled backend cannot wedge foreground operations.
// Callers treat every error from this tier as a miss or a no-op write.
type PersistentTier struct {
	store   storage.Store
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

// NewPersistentTier creates a guarded persistent tier around store.
func NewPersistentTier(store storage.Store, timeout time.Duration) *PersistentTier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	settings := gobreaker.Settings{
		Name:    "persistent-tier",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn("persistent tier breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
	}

	return &PersistentTier{
		store:   store,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: timeout,
	}
}

// Open prepares the backing store.
func (p *PersistentTier) Open(ctx context.Context) error {
	if err := p.store.Open(ctx); err != nil {
		return errors.BackendError("open persistent store", err)
	}
	return nil
}

func (p *PersistentTier) execute(ctx context.Context, op string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		opCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return fn(opCtx)
	})
	if err != nil {
		return nil, errors.BackendError(op, err)
	}
	return result, nil
}

// Get returns the record for key, or (nil, nil) when absent.
func (p *PersistentTier) Get(ctx context.Context, key string) (*storage.Record, error) {
	result, err := p.execute(ctx, "get entry", func(ctx context.Context) (interface{}, error) {
		return p.store.Get(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	rec, _ := result.(*storage.Record)
	return rec, nil
}

// Put writes rec.
func (p *PersistentTier) Put(ctx context.Context, rec *storage.Record) error {
	_, err := p.execute(ctx, "put entry", func(ctx context.Context) (interface{}, error) {
		return nil, p.store.Put(ctx, rec)
	})
	return err
}

// Delete removes key.
func (p *PersistentTier) Delete(ctx context.Context, key string) error {
	_, err := p.execute(ctx, "delete entry", func(ctx context.Context) (interface{}, error) {
		return nil, p.store.Delete(ctx, key)
	})
	return err
}

// Clear removes every record.
func (p *PersistentTier) Clear(ctx context.Context) error {
	_, err := p.execute(ctx, "clear entries", func(ctx context.Context) (interface{}, error) {
		return nil, p.store.Clear(ctx)
	})
	return err
}

// Touch writes back access bookkeeping.
func (p *PersistentTier) Touch(ctx context.Context, key string, lastAccessed time.Time, accessCount int64) error {
	_, err := p.execute(ctx, "touch entry", func(ctx context.Context) (interface{}, error) {
		return nil, p.store.Touch(ctx, key, lastAccessed, accessCount)
	})
	return err
}

// DeleteExpired removes records expired at or before cutoff.
func (p *PersistentTier) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := p.execute(ctx, "delete expired entries", func(ctx context.Context) (interface{}, error) {
		n, err := p.store.DeleteExpired(ctx, cutoff)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	n, _ := result.(int64)
	return n, nil
}

// DeleteByTag removes records carrying tag.
func (p *PersistentTier) DeleteByTag(ctx context.Context, tag string) (int64, error) {
	result, err := p.execute(ctx, "delete entries by tag", func(ctx context.Context) (interface{}, error) {
		n, err := p.store.DeleteByTag(ctx, tag)
		return n, err
	})
	if err != nil {
		return 0, err
	}
	n, _ := result.(int64)
	return n, nil
}

// Stats returns the store's occupancy.
func (p *PersistentTier) Stats(ctx context.Context) (*storage.TierStats, error) {
	result, err := p.execute(ctx, "get stats", func(ctx context.Context) (interface{}, error) {
		return p.store.Stats(ctx)
	})
	if err != nil {
		return nil, err
	}
	stats, _ := result.(*storage.TierStats)
	return stats, nil
}

// Close closes the backing store.
func (p *PersistentTier) Close() error {
	return p.store.Close()
}
