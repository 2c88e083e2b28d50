package cache

import (
	"context"
	"encoding/json"

	"tiercache/internal/common/errors"
)

// MemoizedFunc is a cached function returning the raw serialized result.
type MemoizedFunc func(ctx context.Context, args ...interface{}) ([]byte, error)

// KeyFunc derives the cache key for a set of arguments.
type KeyFunc func(args ...interface{}) (string, error)

// Memoize wraps fn so repeated calls with equivalent arguments reuse
// GetOrSet. keyFn may be nil, in which case keys are derived from name plus
// a canonical JSON serialization of the argument list.
func (s *Service) Memoize(name string, fn func(ctx context.Context, args ...interface{}) (interface{}, error), keyFn KeyFunc, opts SetOptions) MemoizedFunc {
	if keyFn == nil {
		keyFn = func(args ...interface{}) (string, error) {
			encoded, err := json.Marshal(args)
			if err != nil {
				return "", errors.SerializationError("failed to serialize memoize arguments", err)
			}
			return "memo:" + name + ":" + string(encoded), nil
		}
	}

	return func(ctx context.Context, args ...interface{}) ([]byte, error) {
		key, err := keyFn(args...)
		if err != nil {
			return nil, err
		}
		return s.GetOrSet(ctx, key, func(ctx context.Context) (interface{}, error) {
			return fn(ctx, args...)
		}, opts)
	}
}
