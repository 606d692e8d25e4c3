package cache

import (
	"context"
	"time"
)

// Invoker is a function that produces a value of type T.
// The bool return indicates whether a value was found. Return false to
// signal "not found" without caching a zero value.
type Invoker[T any] func(ctx context.Context) (T, bool, error)

// Exec is a cache-aside helper. It checks the store for key first and
// returns the cached value on a hit. On a miss it calls invoke; if invoke
// reports found, the value is cached under ttl (a non-positive ttl uses
// the store default) and returned. If the Set fails after a successful
// invoke, the value is still returned — failing to cache a value the
// caller already has is a degradation, not a failure.
func Exec[T any](ctx context.Context, s *Store, key string, ttl time.Duration, invoke Invoker[T]) (bool, T, error) {
	found, val, err := Get[T](ctx, s, key)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if found {
		return true, val, nil
	}

	result, ok, err := invoke(ctx)
	if err != nil {
		var zero T
		return false, zero, err
	}
	if !ok {
		var zero T
		return false, zero, nil
	}

	if err := s.SetContext(ctx, key, result, ttl); err != nil {
		s.cfg.log.Warn("failed to cache %q in %s: %v", key, s.namespace, err)
	}
	return true, result, nil
}
