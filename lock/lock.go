// Package lock provides the scoped mutual-exclusion primitive the
// migration manager uses to serialise work across processes, with Redis
// and in-memory implementations.
package lock

import (
	"context"
	"time"
)

// Provider serialises work across processes under a named lock.
type Provider interface {
	// TryUsing acquires the lock for key, waiting up to acquireTimeout,
	// runs work while holding it, and releases it afterwards. The lease
	// expires after leaseTimeout if the holder dies without releasing.
	//
	// It reports whether the lock was acquired. When it was, the error is
	// whatever work returned; when it was not, work never ran.
	TryUsing(ctx context.Context, key string, work func(ctx context.Context) error, acquireTimeout, leaseTimeout time.Duration) (bool, error)
}
