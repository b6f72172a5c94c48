package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock key only while it still holds our token,
// so an expired lease reacquired by another process is never released from
// here.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`

// defaultRetryInterval is how often a contended acquire re-attempts SET NX.
const defaultRetryInterval = 250 * time.Millisecond

// RedisClient is the subset of go-redis client methods used by RedisLock.
// Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Close() error
}

// RedisLock implements Provider using Redis SET NX with a TTL lease. Each
// acquisition writes a unique owner token so release cannot delete a lock
// the holder no longer owns.
type RedisLock struct {
	client        RedisClient
	logger        *slog.Logger
	retryInterval time.Duration
}

// NewRedisLock creates a RedisLock connected to the given address.
func NewRedisLock(addr, password string, db int, logger *slog.Logger) *RedisLock {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisLockWithClient(client, logger)
}

// NewRedisLockWithClient creates a RedisLock backed by a pre-built client.
func NewRedisLockWithClient(client RedisClient, logger *slog.Logger) *RedisLock {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLock{
		client:        client,
		logger:        logger.With("component", "lock.redis"),
		retryInterval: defaultRetryInterval,
	}
}

// Close closes the underlying Redis connection.
func (l *RedisLock) Close() error { return l.client.Close() }

// TryUsing acquires the named lock, runs work while holding it and
// releases it afterwards. Acquisition polls SET NX until acquireTimeout
// elapses; false is returned when the lock stayed contended for the whole
// window.
func (l *RedisLock) TryUsing(ctx context.Context, key string, work func(ctx context.Context) error, acquireTimeout, leaseTimeout time.Duration) (bool, error) {
	token := uuid.NewString()

	acquired, err := l.acquire(ctx, key, token, acquireTimeout, leaseTimeout)
	if err != nil || !acquired {
		return false, err
	}

	defer func() {
		// The caller's context may already be done; release regardless.
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			l.logger.Error("lock release failed", "key", key, "error", err)
		}
	}()

	l.logger.Debug("lock acquired", "key", key, "lease", leaseTimeout)
	return true, work(ctx)
}

func (l *RedisLock) acquire(ctx context.Context, key, token string, acquireTimeout, leaseTimeout time.Duration) (bool, error) {
	deadline := time.Now().Add(acquireTimeout)

	for {
		ok, err := l.client.SetNX(ctx, key, token, leaseTimeout).Result()
		if err != nil {
			return false, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			return true, nil
		}

		if time.Now().Add(l.retryInterval).After(deadline) {
			l.logger.Debug("lock contended", "key", key, "waited", acquireTimeout)
			return false, nil
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return false, fmt.Errorf("acquire lock %q: %w", key, ctx.Err())
		}
	}
}

func (l *RedisLock) release(ctx context.Context, key, token string) error {
	if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}
	return nil
}
