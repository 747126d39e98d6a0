package redisx

import (
	"context"
	"errors"
	"time"

	"bookstore-be/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockHeld = errors.New("lock is held by another worker")

// Locker hands out short-lived exclusive locks keyed by string.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type lockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// delete only if we still own it
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type redisLocker struct {
	rdb   lockClient
	ttl   time.Duration
	retry time.Duration
	wait  time.Duration
}

// NewLocker returns a SETNX-based lock. Acquire polls for up to wait before
// giving up with ErrLockHeld.
func NewLocker(rdb lockClient, ttl, wait time.Duration) Locker {
	return &redisLocker{rdb: rdb, ttl: ttl, retry: 50 * time.Millisecond, wait: wait}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockHeld
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	release := func() {
		// detached so a cancelled request still frees the key
		ctx := context.WithoutCancel(ctx)
		if err := l.rdb.Eval(ctx, unlockScript, []string{key}, token).Err(); err != nil {
			logger.FromCtx(ctx).Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, nil
}

type noopLocker struct{}

// NoopLocker is used when no redis is configured; row locks in the database
// still serialise the work.
func NoopLocker() Locker {
	return noopLocker{}
}

func (noopLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}
