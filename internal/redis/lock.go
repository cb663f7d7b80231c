package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("bucket lock not acquired")

// Locker serializes the capacity check-then-write sequence per hour bucket,
// so two requests racing for the last remaining slot of the same bucket
// cannot both pass the remaining-capacity check.
type Locker interface {
	WithBucketLock(ctx context.Context, bucketStart time.Time, fn func(ctx context.Context) error) error
}

type redisBucketLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBucketLocker creates a locker that uses a per bucket Redis key.
func NewRedisBucketLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisBucketLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisBucketLocker) WithBucketLock(ctx context.Context, bucketStart time.Time, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:bucket:%s", bucketStart.UTC().Format(time.RFC3339))
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire bucket lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisBucketLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release bucket lock: %w", err)
	}
	return nil
}
