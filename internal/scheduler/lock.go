package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLockKey guards against two scrape runs overlapping across replicas.
const RunLockKey = "scholarsync:run-lock"

// ErrLockNotHeld is returned by Release when the lock expired or belongs to
// another holder.
var ErrLockNotHeld = errors.New("run lock not held")

// Locker grants exclusive permission to run a job.
type Locker interface {
	// TryAcquire returns a token when the lock was taken, or "" when it is
	// held elsewhere.
	TryAcquire(ctx context.Context) (string, error)
	Release(ctx context.Context, token string) error
}

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLock is a single-key SET NX PX lock. The TTL bounds how long a crashed
// holder can block later runs.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLock returns a lock on key that expires after ttl.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// TryAcquire implements Locker.
func (l *RedisLock) TryAcquire(ctx context.Context) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return "", nil
	}
	return token, nil
}

// Release implements Locker. Only the holder's token deletes the key.
func (l *RedisLock) Release(ctx context.Context, token string) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}
