package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL   = 30 * time.Second
	lockRetryBackoff = 50 * time.Millisecond
	lockKeyPrefix    = "task-planner:lock:"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a lock shared by every instance pointing at the same Redis.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLocker connects to url and pings the server.
func NewRedisLocker(ctx context.Context, url string, ttl time.Duration) (*RedisLocker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{rdb: rdb, ttl: ttl}, nil
}

// Lock spins with a short backoff until SET NX succeeds or ctx ends.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := lockKeyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %q: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryBackoff):
		}
	}

	return func() {
		// Release even if the caller's context was cancelled meanwhile.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// If this fails the TTL frees the key.
		_ = releaseScript.Run(releaseCtx, l.rdb, []string{redisKey}, token).Err()
	}, nil
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}
