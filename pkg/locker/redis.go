package locker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "smartassist:lock:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds a key with SET NX PX and releases it only if the stored
// token is still ours.
type RedisLocker struct {
	rdb  redis.Cmdable
	ttl  time.Duration
	wait time.Duration
}

func NewRedisLocker(rdb redis.Cmdable, ttl, wait time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl, wait: wait}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (ReleaseFunc, error) {
	redisKey := redisKeyPrefix + key
	token := uuid.NewString()

	err := poll(ctx, l.wait, func(ctx context.Context) (bool, error) {
		acquired, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		return acquired, nil
	})
	if err != nil {
		return nil, err
	}

	var once sync.Once
	return func(ctx context.Context) error {
		var err error
		once.Do(func() {
			if runErr := releaseScript.Run(ctx, l.rdb, []string{redisKey}, token).Err(); runErr != nil {
				err = fmt.Errorf("failed to release lock %s: %w", key, runErr)
			}
		})
		return err
	}, nil
}
