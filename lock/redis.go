package lock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// acquireScript sets every key to the token only when none of them exists.
var acquireScript = redis.NewScript(`
for _, key in ipairs(KEYS) do
  if redis.call("exists", key) == 1 then
    return 0
  end
end
for _, key in ipairs(KEYS) do
  redis.call("set", key, ARGV[1], "PX", ARGV[2])
end
return 1
`)

// releaseScript deletes the keys still owned by the token and returns how
// many it deleted.
var releaseScript = redis.NewScript(`
local released = 0
for _, key in ipairs(KEYS) do
  if redis.call("get", key) == ARGV[1] then
    redis.call("del", key)
    released = released + 1
  end
end
return released
`)

// RedisLocker is a Locker backed by a single redis deployment. All keys of
// one request must live on the same node (same hash slot on a cluster).
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisLocker wraps client; prefix is prepended to every key.
func NewRedisLocker(client redis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{client: client, prefix: prefix}
}

func (r *RedisLocker) Acquire(ctx context.Context, keys []string, ttl time.Duration, policy RetryPolicy) (Lock, error) {
	keys, err := normalizeKeys(keys)
	if err != nil {
		return nil, err
	}
	if ttl < time.Millisecond {
		return nil, fmt.Errorf("lock: ttl %s too short", ttl)
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = r.prefix + k
	}
	token := uuid.NewString()

	err = retry(ctx, policy, func() (bool, error) {
		start := time.Now()
		n, err := acquireScript.Run(ctx, r.client, redisKeys, token, ttl.Milliseconds()).Int()
		if err != nil {
			return false, fmt.Errorf("lock: acquire %v: %w", keys, err)
		}
		if n != 1 {
			return false, nil
		}
		// the lease may already be gone if the round trip ate the TTL
		if time.Since(start) >= ttl {
			_, _ = releaseScript.Run(ctx, r.client, redisKeys, token).Int()
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return &redisLock{locker: r, keys: keys, redisKeys: redisKeys, token: token}, nil
}

type redisLock struct {
	locker    *RedisLocker
	keys      []string
	redisKeys []string
	token     string
	once      sync.Once
	err       error
}

func (l *redisLock) Keys() []string { return slices.Clone(l.keys) }

func (l *redisLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		n, err := releaseScript.Run(ctx, l.locker.client, l.redisKeys, l.token).Int()
		switch {
		case err != nil:
			l.err = fmt.Errorf("lock: release %v: %w", l.keys, err)
		case n != len(l.redisKeys):
			l.err = ErrNotHeld
		}
	})
	return l.err
}
