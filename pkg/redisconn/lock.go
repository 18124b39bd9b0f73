package redisconn

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/DeBrosOfficial/redismux/pkg/errors"
)

// DefaultLockTTL is used when Lock is called with a non-positive ttl.
const DefaultLockTTL = 30 * time.Second

// release deletes the key only if it still holds our token.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock is a held lock on one key.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// Lock takes a lock on key that expires after ttl unless released.
func (s *Store) Lock(ctx context.Context, key string, ttl time.Duration) (*Lock, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKey(key), token, ttl).Result()
	if err != nil {
		return nil, errors.NewConnectionError("lock", err)
	}
	if !ok {
		return nil, errors.ErrLockNotAcquired
	}
	return &Lock{client: s.client, key: lockKey(key), token: token}, nil
}

// Unlock releases the lock if it is still held by this owner.
func (l *Lock) Unlock(ctx context.Context) error {
	n, err := release.Run(ctx, l.client, []string{l.key}, l.token).Int64()
	if err != nil {
		return errors.NewConnectionError("unlock", err)
	}
	if n == 0 {
		return errors.ErrLockNotHeld
	}
	return nil
}

func lockKey(key string) string {
	return "lock:" + key
}
