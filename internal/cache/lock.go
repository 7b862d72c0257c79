package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned by TryLock when another holder owns the lock.
var ErrLocked = errors.New("lock is already held")

// RefreshLockKey guards a refresh cycle so the one-shot and the
// long-running refresher never work the same playlists at once.
const RefreshLockKey = KeyPrefix + "lock:refresh"

// release deletes the key only while it still holds the caller's token.
var release = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// TryLock takes key for at most ttl. The returned func releases it; a
// holder whose ttl ran out can no longer release a lock taken after it.
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (unlock func(), err error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// The caller's ctx may already be cancelled at this point.
		_ = release.Run(context.Background(), r.client, []string{key}, token).Err()
	}, nil
}

// IsLocked reports whether key is currently held by anyone.
func IsLocked(ctx context.Context, r *Redis, key string) bool {
	n, err := r.client.Exists(ctx, key).Result()
	return err == nil && n > 0
}
