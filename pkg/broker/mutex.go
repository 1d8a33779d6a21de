package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript deletes the lock key only while it still holds the
// caller's token, so an expired lock reacquired by another worker is
// never released by the previous holder.
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Mutex is a cluster-wide lock with a TTL, backed by SET NX EX and a
// compare-and-delete release.
type Mutex struct {
	client *Client
	key    string
	ttl    time.Duration
}

// NewMutex returns a mutex handle on the given key. The TTL bounds how
// long a crashed holder can block other workers.
func NewMutex(client *Client, key string, ttl time.Duration) *Mutex {
	return &Mutex{client: client, key: key, ttl: ttl}
}

// TryLock attempts to acquire the lock. On success it returns the token
// required to release it; ok is false when another holder has the lock.
func (m *Mutex) TryLock(ctx context.Context) (token string, ok bool, err error) {
	candidate := uuid.New().String()
	acquired, err := m.client.rdb.SetNX(ctx, m.key, candidate, m.ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire lock %s: %w", m.key, err)
	}
	if !acquired {
		return "", false, nil
	}
	return candidate, true, nil
}

// Unlock releases the lock if it still carries the given token.
func (m *Mutex) Unlock(ctx context.Context, token string) error {
	if err := unlockScript.Run(ctx, m.client.rdb, []string{m.key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", m.key, err)
	}
	return nil
}

// Holder returns the current token holding the lock, or "" when free.
func (m *Mutex) Holder(ctx context.Context) (string, error) {
	holder, err := m.client.rdb.Get(ctx, m.key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to inspect lock %s: %w", m.key, err)
	}
	return holder, nil
}
