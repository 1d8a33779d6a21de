package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Charliesj0129/pixAV/internal/logger"
)

// Queue is a named FIFO backed by a Redis list (RPUSH / BLPOP / LLEN).
//
// A popped payload is owned by the popping worker; there is no broker-side
// acknowledgement. Durability is recovered through the task row in the
// store, which the orchestrator sweeps for orphans.
type Queue struct {
	client *Client
	name   string
}

// NewQueue returns a queue handle for the given name.
func NewQueue(client *Client, name string) *Queue {
	return &Queue{client: client, name: name}
}

// Name returns the queue name.
func (q *Queue) Name() string {
	return q.name
}

// Push appends a JSON-encoded payload and returns the new queue depth.
func (q *Queue) Push(ctx context.Context, payload any) (int64, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode payload for %s: %w", q.name, err)
	}
	return q.PushRaw(ctx, raw)
}

// PushRaw appends an already-encoded payload. Workers use this to return
// a popped payload to the queue byte-for-byte.
func (q *Queue) PushRaw(ctx context.Context, raw []byte) (int64, error) {
	depth, err := q.client.rdb.RPush(ctx, q.name, raw).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to push to %s: %w", q.name, err)
	}
	logger.Debug("pushed payload", "queue", q.name, "depth", depth)
	return depth, nil
}

// Pop blocks up to timeout for the next payload. It returns (nil, nil)
// when the timeout elapses with nothing to consume.
func (q *Queue) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	result, err := q.client.rdb.BLPop(ctx, timeout, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from %s: %w", q.name, err)
	}
	if len(result) < 2 {
		return nil, nil
	}
	return []byte(result[1]), nil
}

// Length returns the current queue depth.
func (q *Queue) Length(ctx context.Context) (int64, error) {
	depth, err := q.client.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read depth of %s: %w", q.name, err)
	}
	return depth, nil
}

// Items returns up to limit payloads from the head of the queue without
// consuming them.
func (q *Queue) Items(ctx context.Context, limit int64) ([][]byte, error) {
	raws, err := q.client.rdb.LRange(ctx, q.name, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", q.name, err)
	}
	items := make([][]byte, len(raws))
	for i, raw := range raws {
		items[i] = []byte(raw)
	}
	return items, nil
}

// Clear removes all payloads from the queue.
func (q *Queue) Clear(ctx context.Context) error {
	if err := q.client.rdb.Del(ctx, q.name).Err(); err != nil {
		return fmt.Errorf("failed to clear %s: %w", q.name, err)
	}
	return nil
}
