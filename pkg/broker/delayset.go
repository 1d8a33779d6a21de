package broker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DelaySet schedules payloads for future redelivery. It is a sorted set
// keyed by ready-at unix time; consumers claim due members by removing
// them, so concurrent workers never replay the same member twice.
type DelaySet struct {
	client *Client
	key    string
}

// NewDelaySet returns a delay-set handle on the given key.
func NewDelaySet(client *Client, key string) *DelaySet {
	return &DelaySet{client: client, key: key}
}

// Key returns the underlying set key.
func (d *DelaySet) Key() string {
	return d.key
}

// Add schedules a payload to become due at readyAt.
func (d *DelaySet) Add(ctx context.Context, payload []byte, readyAt time.Time) error {
	member := redis.Z{Score: float64(readyAt.Unix()), Member: payload}
	if err := d.client.rdb.ZAdd(ctx, d.key, member).Err(); err != nil {
		return fmt.Errorf("failed to schedule payload on %s: %w", d.key, err)
	}
	return nil
}

// Due returns up to limit payloads whose ready-at time has passed.
// Members stay in the set until claimed with Claim.
func (d *DelaySet) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	members, err := d.client.rdb.ZRangeByScore(ctx, d.key, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    strconv.FormatInt(now.Unix(), 10),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list due payloads on %s: %w", d.key, err)
	}
	return members, nil
}

// Claim removes a member from the set. It returns false when another
// worker claimed it first.
func (d *DelaySet) Claim(ctx context.Context, member string) (bool, error) {
	removed, err := d.client.rdb.ZRem(ctx, d.key, member).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim payload on %s: %w", d.key, err)
	}
	return removed > 0, nil
}

// Size returns the number of scheduled payloads.
func (d *DelaySet) Size(ctx context.Context) (int64, error) {
	size, err := d.client.rdb.ZCard(ctx, d.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to size %s: %w", d.key, err)
	}
	return size, nil
}
