package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// PauseGate controls the operator-facing pause switch. Workers consult
// it before polling and idle while it is engaged.
type PauseGate struct {
	client *Client
	key    string
}

// NewPauseGate returns a pause gate on the given key.
func NewPauseGate(client *Client, key string) *PauseGate {
	return &PauseGate{client: client, key: key}
}

// Paused reports whether the pause switch is engaged. Any of "1",
// "true", "yes", "on" (case-insensitive) counts as paused; a missing
// key or any other value does not.
func (p *PauseGate) Paused(ctx context.Context) (bool, error) {
	value, err := p.client.rdb.Get(ctx, p.key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read pause key %s: %w", p.key, err)
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	default:
		return false, nil
	}
}

// Pause engages the pause switch.
func (p *PauseGate) Pause(ctx context.Context) error {
	if err := p.client.rdb.Set(ctx, p.key, "1", 0).Err(); err != nil {
		return fmt.Errorf("failed to set pause key %s: %w", p.key, err)
	}
	return nil
}

// Resume releases the pause switch.
func (p *PauseGate) Resume(ctx context.Context) error {
	if err := p.client.rdb.Del(ctx, p.key).Err(); err != nil {
		return fmt.Errorf("failed to clear pause key %s: %w", p.key, err)
	}
	return nil
}
