// internal/notify/deadletter.go
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"admissions-workflow/internal/models"

	"github.com/redis/go-redis/v9"
)

// DeadLetters is a Redis list of notifications that could not be delivered,
// newest first.
type DeadLetters struct {
	client redis.Cmdable
	key    string
}

func NewDeadLetters(client redis.Cmdable, key string) *DeadLetters {
	return &DeadLetters{client: client, key: key}
}

func (d *DeadLetters) Push(ctx context.Context, n models.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	return d.client.LPush(ctx, d.key, data).Err()
}

// List returns up to limit dead letters, newest first. limit <= 0 returns all.
func (d *DeadLetters) List(ctx context.Context, limit int64) ([]models.Notification, error) {
	stop := limit - 1
	if limit <= 0 {
		stop = -1
	}
	raw, err := d.client.LRange(ctx, d.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}

	out := make([]models.Notification, 0, len(raw))
	for _, item := range raw {
		var n models.Notification
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (d *DeadLetters) Len(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, d.key).Result()
}
