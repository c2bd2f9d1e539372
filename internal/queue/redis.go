package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DeadLetterKey is the list holding window dates whose fetch or load failed.
// Windows are never replayed automatically; an operator re-runs the exact day
// from this list.
const DeadLetterKey = "zendesk-etl:windows:failed"

// DeadLetter records failed windows for manual replay.
type DeadLetter struct {
	client *redis.Client
}

// NewDeadLetter connects to Redis and verifies the connection.
func NewDeadLetter(ctx context.Context, redisURL string) (*DeadLetter, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{Addr: redisURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &DeadLetter{client: client}, nil
}

// PushWindow appends one failed window date (YYYY-MM-DD) with its failure
// reason.
func (d *DeadLetter) PushWindow(ctx context.Context, entity, date, reason string) error {
	entry := deadLetterEntry(entity, date, time.Now().UTC(), reason)
	return d.client.LPush(ctx, DeadLetterKey, entry).Err()
}

// deadLetterEntry renders one list entry: entity|date|recorded-at|reason.
func deadLetterEntry(entity, date string, at time.Time, reason string) string {
	return fmt.Sprintf("%s|%s|%s|%s", entity, date, at.Format(time.RFC3339), reason)
}

// PendingWindows returns every recorded failure, newest first.
func (d *DeadLetter) PendingWindows(ctx context.Context) ([]string, error) {
	return d.client.LRange(ctx, DeadLetterKey, 0, -1).Result()
}

// Close releases the Redis connection.
func (d *DeadLetter) Close() error {
	return d.client.Close()
}
