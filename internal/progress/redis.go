package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bloodcell-ai-server/internal/domain"
)

const keyPrefix = "bloodcell:progress:"

// RedisTracker keeps progress in Redis so any server instance can answer
// polls for an analysis started elsewhere. Entries expire after the
// configured TTL.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker connects to Redis at the given URL and verifies the
// connection with a ping.
func NewRedisTracker(ctx context.Context, redisURL string, ttl time.Duration) (*RedisTracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisTracker{client: client, ttl: ttl}, nil
}

// Set records the current progress for an analysis.
func (t *RedisTracker) Set(ctx context.Context, analysisID string, p domain.Progress) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := t.client.Set(ctx, keyPrefix+analysisID, payload, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// Get returns the recorded progress and whether the analysis is known.
func (t *RedisTracker) Get(ctx context.Context, analysisID string) (domain.Progress, bool, error) {
	payload, err := t.client.Get(ctx, keyPrefix+analysisID).Bytes()
	if err == redis.Nil {
		return domain.Progress{}, false, nil
	}
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("failed to read progress: %w", err)
	}

	var p domain.Progress
	if err := json.Unmarshal(payload, &p); err != nil {
		return domain.Progress{}, false, fmt.Errorf("failed to decode progress: %w", err)
	}
	return p, true, nil
}

// Delete removes the entry for a finished or purged analysis.
func (t *RedisTracker) Delete(ctx context.Context, analysisID string) error {
	if err := t.client.Del(ctx, keyPrefix+analysisID).Err(); err != nil {
		return fmt.Errorf("failed to delete progress: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}
