package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SkrCodyxx/DounieCuisine-sub001/internal/config"
)

// RedisClient wraps redis.Client for caching operations
type RedisClient struct {
	*redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg config.RedisConfig) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// CacheTemplate caches a rendered-ready email template by name
func (r *RedisClient) CacheTemplate(ctx context.Context, name string, payload []byte, ttl time.Duration) error {
	return r.Set(ctx, templateKey(name), payload, ttl).Err()
}

// GetTemplate retrieves a cached email template by name
func (r *RedisClient) GetTemplate(ctx context.Context, name string) ([]byte, error) {
	return r.Get(ctx, templateKey(name)).Bytes()
}

// InvalidateTemplate drops a cached template, used after admin edits
func (r *RedisClient) InvalidateTemplate(ctx context.Context, name string) error {
	return r.Del(ctx, templateKey(name)).Err()
}

// IncrementDispatchCount adds to the per-window send counter for a campaign
func (r *RedisClient) IncrementDispatchCount(ctx context.Context, campaignID string, n int64, window time.Duration) (int64, error) {
	key := fmt.Sprintf("campaign_sends:%s", campaignID)
	pipe := r.Pipeline()

	incr := pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, window)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.Client.Close()
}

func templateKey(name string) string {
	return fmt.Sprintf("template:%s", name)
}
