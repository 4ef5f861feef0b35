package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"checkout-service/internal/models"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// AcquireLock acquires a distributed lock. Used to keep one payment
// attempt in flight per session across instances.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}

// SetIdempotencyKey stores an idempotency key with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// CheckIdempotencyKey checks if an idempotency key exists
func (c *Client) CheckIdempotencyKey(ctx context.Context, key string) (bool, error) {
	result, err := c.rdb.Exists(ctx, fmt.Sprintf("idempotency:%s", key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

// CacheCart stores a cart snapshot for the quote fast path. The TTL
// is short: the storefront backend stays the source of truth and
// checkout entry always refetches.
func (c *Client) CacheCart(ctx context.Context, sessionID string, cart models.CartSnapshot, ttl time.Duration) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	return c.rdb.Set(ctx, cartKey(sessionID), raw, ttl).Err()
}

// GetCachedCart retrieves a cached cart snapshot; the second return
// reports whether one was present.
func (c *Client) GetCachedCart(ctx context.Context, sessionID string) (models.CartSnapshot, bool, error) {
	raw, err := c.rdb.Get(ctx, cartKey(sessionID)).Bytes()
	if err == redis.Nil {
		return models.CartSnapshot{}, false, nil
	}
	if err != nil {
		return models.CartSnapshot{}, false, err
	}

	var cart models.CartSnapshot
	if err := json.Unmarshal(raw, &cart); err != nil {
		return models.CartSnapshot{}, false, fmt.Errorf("unmarshal cart: %w", err)
	}
	return cart, true, nil
}

// InvalidateCart drops the cached snapshot; called on the confirmed
// order transition.
func (c *Client) InvalidateCart(ctx context.Context, sessionID string) error {
	return c.rdb.Del(ctx, cartKey(sessionID)).Err()
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}
