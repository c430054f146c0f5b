package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	orderCacheTTL  = 15 * time.Minute
	idempotencyTTL = 24 * time.Hour
)

// Client caches committed orders and idempotency-key lookups. Orders are
// immutable once created, which is what makes caching them safe without any
// invalidation path.
type Client struct {
	rdb    *redis.Client
	logger *zap.Logger
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

	return &Client{rdb: rdb, logger: util.GetLogger()}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// GetOrder returns a cached order, or false on miss or any Redis failure.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*models.Order, bool) {
	data, err := c.rdb.Get(ctx, orderKey(orderID)).Bytes()
	if err == redis.Nil {
		util.OrderCacheHitsTotal.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		util.OrderCacheHitsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Order cache read failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, false
	}

	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		util.OrderCacheHitsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Order cache entry corrupt", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, false
	}

	util.OrderCacheHitsTotal.WithLabelValues("hit").Inc()
	return &order, true
}

// SetOrder caches an order. Best effort; failures are logged and swallowed.
func (c *Client) SetOrder(ctx context.Context, order *models.Order) {
	data, err := json.Marshal(order)
	if err != nil {
		c.logger.Warn("Failed to marshal order for cache", zap.Int64("order_id", order.ID), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, orderKey(order.ID), data, orderCacheTTL).Err(); err != nil {
		c.logger.Warn("Order cache write failed", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

// GetIdempotentOrderID resolves an idempotency key to the order it created.
func (c *Client) GetIdempotentOrderID(ctx context.Context, key string) (int64, bool) {
	val, err := c.rdb.Get(ctx, idempotencyKey(key)).Result()
	if err != nil {
		return 0, false
	}
	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return orderID, true
}

// SetIdempotentOrderID records the order an idempotency key committed.
func (c *Client) SetIdempotentOrderID(ctx context.Context, key string, orderID int64) {
	if err := c.rdb.Set(ctx, idempotencyKey(key), orderID, idempotencyTTL).Err(); err != nil {
		c.logger.Warn("Idempotency cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order:%d", orderID)
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}
