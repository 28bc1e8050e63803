package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

//go:embed scripts/decrement_stock.lua
var decrementStockScript string

//go:embed scripts/claim_idempotency.lua
var claimIdempotencyScript string

// Stock is kept in thousandths so kilogram quantities stay exact in Lua
const stockScale = 3

// PendingMarker is stored under an idempotency key while its request is in flight
const PendingMarker = "PENDING"

type Client struct {
	rdb             *redis.Client
	decrementScript *redis.Script
	claimScript     *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return NewFromRedis(rdb), nil
}

// NewFromRedis wraps an existing connection
func NewFromRedis(rdb *redis.Client) *Client {
	return &Client{
		rdb:             rdb,
		decrementScript: redis.NewScript(decrementStockScript),
		claimScript:     redis.NewScript(claimIdempotencyScript),
	}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func stockKey(productID int64) string {
	return fmt.Sprintf("stock:%d", productID)
}

func toMilli(d decimal.Decimal) int64 {
	return d.Shift(stockScale).Round(0).IntPart()
}

func fromMilli(v int64) decimal.Decimal {
	return decimal.New(v, -stockScale)
}

// SetStock stores the current stock of a product
func (c *Client) SetStock(ctx context.Context, productID int64, stock decimal.Decimal) error {
	return c.rdb.HSet(ctx, stockKey(productID), "milli", toMilli(stock)).Err()
}

// SetStocks stores many products in one pipeline
func (c *Client) SetStocks(ctx context.Context, stocks map[int64]decimal.Decimal) error {
	pipe := c.rdb.Pipeline()
	for id, stock := range stocks {
		pipe.HSet(ctx, stockKey(id), "milli", toMilli(stock))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetStock retrieves the mirrored stock. ok is false when the product is not mirrored.
func (c *Client) GetStock(ctx context.Context, productID int64) (stock decimal.Decimal, ok bool, err error) {
	raw, err := c.rdb.HGet(ctx, stockKey(productID), "milli").Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt stock for product %d: %w", productID, err)
	}
	return fromMilli(v), true, nil
}

// DecrementStock atomically subtracts qty, clamped at zero.
// ok is false when the product is not mirrored.
func (c *Client) DecrementStock(ctx context.Context, productID int64, qty decimal.Decimal) (remaining decimal.Decimal, ok bool, err error) {
	result, err := c.decrementScript.Run(ctx, c.rdb, []string{stockKey(productID)}, toMilli(qty)).Result()
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("decrement stock script failed: %w", err)
	}

	v, isInt := result.(int64)
	if !isInt {
		return decimal.Zero, false, fmt.Errorf("unexpected script result type")
	}
	if v < 0 {
		return decimal.Zero, false, nil
	}
	return fromMilli(v), true, nil
}

// DeleteStock removes a product from the mirror
func (c *Client) DeleteStock(ctx context.Context, productID int64) error {
	return c.rdb.Del(ctx, stockKey(productID)).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s", key)
}

// ClaimIdempotencyKey marks key as in flight. When the key already exists,
// claimed is false and existing holds its stored value.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (claimed bool, existing string, err error) {
	result, err := c.claimScript.Run(ctx, c.rdb, []string{idempotencyKey(key)},
		PendingMarker, ttl.Milliseconds()).Result()
	if errors.Is(err, redis.Nil) {
		return true, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("claim idempotency script failed: %w", err)
	}

	value, ok := result.(string)
	if !ok {
		return false, "", fmt.Errorf("unexpected script result type")
	}
	return false, value, nil
}

// SetIdempotencyKey stores the outcome of a request with TTL
func (c *Client) SetIdempotencyKey(ctx context.Context, key string, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), value, ttl).Err()
}

// ReleaseIdempotencyKey forgets a key so the request can be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}
