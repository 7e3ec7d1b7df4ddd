package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RateCache implements ports.RateCache. Rates are stored as decimal strings.
type RateCache struct {
	client *goredis.Client
	prefix string
}

// NewRateCache creates a new Redis-backed exchange rate cache.
func NewRateCache(client *goredis.Client) *RateCache {
	return &RateCache{
		client: client,
		prefix: "rate:",
	}
}

func (c *RateCache) key(from, to string) string {
	return c.prefix + from + ":" + to
}

// Get returns ok=false on a miss.
func (c *RateCache) Get(ctx context.Context, from, to string) (decimal.Decimal, bool, error) {
	val, err := c.client.Get(ctx, c.key(from, to)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("redis rate get: %w", err)
	}

	rate, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("redis rate decode %q: %w", val, err)
	}
	return rate, true, nil
}

// Set caches rate for ttl.
func (c *RateCache) Set(ctx context.Context, from, to string, rate decimal.Decimal, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(from, to), rate.String(), ttl).Err(); err != nil {
		return fmt.Errorf("redis rate set: %w", err)
	}
	return nil
}
