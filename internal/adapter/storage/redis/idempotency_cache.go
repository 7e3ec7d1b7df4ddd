package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const debitResultPrefix = "ledger:debit:"

// IdempotencyCache implements ports.IdempotencyCache over Redis strings. Values are
// serialized debit results keyed by user, reference and withdrawal type; the ledger's
// unique reference index stays authoritative, so a miss or an outage only costs a DB read.
type IdempotencyCache struct {
	client *goredis.Client
}

func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// Get returns nil, nil when no result is cached for key.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, debitResultPrefix+key).Bytes()
	switch {
	case errors.Is(err, goredis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get cached debit %s: %w", key, err)
	}
	return val, nil
}

func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, debitResultPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache debit %s: %w", key, err)
	}
	return nil
}
