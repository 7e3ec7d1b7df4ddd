package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// AttemptGuard implements ports.AttemptGuard using Redis SET NX.
type AttemptGuard struct {
	client *goredis.Client
	prefix string
}

// NewAttemptGuard creates a new Redis-backed deposit attempt guard.
func NewAttemptGuard(client *goredis.Client) *AttemptGuard {
	return &AttemptGuard{
		client: client,
		prefix: "deposit-attempt:",
	}
}

func (g *AttemptGuard) key(userID, attemptID uuid.UUID) string {
	return g.prefix + userID.String() + ":" + attemptID.String()
}

// Claim atomically takes the attempt. Returns false while another call holds it.
func (g *AttemptGuard) Claim(ctx context.Context, userID uuid.UUID, attemptID uuid.UUID, ttl time.Duration) (bool, error) {
	key := g.key(userID, attemptID)
	result, err := g.client.SetArgs(ctx, key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis attempt claim: %w", err)
	}
	return result == "OK", nil
}

// Release deletes the claim. Releasing an attempt that is not held is a no-op.
func (g *AttemptGuard) Release(ctx context.Context, userID uuid.UUID, attemptID uuid.UUID) error {
	if err := g.client.Del(ctx, g.key(userID, attemptID)).Err(); err != nil {
		return fmt.Errorf("redis attempt release: %w", err)
	}
	return nil
}
