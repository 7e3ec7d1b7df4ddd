package ports

//go:generate mockgen -source=gateway.go -destination=mocks/mock_gateway.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeStatus is the terminal outcome the gateway reports for a charge.
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "SUCCEEDED"
	ChargeStatusDeclined  ChargeStatus = "DECLINED"
)

// ChargeRequest asks the gateway to bill Amount (minor units of Currency).
type ChargeRequest struct {
	IdempotencyKey   string
	PaymentMethodRef string
	Amount           int64
	Currency         string
}

// ChargeResult is returned for every charge the gateway answered, declined or not.
type ChargeResult struct {
	Status        ChargeStatus
	ChargeID      string
	DeclineReason string
}

// PaymentGateway bills an external payment method. A non-nil error means the
// gateway could not be reached or failed; a decline is a result, not an error.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// RateSource yields a conversion rate for a currency pair.
type RateSource interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
	Name() string
}

// RateCache is a read-through cache in front of a RateSource.
type RateCache interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, from, to string) (rate decimal.Decimal, ok bool, err error)
	Set(ctx context.Context, from, to string, rate decimal.Decimal, ttl time.Duration) error
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// AttemptGuard rejects a second concurrent submission of the same deposit attempt.
// A claim is held while the attempt is being processed; ttl bounds it if the holder dies.
type AttemptGuard interface {
	// Claim returns true when no other call currently holds (userID, attemptID).
	Claim(ctx context.Context, userID uuid.UUID, attemptID uuid.UUID, ttl time.Duration) (bool, error)
	// Release drops the claim so the attempt can be submitted again.
	Release(ctx context.Context, userID uuid.UUID, attemptID uuid.UUID) error
}

// UserDirectory resolves user identities owned by the user service.
type UserDirectory interface {
	// FindByID returns nil, nil when the user does not exist.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}
