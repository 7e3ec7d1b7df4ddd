// Package gateway holds the PaymentGateway adapters: Stripe, a circuit breaker
// decorator and a deterministic fake for local runs.
package gateway

import (
	"context"
	"errors"
)

var (
	ErrTimeout     = errors.New("gateway timeout")
	ErrServer      = errors.New("gateway 5xx")
	ErrCircuitOpen = errors.New("circuit open")
)

// isFault reports whether err counts against the breaker. Declines are results, not errors,
// so they never reach this check.
func isFault(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrServer) ||
		errors.Is(err, context.DeadlineExceeded)
}
