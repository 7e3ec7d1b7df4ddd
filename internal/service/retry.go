package service

import (
	"context"
	"math"
	"time"

	"wallet-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// RetryPolicy bounds a retry loop. Backoff before attempt n+1 is
// BaseBackoff * Multiplier^(n-1), capped at MaxBackoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	Multiplier  float64
	MaxBackoff  time.Duration
	Timeout     time.Duration // whole loop, 0 = caller's context only
}

// Backoff returns the wait after the n-th failed attempt (n starts at 1).
func (p RetryPolicy) Backoff(n int) time.Duration {
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	wait := float64(p.BaseBackoff) * math.Pow(mult, float64(n-1))
	if p.MaxBackoff > 0 && wait > float64(p.MaxBackoff) {
		return p.MaxBackoff
	}
	return time.Duration(wait)
}

// retry runs fn until it succeeds, fails with a non-retryable error, or the policy runs out.
// Exhaustion surfaces as PaymentProcessingFailed wrapping the last cause.
func retry[T any](ctx context.Context, p RetryPolicy, log zerolog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if !apperror.IsRetryable(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, apperror.ErrPaymentProcessingFailed(err)
		}
		if attempt == attempts {
			break
		}

		wait := p.Backoff(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("transient failure, retrying")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, apperror.ErrPaymentProcessingFailed(lastErr)
		case <-timer.C:
		}
	}

	log.Error().Err(lastErr).Int("attempts", attempts).Msg("retries exhausted")
	return zero, apperror.ErrPaymentProcessingFailed(lastErr)
}
