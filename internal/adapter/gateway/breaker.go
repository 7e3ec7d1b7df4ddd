package gateway

import (
	"context"
	"sync"
	"time"

	"wallet-ledger/internal/core/ports"
)

// BreakerConfig tunes CircuitBreaker. Zero values fall back to defaults.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	IsFailure        func(error) bool
}

const (
	stateClosed = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker wraps a PaymentGateway and fails fast with ErrCircuitOpen after
// FailureThreshold consecutive faults, probing again once OpenTimeout has passed.
type CircuitBreaker struct {
	next ports.PaymentGateway
	cfg  BreakerConfig
	now  func() time.Time

	mu           sync.Mutex
	state        int
	failures     int
	successes    int
	openedAt     time.Time
	halfInFlight bool
}

// NewCircuitBreaker wraps next.
func NewCircuitBreaker(next ports.PaymentGateway, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = isFault
	}
	return &CircuitBreaker{next: next, cfg: cfg, now: time.Now, state: stateClosed}
}

func (b *CircuitBreaker) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	if err := b.beforeCall(); err != nil {
		return nil, err
	}

	res, err := b.next.Charge(ctx, req)
	b.afterCall(err)
	return res, err
}

func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return nil
	case stateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		b.state = stateHalfOpen
		b.successes = 0
		b.halfInFlight = false
		fallthrough
	case stateHalfOpen:
		if b.halfInFlight {
			return ErrCircuitOpen
		}
		b.halfInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (b *CircuitBreaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.halfInFlight = false
	}

	if err == nil {
		switch b.state {
		case stateClosed:
			b.failures = 0
		case stateHalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.state = stateClosed
				b.failures = 0
				b.successes = 0
			}
		}
		return
	}

	if !b.cfg.IsFailure(err) {
		return
	}

	switch b.state {
	case stateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case stateHalfOpen:
		b.trip()
	}
}

// trip opens the circuit; callers hold mu.
func (b *CircuitBreaker) trip() {
	b.state = stateOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
	b.halfInFlight = false
}
