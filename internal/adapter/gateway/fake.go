package gateway

import (
	"context"
	"strings"
	"sync"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// Payment method references the fake gateway treats specially.
const (
	FakeMethodDecline = "pm_card_declined"
	FakeMethodError   = "pm_card_error"
	FakeMethodTimeout = "pm_card_timeout"
)

// FakeGateway approves every charge except the reserved payment method refs.
// Charges are remembered by idempotency key, so a replayed key returns the first result.
type FakeGateway struct {
	latency time.Duration

	mu      sync.Mutex
	charges map[string]*ports.ChargeResult
	calls   int
}

// NewFakeGateway creates a FakeGateway that waits latency before answering.
func NewFakeGateway(latency time.Duration) *FakeGateway {
	return &FakeGateway{latency: latency, charges: make(map[string]*ports.ChargeResult)}
}

func (g *FakeGateway) Charge(ctx context.Context, req ports.ChargeRequest) (*ports.ChargeResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.latency):
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++

	if prev, ok := g.charges[req.IdempotencyKey]; ok {
		cp := *prev
		return &cp, nil
	}

	var res *ports.ChargeResult
	switch strings.ToLower(req.PaymentMethodRef) {
	case FakeMethodDecline:
		res = &ports.ChargeResult{Status: ports.ChargeStatusDeclined, DeclineReason: "card_declined"}
	case FakeMethodError:
		return nil, ErrServer
	case FakeMethodTimeout:
		return nil, ErrTimeout
	default:
		res = &ports.ChargeResult{Status: ports.ChargeStatusSucceeded, ChargeID: "fake_" + uuid.NewString()}
	}

	g.charges[req.IdempotencyKey] = res
	cp := *res
	return &cp, nil
}

// Calls returns the number of Charge calls that reached the fake.
func (g *FakeGateway) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
