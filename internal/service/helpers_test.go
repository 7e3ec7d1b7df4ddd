package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

var testRate = decimal.RequireFromString("1.155")

// fastRetry keeps retry tests quick while still exercising the backoff path.
var fastRetry = RetryPolicy{
	MaxAttempts: 3,
	BaseBackoff: time.Millisecond,
	Multiplier:  2,
	MaxBackoff:  4 * time.Millisecond,
	Timeout:     time.Second,
}
