// Package rates holds RateSource adapters.
package rates

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SourceFixed tags rates that come from configuration.
const SourceFixed = "fixed"

// FixedSource serves one configured rate for one currency pair.
type FixedSource struct {
	from, to string
	rate     decimal.Decimal
}

// NewFixedSource creates a source answering from->to with rate.
func NewFixedSource(from, to string, rate decimal.Decimal) *FixedSource {
	return &FixedSource{from: from, to: to, rate: rate}
}

func (s *FixedSource) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from != s.from || to != s.to {
		return decimal.Zero, fmt.Errorf("fixed source has no rate for %s->%s", from, to)
	}
	return s.rate, nil
}

func (s *FixedSource) Name() string {
	return SourceFixed
}
