package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rate source tags recorded on every ExchangeRateLog row.
const (
	RateSourceIdentity = "identity"
	RateSourceCache    = "cache"
)

// ExchangeRateLog records one resolved conversion rate.
type ExchangeRateLog struct {
	ID           uuid.UUID       `json:"id"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Rate         decimal.Decimal `json:"rate"`
	Source       string          `json:"source"`
	FetchedAt    time.Time       `json:"fetched_at"`
}
