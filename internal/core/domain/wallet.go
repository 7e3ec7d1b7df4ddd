package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of decimal places of every supported currency.
const MinorUnitExponent = 2

// Wallet holds a user's balance in a single currency, in minor units.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"` // Minor units, never negative
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewWallet returns an empty wallet for the user and currency.
func NewWallet(userID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Currency:  currency,
		Balance:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanCover reports whether the balance covers amount.
func (w *Wallet) CanCover(amount int64) bool {
	return w.Balance >= amount
}

// ToMajor converts minor units to a decimal in major units (10050 -> 100.50).
func ToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -MinorUnitExponent)
}

// FormatMinor renders minor units as a fixed-point string ("100.50").
func FormatMinor(minor int64) string {
	return ToMajor(minor).StringFixed(MinorUnitExponent)
}
