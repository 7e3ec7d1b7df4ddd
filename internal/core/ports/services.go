package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the capability carried by a bearer token.
type Role string

const (
	RoleUser    Role = "user"
	RoleService Role = "service"
	RoleAdmin   Role = "admin"
)

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject uuid.UUID, role Role, ttl time.Duration) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject uuid.UUID
	Role    Role
}

// Outcome tells callers whether a debit was applied now or replayed from an earlier call.
type Outcome string

const (
	OutcomeSuccess  Outcome = "SUCCESS"
	OutcomeReplayed Outcome = "REPLAYED"
)

// TransactionResult is what every balance-changing operation returns. Balance is
// the wallet balance when the call returns, so a replay reports the current
// balance rather than the one right after the original write.
type TransactionResult struct {
	Outcome     Outcome             `json:"outcome"`
	Balance     int64               `json:"balance"`
	Transaction *domain.Transaction `json:"transaction"`
}

// --- Service Ports (Business Logic) ---

// ExchangeRateProvider resolves conversion rates and logs every resolution.
type ExchangeRateProvider interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
	History(ctx context.Context, from, to string, limit int) ([]domain.ExchangeRateLog, error)
}

// DepositService charges an external payment method and credits the wallet.
type DepositService interface {
	Deposit(ctx context.Context, req DepositRequest) (*TransactionResult, error)
}

// DepositRequest holds validated input for a deposit. TargetAmount is in settlement minor units.
type DepositRequest struct {
	UserID           uuid.UUID
	TargetAmount     int64
	TargetCurrency   string
	PaymentMethodRef string
	// AttemptID identifies one client submission; zero means a fresh attempt.
	AttemptID uuid.UUID
}

// DebitService withdraws from a wallet exactly once per business reference.
type DebitService interface {
	Debit(ctx context.Context, req DebitRequest) (*TransactionResult, error)
}

// DebitRequest holds input for a debit. Exactly one of OrderRef and ShipmentRef must be set.
type DebitRequest struct {
	UserID      uuid.UUID
	Amount      int64
	Currency    string
	Reason      domain.DebitReason
	OrderRef    *string
	ShipmentRef *string
}

// RefundService returns a prior withdrawal to the wallet.
type RefundService interface {
	Refund(ctx context.Context, req RefundRequest) (*TransactionResult, error)
}

// RefundRequest holds input for a refund. Amount nil means the full withdrawn amount.
type RefundRequest struct {
	UserID      uuid.UUID
	OrderRef    *string
	ShipmentRef *string
	Amount      *int64
}

// CouponService applies coupon discounts to shipment totals.
type CouponService interface {
	ApplyCoupon(ctx context.Context, shipmentID, bindingID uuid.UUID) (*CouponApplication, error)
	RemoveCoupon(ctx context.Context, shipmentID, bindingID uuid.UUID, originalTotal int64) (*domain.Shipment, error)
	CreateCoupon(ctx context.Context, coupon *domain.Coupon) (*domain.Coupon, error)
	GrantCoupon(ctx context.Context, userID uuid.UUID, code string) (*domain.CouponBinding, error)
	GrantWelcomeCoupon(ctx context.Context, userID uuid.UUID) (*domain.CouponBinding, error)
	ListUserCoupons(ctx context.Context, userID uuid.UUID) ([]domain.CouponBinding, error)
}

// CouponApplication reports the effect of applying a coupon.
type CouponApplication struct {
	Shipment      *domain.Shipment      `json:"shipment"`
	Binding       *domain.CouponBinding `json:"binding"`
	OriginalTotal int64                 `json:"original_total"`
	Discount      int64                 `json:"discount"`
}

// WalletQueryService serves read-only views of wallets and the ledger.
type WalletQueryService interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params TransactionListParams) ([]domain.Transaction, int64, error)
	ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Transaction, error)
	EnsureUserDeletable(ctx context.Context, userID uuid.UUID) error
}
