package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"errors"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicate is returned by repositories when a unique constraint rejects an insert.
var ErrDuplicate = errors.New("duplicate record")

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// InsertIfAbsent inserts the wallet unless one already exists for (user, currency).
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByUser(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error)
	GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error
}

// TransactionRepository is the append-only ledger store. It has no update or delete.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// FindByReference returns the wallet's transaction of the given type for ref, read inside tx.
	FindByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, ref domain.Reference, txType domain.TransactionType) (*domain.Transaction, error)
	// FindByExternalChargeID returns the deposit booked for a gateway charge, read inside tx.
	FindByExternalChargeID(ctx context.Context, tx pgx.Tx, chargeID string) (*domain.Transaction, error)
	ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing a wallet's transactions.
type TransactionListParams struct {
	WalletID uuid.UUID
	Type     *domain.TransactionType
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// ExchangeRateRepository appends resolved rates to the rate log.
type ExchangeRateRepository interface {
	Create(ctx context.Context, log *domain.ExchangeRateLog) error
	ListRecent(ctx context.Context, from, to string, limit int) ([]domain.ExchangeRateLog, error)
}

// CouponRepository persists coupons and the per-user bindings that track their use.
type CouponRepository interface {
	Create(ctx context.Context, coupon *domain.Coupon) error
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	CreateBinding(ctx context.Context, binding *domain.CouponBinding) error
	// GetBindingForUpdate locks the binding row and loads its coupon.
	GetBindingForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CouponBinding, error)
	UpdateBinding(ctx context.Context, tx pgx.Tx, binding *domain.CouponBinding) error
	ListBindingsByUser(ctx context.Context, userID uuid.UUID) ([]domain.CouponBinding, error)
}

// ShipmentRepository touches only the ledger-owned columns of a shipment.
type ShipmentRepository interface {
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Shipment, error)
	UpdateCoupon(ctx context.Context, tx pgx.Tx, shipment *domain.Shipment) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
