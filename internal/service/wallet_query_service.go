package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletQueryServiceImpl implements ports.WalletQueryService.
type WalletQueryServiceImpl struct {
	users      ports.UserDirectory
	wallets    *WalletStore
	walletRepo ports.WalletRepository
	ledger     *Ledger
}

// NewWalletQueryService creates a new WalletQueryServiceImpl.
func NewWalletQueryService(users ports.UserDirectory, wallets *WalletStore, walletRepo ports.WalletRepository, ledger *Ledger) *WalletQueryServiceImpl {
	return &WalletQueryServiceImpl{
		users:      users,
		wallets:    wallets,
		walletRepo: walletRepo,
		ledger:     ledger,
	}
}

// GetBalance returns the user's wallet. A user without one sees an unsaved
// zero-balance wallet; the row is only created by the first money movement.
func (s *WalletQueryServiceImpl) GetBalance(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	wallet, err := s.wallets.Lookup(ctx, userID)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return &domain.Wallet{UserID: userID, Currency: s.wallets.Currency()}, nil
	}
	return wallet, nil
}

// ListTransactions pages through the user's ledger, newest first.
func (s *WalletQueryServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	if params.Type != nil && !params.Type.IsValid() {
		return nil, 0, apperror.ErrInvalidRequest(fmt.Sprintf("unknown transaction type %q", *params.Type))
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	wallet, err := s.walletRepo.GetByUser(ctx, userID, s.wallets.Currency())
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return []domain.Transaction{}, 0, nil
	}

	params.WalletID = wallet.ID
	txns, total, err := s.ledger.ListByWallet(ctx, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, total, nil
}

// ListByReference returns every ledger entry tied to an order or shipment.
func (s *WalletQueryServiceImpl) ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Transaction, error) {
	txns, err := s.ledger.ListByReference(ctx, ref)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list by reference: %w", err))
	}
	return txns, nil
}

// EnsureUserDeletable refuses while the user's wallet still holds money.
func (s *WalletQueryServiceImpl) EnsureUserDeletable(ctx context.Context, userID uuid.UUID) error {
	wallet, err := s.walletRepo.GetByUser(ctx, userID, s.wallets.Currency())
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet != nil && wallet.Balance > 0 {
		return apperror.ErrWalletNotEmpty()
	}
	return nil
}
