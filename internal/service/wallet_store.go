package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// WalletStore owns balance mutations. Every method taking a pgx.Tx must run inside the
// caller's unit of work, after the wallet row has been locked by GetOrCreate.
type WalletStore struct {
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	currency   string
	log        zerolog.Logger
}

// NewWalletStore creates a WalletStore for the settlement currency.
func NewWalletStore(walletRepo ports.WalletRepository, transactor ports.DBTransactor, settlementCurrency string, log zerolog.Logger) *WalletStore {
	return &WalletStore{
		walletRepo: walletRepo,
		transactor: transactor,
		currency:   settlementCurrency,
		log:        log,
	}
}

// Currency returns the settlement currency.
func (s *WalletStore) Currency() string {
	return s.currency
}

// CheckCurrency rejects anything but the settlement currency.
func (s *WalletStore) CheckCurrency(currency string) error {
	if currency != s.currency {
		return apperror.ErrUnsupportedCurrency(currency)
	}
	return nil
}

// Lookup reads the user's wallet without locking it. Returns nil, nil when none exists.
func (s *WalletStore) Lookup(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUser(ctx, userID, s.currency)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get wallet: %w", err))
	}
	return wallet, nil
}

// GetOrCreate locks the user's wallet, inserting an empty one first when absent.
func (s *WalletStore) GetOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	if err := s.CheckCurrency(currency); err != nil {
		return nil, err
	}

	wallet, err := s.walletRepo.GetByUserForUpdate(ctx, tx, userID, currency)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock wallet: %w", err))
	}
	if wallet != nil {
		return wallet, nil
	}

	if err := s.walletRepo.InsertIfAbsent(ctx, tx, domain.NewWallet(userID, currency)); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}
	wallet, err = s.walletRepo.GetByUserForUpdate(ctx, tx, userID, currency)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock new wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.InternalError(errors.New("wallet missing after insert"))
	}

	s.log.Info().
		Str("user_id", userID.String()).
		Str("wallet_id", wallet.ID.String()).
		Msg("wallet created")
	return wallet, nil
}

// Ensure creates the user's wallet in its own short unit of work and returns it.
func (s *WalletStore) Ensure(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.GetOrCreate(ctx, dbTx, userID, s.currency)
	if err != nil {
		return nil, err
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}
	return wallet, nil
}

// Credit adds amount to the locked wallet and returns the new balance.
func (s *WalletStore) Credit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperror.InternalError(fmt.Errorf("credit of non-positive amount %d", amount))
	}
	if wallet.Balance > math.MaxInt64-amount {
		return 0, apperror.InternalError(fmt.Errorf("credit of %d overflows wallet %s", amount, wallet.ID))
	}

	newBalance := wallet.Balance + amount
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}
	wallet.Balance = newBalance
	return newBalance, nil
}

// TryDebit subtracts amount when the locked balance covers it. ok=false means
// insufficient funds and nothing was written.
func (s *WalletStore) TryDebit(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount int64) (int64, bool, error) {
	if amount <= 0 {
		return wallet.Balance, false, apperror.InternalError(fmt.Errorf("debit of non-positive amount %d", amount))
	}
	if !wallet.CanCover(amount) {
		return wallet.Balance, false, nil
	}

	newBalance := wallet.Balance - amount
	if err := s.walletRepo.UpdateBalance(ctx, tx, wallet.ID, newBalance); err != nil {
		return wallet.Balance, false, apperror.ErrDatabaseError(fmt.Errorf("update balance: %w", err))
	}
	wallet.Balance = newBalance
	return newBalance, true, nil
}
