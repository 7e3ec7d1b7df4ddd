package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumnsSQL = `id, user_id, currency, balance, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// InsertIfAbsent inserts the wallet inside tx; a concurrent or earlier insert for the
// same (user, currency) wins silently.
func (r *WalletRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, user_id, currency, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, currency) DO NOTHING`

	_, err := tx.Exec(ctx, query,
		w.ID, w.UserID, w.Currency, w.Balance, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByUser fetches a wallet by user and currency (non-locking read).
func (r *WalletRepo) GetByUser(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnsSQL + ` FROM wallets WHERE user_id = $1 AND currency = $2`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, userID, currency))
	if err != nil {
		return nil, fmt.Errorf("get wallet by user: %w", err)
	}
	return w, nil
}

// GetByUserForUpdate fetches a wallet by user and currency with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnsSQL + ` FROM wallets WHERE user_id = $1 AND currency = $2 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, userID, currency))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update by user: %w", err)
	}
	return w, nil
}

// UpdateBalance writes the wallet's new balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	if balance < 0 {
		return fmt.Errorf("update wallet balance: negative balance %d for %s", balance, walletID)
	}

	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, balance, walletID)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	return nil
}

// scanWallet returns nil, nil when the row does not exist.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.Currency, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
