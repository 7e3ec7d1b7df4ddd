package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

func (r *WalletRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	unit, err := r.store.unitOf(tx)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.findWallet(w.UserID, w.Currency) != nil {
		return nil
	}
	cp := *w
	r.store.wallets[w.ID] = &cp
	unit.undo = append(unit.undo, func() { delete(r.store.wallets, w.ID) })
	return nil
}

func (r *WalletRepo) GetByUser(ctx context.Context, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.findWallet(userID, currency), nil
}

func (r *WalletRepo) GetByUserForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID, currency string) (*domain.Wallet, error) {
	if _, err := r.store.unitOf(tx); err != nil {
		return nil, fmt.Errorf("get wallet for update by user: %w", err)
	}
	return r.GetByUser(ctx, userID, currency)
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance int64) error {
	if balance < 0 {
		return fmt.Errorf("update wallet balance: negative balance %d for %s", balance, walletID)
	}
	unit, err := r.store.unitOf(tx)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet not found: %s", walletID)
	}
	prevBalance, prevUpdated := w.Balance, w.UpdatedAt
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	unit.undo = append(unit.undo, func() {
		w.Balance = prevBalance
		w.UpdatedAt = prevUpdated
	})
	return nil
}

// findWallet returns a copy; callers hold mu.
func (s *Store) findWallet(userID uuid.UUID, currency string) *domain.Wallet {
	for _, w := range s.wallets {
		if w.UserID == userID && w.Currency == currency {
			cp := *w
			return &cp
		}
	}
	return nil
}
