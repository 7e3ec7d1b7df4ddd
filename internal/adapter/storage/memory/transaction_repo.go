package memory

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TransactionRepo implements ports.TransactionRepository. Entries are kept in insertion order.
type TransactionRepo struct {
	store *Store
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Create appends t. A second non-deposit entry for the same (wallet, reference, type)
// is reported as ports.ErrDuplicate.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	unit, err := r.store.unitOf(tx)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if ref, ok := t.Reference(); ok && t.TransactionType != domain.TransactionTypeDeposit {
		if r.store.findTxn(t.WalletID, ref, t.TransactionType) != nil {
			return fmt.Errorf("insert transaction: %w", ports.ErrDuplicate)
		}
	}
	if t.ExternalChargeID != nil && r.store.findCharge(*t.ExternalChargeID) != nil {
		return fmt.Errorf("insert transaction: %w", ports.ErrDuplicate)
	}

	r.store.txns = append(r.store.txns, *t)
	n := len(r.store.txns)
	unit.undo = append(unit.undo, func() { r.store.txns = r.store.txns[:n-1] })
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := range r.store.txns {
		if r.store.txns[i].ID == id {
			t := r.store.txns[i]
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TransactionRepo) FindByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, ref domain.Reference, txType domain.TransactionType) (*domain.Transaction, error) {
	if _, err := r.store.unitOf(tx); err != nil {
		return nil, fmt.Errorf("find transaction by reference: %w", err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.findTxn(walletID, ref, txType), nil
}

func (r *TransactionRepo) FindByExternalChargeID(ctx context.Context, tx pgx.Tx, chargeID string) (*domain.Transaction, error) {
	if _, err := r.store.unitOf(tx); err != nil {
		return nil, fmt.Errorf("find transaction by charge id: %w", err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.findCharge(chargeID), nil
}

func (r *TransactionRepo) ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.Transaction
	for _, t := range r.store.txns {
		if got, ok := t.Reference(); ok && got == ref {
			out = append(out, t)
		}
	}
	return out, nil
}

// List returns the wallet's entries newest first.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result []domain.Transaction
	for i := len(r.store.txns) - 1; i >= 0; i-- {
		t := r.store.txns[i]
		if t.WalletID != params.WalletID {
			continue
		}
		if params.Type != nil && t.TransactionType != *params.Type {
			continue
		}
		if params.From != nil && t.CreatedAt.Unix() < *params.From {
			continue
		}
		if params.To != nil && t.CreatedAt.Unix() > *params.To {
			continue
		}
		result = append(result, t)
	}
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start < 0 || start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// findTxn returns a copy; callers hold mu.
func (s *Store) findTxn(walletID uuid.UUID, ref domain.Reference, txType domain.TransactionType) *domain.Transaction {
	for _, t := range s.txns {
		if t.WalletID != walletID || t.TransactionType != txType {
			continue
		}
		if got, ok := t.Reference(); ok && got == ref {
			return &t
		}
	}
	return nil
}

func (s *Store) findCharge(chargeID string) *domain.Transaction {
	for _, t := range s.txns {
		if t.ExternalChargeID != nil && *t.ExternalChargeID == chargeID {
			return &t
		}
	}
	return nil
}
