package service

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger is the append-only record of balance changes.
type Ledger struct {
	txRepo ports.TransactionRepository
}

// NewLedger creates a Ledger.
func NewLedger(txRepo ports.TransactionRepository) *Ledger {
	return &Ledger{txRepo: txRepo}
}

// Append records t inside tx. A failure must abort the enclosing unit of work.
// ports.ErrDuplicate stays matchable with errors.Is.
func (l *Ledger) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	if err := l.txRepo.Create(ctx, tx, t); err != nil {
		return fmt.Errorf("append %s: %w", t.TransactionType, err)
	}
	return nil
}

// Find returns the wallet's entry of txType for ref, or nil.
func (l *Ledger) Find(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, ref domain.Reference, txType domain.TransactionType) (*domain.Transaction, error) {
	t, err := l.txRepo.FindByReference(ctx, tx, walletID, ref, txType)
	if err != nil {
		return nil, fmt.Errorf("find %s for %s: %w", txType, ref, err)
	}
	return t, nil
}

// FindCharge returns the deposit already booked for a gateway charge, or nil.
func (l *Ledger) FindCharge(ctx context.Context, tx pgx.Tx, chargeID string) (*domain.Transaction, error) {
	t, err := l.txRepo.FindByExternalChargeID(ctx, tx, chargeID)
	if err != nil {
		return nil, fmt.Errorf("find deposit for charge %s: %w", chargeID, err)
	}
	return t, nil
}

// ListByWallet pages through a wallet's entries, newest first.
func (l *Ledger) ListByWallet(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	return l.txRepo.List(ctx, params)
}

// ListByReference returns every entry tied to ref across wallets.
func (l *Ledger) ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Transaction, error) {
	return l.txRepo.ListByReference(ctx, ref)
}
