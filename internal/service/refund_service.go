package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// withdrawalTypes are searched in order when locating the debit a refund reverses.
var withdrawalTypes = []domain.TransactionType{
	domain.TransactionTypeWithdrawalProductPayment,
	domain.TransactionTypeWithdrawalShippingPayment,
}

// RefundServiceImpl implements ports.RefundService.
type RefundServiceImpl struct {
	wallets    *WalletStore
	ledger     *Ledger
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewRefundService creates a new RefundServiceImpl.
func NewRefundService(wallets *WalletStore, ledger *Ledger, transactor ports.DBTransactor, log zerolog.Logger) *RefundServiceImpl {
	return &RefundServiceImpl{
		wallets:    wallets,
		ledger:     ledger,
		transactor: transactor,
		log:        log,
	}
}

// Refund returns all or part of the withdrawal made for a reference. At most one refund
// exists per reference.
func (s *RefundServiceImpl) Refund(ctx context.Context, req ports.RefundRequest) (*ports.TransactionResult, error) {
	ref, ok := domain.NewReference(req.OrderRef, req.ShipmentRef)
	if !ok {
		return nil, apperror.ErrInvalidRequest("exactly one of order_ref and shipment_ref is required")
	}
	if req.Amount != nil && *req.Amount <= 0 {
		return nil, apperror.ErrInvalidRequest("refund amount must be positive")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.wallets.GetOrCreate(ctx, dbTx, req.UserID, s.wallets.Currency())
	if err != nil {
		return nil, err
	}

	var original *domain.Transaction
	for _, t := range withdrawalTypes {
		original, err = s.ledger.Find(ctx, dbTx, wallet.ID, ref, t)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if original != nil {
			break
		}
	}
	if original == nil {
		return nil, apperror.ErrNotFound("withdrawal")
	}

	prior, err := s.ledger.Find(ctx, dbTx, wallet.ID, ref, domain.TransactionTypeRefund)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if prior != nil {
		return nil, apperror.ErrDuplicateRefund()
	}

	withdrawn := -original.Amount
	amount := withdrawn
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount > withdrawn {
		return nil, apperror.ErrRefundExceedsOriginal()
	}

	balance, err := s.wallets.Credit(ctx, dbTx, wallet, amount)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		UserID:          req.UserID,
		TransactionType: domain.TransactionTypeRefund,
		Amount:          amount,
		Currency:        wallet.Currency,
		ChargedAmount:   amount,
		ChargedCurrency: wallet.Currency,
		CreatedAt:       time.Now().UTC(),
	}
	ref.Apply(txn)

	if err := s.ledger.Append(ctx, dbTx, txn); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			return nil, apperror.ErrDuplicateRefund()
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("ref", ref.String()).
		Int64("amount", amount).
		Msg("refund processed")

	return &ports.TransactionResult{
		Outcome:     ports.OutcomeSuccess,
		Balance:     balance,
		Transaction: txn,
	}, nil
}
