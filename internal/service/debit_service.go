package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// DebitServiceImpl implements ports.DebitService: one withdrawal per (user, reference, type).
type DebitServiceImpl struct {
	users      ports.UserDirectory
	wallets    *WalletStore
	ledger     *Ledger
	idempCache ports.IdempotencyCache // optional
	transactor ports.DBTransactor
	retry      RetryPolicy
	log        zerolog.Logger
}

// NewDebitService creates a new DebitServiceImpl. idempCache may be nil.
func NewDebitService(
	users ports.UserDirectory,
	wallets *WalletStore,
	ledger *Ledger,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	retry RetryPolicy,
	log zerolog.Logger,
) *DebitServiceImpl {
	return &DebitServiceImpl{
		users:      users,
		wallets:    wallets,
		ledger:     ledger,
		idempCache: idempCache,
		transactor: transactor,
		retry:      retry,
		log:        log,
	}
}

// Debit withdraws req.Amount for a business reference. A repeated call with the same
// reference and amount replays the original transaction.
func (s *DebitServiceImpl) Debit(ctx context.Context, req ports.DebitRequest) (*ports.TransactionResult, error) {
	ref, ok := domain.NewReference(req.OrderRef, req.ShipmentRef)
	if !ok {
		return nil, apperror.ErrInvalidDebitRequest("exactly one of order_ref and shipment_ref is required")
	}
	if req.Amount <= 0 {
		return nil, apperror.ErrInvalidDebitRequest("amount must be positive")
	}
	txType, ok := req.Reason.TransactionType()
	if !ok {
		return nil, apperror.ErrInvalidDebitRequest(fmt.Sprintf("unknown reason %q", req.Reason))
	}
	if err := s.wallets.CheckCurrency(req.Currency); err != nil {
		return nil, err
	}

	idempKey := domain.BuildDebitIdempotencyKey(req.UserID, ref, txType)

	// Layer 1: Redis
	if cached := s.cachedResult(ctx, idempKey); cached != nil {
		if cached.Transaction.Amount != -req.Amount {
			return nil, apperror.ErrReferenceConflict()
		}
		// The cached balance is the one right after the original debit; report the current one.
		wallet, err := s.wallets.Lookup(ctx, req.UserID)
		if err == nil && wallet != nil {
			cached.Outcome = ports.OutcomeReplayed
			cached.Balance = wallet.Balance
			return cached, nil
		}
		s.log.Warn().Err(err).Str("key", idempKey).Msg("cached debit without readable wallet, replaying from ledger")
	}

	// Layer 2: the ledger itself, inside each attempt
	result, err := retry(ctx, s.retry, s.log.With().Str("user_id", req.UserID.String()).Str("ref", ref.String()).Logger(),
		func(ctx context.Context) (*ports.TransactionResult, error) {
			return s.attempt(ctx, req, ref, txType)
		})
	if err != nil {
		return nil, err
	}

	s.cacheResult(ctx, idempKey, result)

	s.log.Info().
		Str("tx_id", result.Transaction.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("ref", ref.String()).
		Str("outcome", string(result.Outcome)).
		Int64("amount", req.Amount).
		Msg("debit processed")

	return result, nil
}

// attempt is one unit of work. Every error leaves the wallet untouched.
func (s *DebitServiceImpl) attempt(ctx context.Context, req ports.DebitRequest, ref domain.Reference, txType domain.TransactionType) (*ports.TransactionResult, error) {
	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.wallets.GetOrCreate(ctx, dbTx, req.UserID, req.Currency)
	if err != nil {
		return nil, err
	}

	existing, err := s.ledger.Find(ctx, dbTx, wallet.ID, ref, txType)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if existing != nil {
		if existing.Amount != -req.Amount {
			return nil, apperror.ErrReferenceConflict()
		}
		return &ports.TransactionResult{
			Outcome:     ports.OutcomeReplayed,
			Balance:     wallet.Balance,
			Transaction: existing,
		}, nil
	}

	balance, ok, err := s.wallets.TryDebit(ctx, dbTx, wallet, req.Amount)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrInsufficientBalance()
	}

	txn := &domain.Transaction{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		UserID:          req.UserID,
		TransactionType: txType,
		Amount:          -req.Amount,
		Currency:        wallet.Currency,
		ChargedAmount:   req.Amount,
		ChargedCurrency: wallet.Currency,
		CreatedAt:       time.Now().UTC(),
	}
	ref.Apply(txn)

	if err := s.ledger.Append(ctx, dbTx, txn); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// Lost a race on the reference; the next attempt sees the winner and replays.
			s.log.Info().Str("ref", ref.String()).Msg("concurrent debit for reference, retrying")
		}
		return nil, apperror.ErrDatabaseError(err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	return &ports.TransactionResult{
		Outcome:     ports.OutcomeSuccess,
		Balance:     balance,
		Transaction: txn,
	}, nil
}

func (s *DebitServiceImpl) cachedResult(ctx context.Context, key string) *ports.TransactionResult {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	result := &ports.TransactionResult{}
	if err := json.Unmarshal(cached, result); err != nil || result.Transaction == nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	return result
}

func (s *DebitServiceImpl) cacheResult(ctx context.Context, key string, result *ports.TransactionResult) {
	if s.idempCache == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to marshal debit result")
		return
	}
	if err := s.idempCache.Set(ctx, key, data, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("failed to cache idempotency in redis")
	}
}
