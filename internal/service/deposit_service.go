package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DepositPolicy is the monetary configuration of deposits.
type DepositPolicy struct {
	ChargeCurrency string
	MinimumDeposit int64           // exclusive lower bound, minor units
	FeePercent     decimal.Decimal // of the target amount
	AttemptTTL     time.Duration   // bounds the in-flight lease left by a crashed request
}

// DepositServiceImpl implements ports.DepositService: charge first, credit second.
type DepositServiceImpl struct {
	users      ports.UserDirectory
	wallets    *WalletStore
	ledger     *Ledger
	rates      ports.ExchangeRateProvider
	gateway    ports.PaymentGateway
	guard      ports.AttemptGuard // optional
	transactor ports.DBTransactor
	policy     DepositPolicy
	log        zerolog.Logger
}

// NewDepositService creates a new DepositServiceImpl. guard may be nil.
func NewDepositService(
	users ports.UserDirectory,
	wallets *WalletStore,
	ledger *Ledger,
	rates ports.ExchangeRateProvider,
	gateway ports.PaymentGateway,
	guard ports.AttemptGuard,
	transactor ports.DBTransactor,
	policy DepositPolicy,
	log zerolog.Logger,
) *DepositServiceImpl {
	if policy.AttemptTTL <= 0 {
		policy.AttemptTTL = 2 * time.Minute
	}
	return &DepositServiceImpl{
		users:      users,
		wallets:    wallets,
		ledger:     ledger,
		rates:      rates,
		gateway:    gateway,
		guard:      guard,
		transactor: transactor,
		policy:     policy,
		log:        log,
	}
}

// ChargeAmount converts a settlement amount to the charge currency, rounding up so the
// charge always funds the full target.
func ChargeAmount(target int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(target).Div(rate).Ceil().IntPart()
}

// FeeAmount is target * pct / 100, rounded half-up to minor units.
func FeeAmount(target int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(target).Mul(pct).Div(hundred).Round(0).IntPart()
}

var hundred = decimal.NewFromInt(100)

// Deposit charges the payment method and credits the wallet with the target minus the fee.
func (s *DepositServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (*ports.TransactionResult, error) {
	if req.TargetAmount <= 0 || req.TargetAmount <= s.policy.MinimumDeposit {
		return nil, apperror.ErrInvalidDepositRequest(
			fmt.Sprintf("target amount must exceed %s", domain.FormatMinor(s.policy.MinimumDeposit)))
	}
	if req.PaymentMethodRef == "" {
		return nil, apperror.ErrInvalidDepositRequest("payment method is required")
	}
	if err := s.wallets.CheckCurrency(req.TargetCurrency); err != nil {
		return nil, err
	}
	fee := FeeAmount(req.TargetAmount, s.policy.FeePercent)
	net := req.TargetAmount - fee
	if net <= 0 {
		return nil, apperror.ErrInvalidDepositRequest(
			fmt.Sprintf("target amount %s does not cover the %s%% fee", domain.FormatMinor(req.TargetAmount), s.policy.FeePercent))
	}

	attemptID := req.AttemptID
	if attemptID == uuid.Nil {
		attemptID = uuid.New()
	}
	if s.guard != nil {
		claimed, err := s.guard.Claim(ctx, req.UserID, attemptID, s.policy.AttemptTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("attempt guard unavailable, relying on gateway idempotency")
		} else if !claimed {
			return nil, apperror.ErrDepositInProgress()
		} else {
			// Held only while this call runs; a retry of the same attempt replays
			// through the gateway key and the booked charge id.
			defer s.releaseAttempt(ctx, req.UserID, attemptID)
		}
	}

	user, err := s.users.FindByID(ctx, req.UserID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}

	if _, err := s.wallets.Ensure(ctx, req.UserID); err != nil {
		return nil, err
	}

	rate, err := s.rates.GetRate(ctx, s.policy.ChargeCurrency, req.TargetCurrency)
	if err != nil {
		return nil, err
	}
	if !rate.IsPositive() {
		return nil, apperror.ErrInvalidExchangeRate(fmt.Errorf("non-positive rate %s", rate))
	}
	charge := ChargeAmount(req.TargetAmount, rate)

	res, err := s.gateway.Charge(ctx, ports.ChargeRequest{
		IdempotencyKey:   domain.BuildDepositChargeKey(req.UserID, attemptID),
		PaymentMethodRef: req.PaymentMethodRef,
		Amount:           charge,
		Currency:         s.policy.ChargeCurrency,
	})
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", req.UserID.String()).Int64("charge", charge).Msg("gateway charge failed")
		return nil, apperror.ErrPaymentGateway(err)
	}
	if res.Status != ports.ChargeStatusSucceeded {
		s.log.Info().Str("user_id", req.UserID.String()).Str("reason", res.DeclineReason).Msg("deposit declined")
		return nil, apperror.ErrPaymentDeclined(res.DeclineReason)
	}

	// The charge is irreversible from here; a client disconnect must not abort the credit.
	creditCtx := context.WithoutCancel(ctx)
	result, err := s.credit(creditCtx, req, net, fee, charge, rate, res.ChargeID)
	if err != nil {
		s.log.Error().
			Err(err).
			Str("user_id", req.UserID.String()).
			Str("charge_id", res.ChargeID).
			Int64("charged_amount", charge).
			Str("charged_currency", s.policy.ChargeCurrency).
			Int64("net", net).
			Msg("deposit charged but not credited, reconciliation required")
		return nil, apperror.ErrDepositPartiallyFailed(res.ChargeID, err)
	}

	s.log.Info().
		Str("tx_id", result.Transaction.ID.String()).
		Str("user_id", req.UserID.String()).
		Str("charge_id", res.ChargeID).
		Int64("net", net).
		Int64("fee", fee).
		Str("outcome", string(result.Outcome)).
		Msg("deposit processed")

	return result, nil
}

func (s *DepositServiceImpl) releaseAttempt(ctx context.Context, userID, attemptID uuid.UUID) {
	if err := s.guard.Release(context.WithoutCancel(ctx), userID, attemptID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("attempt guard release failed, lease will expire")
	}
}

func (s *DepositServiceImpl) credit(ctx context.Context, req ports.DepositRequest, net, fee, charge int64, rate decimal.Decimal, chargeID string) (*ports.TransactionResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.wallets.GetOrCreate(ctx, dbTx, req.UserID, req.TargetCurrency)
	if err != nil {
		return nil, err
	}

	// The gateway answers a replayed attempt with the original charge.
	booked, err := s.ledger.FindCharge(ctx, dbTx, chargeID)
	if err != nil {
		return nil, err
	}
	if booked != nil {
		return &ports.TransactionResult{
			Outcome:     ports.OutcomeReplayed,
			Balance:     wallet.Balance,
			Transaction: booked,
		}, nil
	}

	balance, err := s.wallets.Credit(ctx, dbTx, wallet, net)
	if err != nil {
		return nil, err
	}

	target := req.TargetAmount
	currency := req.TargetCurrency
	txn := &domain.Transaction{
		ID:                      uuid.New(),
		WalletID:                wallet.ID,
		UserID:                  req.UserID,
		TransactionType:         domain.TransactionTypeDeposit,
		Amount:                  net,
		Currency:                wallet.Currency,
		ChargedAmount:           charge,
		ChargedCurrency:         s.policy.ChargeCurrency,
		ExchangeRate:            decimal.NewNullDecimal(rate),
		Fee:                     &fee,
		OriginalAmountDeposited: &target,
		OriginalCurrency:        &currency,
		ExternalChargeID:        &chargeID,
		CreatedAt:               time.Now().UTC(),
	}
	if err := s.ledger.Append(ctx, dbTx, txn); err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &ports.TransactionResult{
		Outcome:     ports.OutcomeSuccess,
		Balance:     balance,
		Transaction: txn,
	}, nil
}
