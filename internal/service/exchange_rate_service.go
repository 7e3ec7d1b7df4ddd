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

const (
	defaultRateHistoryLimit = 50
	maxRateHistoryLimit     = 500
)

// ExchangeRateServiceImpl implements ports.ExchangeRateProvider for the single
// charge -> settlement pair. Every resolution is appended to the rate log.
type ExchangeRateServiceImpl struct {
	source   ports.RateSource
	cache    ports.RateCache // optional
	logRepo  ports.ExchangeRateRepository
	from, to string
	cacheTTL time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewExchangeRateService creates the provider. cache may be nil.
func NewExchangeRateService(
	source ports.RateSource,
	cache ports.RateCache,
	logRepo ports.ExchangeRateRepository,
	chargeCurrency, settlementCurrency string,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *ExchangeRateServiceImpl {
	return &ExchangeRateServiceImpl{
		source:   source,
		cache:    cache,
		logRepo:  logRepo,
		from:     chargeCurrency,
		to:       settlementCurrency,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}
}

// GetRate resolves how many units of `to` one unit of `from` buys.
func (s *ExchangeRateServiceImpl) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		one := decimal.NewFromInt(1)
		return one, s.record(ctx, from, to, one, domain.RateSourceIdentity)
	}
	if from != s.from || to != s.to {
		return decimal.Zero, apperror.ErrUnsupportedCurrencyPair(from, to)
	}

	if s.cache != nil {
		rate, ok, err := s.cache.Get(ctx, from, to)
		if err != nil {
			s.log.Warn().Err(err).Str("pair", from+"/"+to).Msg("rate cache read failed, using source")
		}
		if ok && rate.IsPositive() {
			return rate, s.record(ctx, from, to, rate, domain.RateSourceCache)
		}
	}

	rate, err := s.source.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, apperror.ErrInvalidExchangeRate(fmt.Errorf("%s source: %w", s.source.Name(), err))
	}
	if !rate.IsPositive() {
		return decimal.Zero, apperror.ErrInvalidExchangeRate(fmt.Errorf("%s source returned %s for %s/%s", s.source.Name(), rate, from, to))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, from, to, rate, s.cacheTTL); err != nil {
			s.log.Warn().Err(err).Str("pair", from+"/"+to).Msg("rate cache write failed")
		}
	}
	return rate, s.record(ctx, from, to, rate, s.source.Name())
}

// History returns the most recent log rows for the pair.
func (s *ExchangeRateServiceImpl) History(ctx context.Context, from, to string, limit int) ([]domain.ExchangeRateLog, error) {
	if limit <= 0 {
		limit = defaultRateHistoryLimit
	}
	if limit > maxRateHistoryLimit {
		limit = maxRateHistoryLimit
	}
	logs, err := s.logRepo.ListRecent(ctx, from, to, limit)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list rate history: %w", err))
	}
	return logs, nil
}

func (s *ExchangeRateServiceImpl) record(ctx context.Context, from, to string, rate decimal.Decimal, source string) error {
	entry := &domain.ExchangeRateLog{
		ID:           uuid.New(),
		FromCurrency: from,
		ToCurrency:   to,
		Rate:         rate,
		Source:       source,
		FetchedAt:    s.now().UTC(),
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("append rate log: %w", err))
	}
	return nil
}
