package memory

import (
	"context"

	"wallet-ledger/internal/core/domain"
)

// ExchangeRateRepo implements ports.ExchangeRateRepository.
type ExchangeRateRepo struct {
	store *Store
}

// NewExchangeRateRepo creates a new ExchangeRateRepo.
func NewExchangeRateRepo(store *Store) *ExchangeRateRepo {
	return &ExchangeRateRepo{store: store}
}

func (r *ExchangeRateRepo) Create(ctx context.Context, l *domain.ExchangeRateLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.rateLogs = append(r.store.rateLogs, *l)
	return nil
}

// ListRecent returns up to limit log rows for the pair, newest first.
func (r *ExchangeRateRepo) ListRecent(ctx context.Context, from, to string, limit int) ([]domain.ExchangeRateLog, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.ExchangeRateLog
	for i := len(r.store.rateLogs) - 1; i >= 0 && len(out) < limit; i-- {
		l := r.store.rateLogs[i]
		if l.FromCurrency == from && l.ToCurrency == to {
			out = append(out, l)
		}
	}
	return out, nil
}
