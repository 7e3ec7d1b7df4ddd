package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"
)

// ExchangeRateRepo implements ports.ExchangeRateRepository.
type ExchangeRateRepo struct {
	pool Pool
}

// NewExchangeRateRepo creates a new ExchangeRateRepo.
func NewExchangeRateRepo(pool Pool) *ExchangeRateRepo {
	return &ExchangeRateRepo{pool: pool}
}

// Create appends a resolved rate to the log.
func (r *ExchangeRateRepo) Create(ctx context.Context, l *domain.ExchangeRateLog) error {
	query := `INSERT INTO exchange_rate_logs (id, from_currency, to_currency, rate, source, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, l.ID, l.FromCurrency, l.ToCurrency, l.Rate, l.Source, l.FetchedAt)
	if err != nil {
		return fmt.Errorf("insert exchange rate log: %w", err)
	}
	return nil
}

// ListRecent returns the newest log rows for a pair.
func (r *ExchangeRateRepo) ListRecent(ctx context.Context, from, to string, limit int) ([]domain.ExchangeRateLog, error) {
	query := `SELECT id, from_currency, to_currency, rate, source, fetched_at
		FROM exchange_rate_logs WHERE from_currency = $1 AND to_currency = $2
		ORDER BY fetched_at DESC LIMIT $3`

	rows, err := r.pool.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list exchange rate logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.ExchangeRateLog
	for rows.Next() {
		var l domain.ExchangeRateLog
		if err := rows.Scan(&l.ID, &l.FromCurrency, &l.ToCurrency, &l.Rate, &l.Source, &l.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan exchange rate log: %w", err)
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchange rate logs: %w", err)
	}
	return logs, nil
}
