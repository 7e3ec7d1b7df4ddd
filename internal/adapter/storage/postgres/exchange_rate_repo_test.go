package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangeRateRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewExchangeRateRepo(mock)
	l := &domain.ExchangeRateLog{
		ID:           uuid.New(),
		FromCurrency: "BRL",
		ToCurrency:   "CNY",
		Rate:         decimal.RequireFromString("1.155"),
		Source:       "fixed",
		FetchedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO exchange_rate_logs").
		WithArgs(l.ID, "BRL", "CNY", l.Rate, "fixed", l.FetchedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), l)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExchangeRateRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewExchangeRateRepo(mock)

	mock.ExpectExec("INSERT INTO exchange_rate_logs").WillReturnError(assert.AnError)

	err = repo.Create(context.Background(), &domain.ExchangeRateLog{ID: uuid.New()})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExchangeRateRepo_ListRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewExchangeRateRepo(mock)
	now := time.Now().UTC()
	rate := decimal.RequireFromString("1.155")

	mock.ExpectQuery("SELECT .+ FROM exchange_rate_logs WHERE from_currency").
		WithArgs("BRL", "CNY", 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "from_currency", "to_currency", "rate", "source", "fetched_at"}).
			AddRow(uuid.New(), "BRL", "CNY", rate, "cache", now).
			AddRow(uuid.New(), "BRL", "CNY", rate, "fixed", now.Add(-time.Minute)))

	logs, err := repo.ListRecent(context.Background(), "BRL", "CNY", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "cache", logs[0].Source)
	assert.True(t, logs[1].Rate.Equal(rate))
	assert.NoError(t, mock.ExpectationsWereMet())
}
