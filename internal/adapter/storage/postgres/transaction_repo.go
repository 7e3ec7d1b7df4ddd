package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const transactionColumnsSQL = `id, wallet_id, user_id, transaction_type, amount, currency,
		related_order_ref, related_shipment_ref, charged_amount, charged_currency, exchange_rate,
		fee, original_amount_deposited, original_currency, external_charge_id, created_at`

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new ledger entry within a database transaction.
// A unique-index hit on (wallet, reference, type) is reported as ports.ErrDuplicate.
func (r *TransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumnsSQL + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.UserID, t.TransactionType, t.Amount, t.Currency,
		t.RelatedOrderRef, t.RelatedShipmentRef, t.ChargedAmount, t.ChargedCurrency, t.ExchangeRate,
		t.Fee, t.OriginalAmountDeposited, t.OriginalCurrency, t.ExternalChargeID, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert transaction: %w", ports.ErrDuplicate)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumnsSQL + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// FindByReference looks up the wallet's entry of txType for ref, inside tx so the
// read is ordered after the wallet row lock taken by the caller.
func (r *TransactionRepo) FindByReference(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, ref domain.Reference, txType domain.TransactionType) (*domain.Transaction, error) {
	column, err := referenceColumn(ref)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM transactions
		WHERE wallet_id = $1 AND %s = $2 AND transaction_type = $3
		ORDER BY created_at LIMIT 1`, transactionColumnsSQL, column)

	t, err := scanTransaction(tx.QueryRow(ctx, query, walletID, ref.ID, txType))
	if err != nil {
		return nil, fmt.Errorf("find transaction by reference: %w", err)
	}
	return t, nil
}

// FindByExternalChargeID returns the deposit booked for a gateway charge, or nil.
func (r *TransactionRepo) FindByExternalChargeID(ctx context.Context, tx pgx.Tx, chargeID string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumnsSQL + ` FROM transactions WHERE external_charge_id = $1`

	t, err := scanTransaction(tx.QueryRow(ctx, query, chargeID))
	if err != nil {
		return nil, fmt.Errorf("find transaction by charge id: %w", err)
	}
	return t, nil
}

// ListByReference returns every entry tied to ref, oldest first.
func (r *TransactionRepo) ListByReference(ctx context.Context, ref domain.Reference) ([]domain.Transaction, error) {
	column, err := referenceColumn(ref)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE %s = $1 ORDER BY created_at`, transactionColumnsSQL, column)

	txns, err := collectTransactions(ctx, r.pool, query, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by reference: %w", err)
	}
	return txns, nil
}

// List fetches a wallet's transactions with filtering and pagination.
func (r *TransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("wallet_id = $%d", argIdx))
	args = append(args, params.WalletID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("transaction_type = $%d", argIdx))
		args = append(args, *params.Type)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transactions %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transactions %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		transactionColumnsSQL, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	txns, err := collectTransactions(ctx, r.pool, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return txns, total, nil
}

func referenceColumn(ref domain.Reference) (string, error) {
	switch ref.Kind {
	case domain.ReferenceKindOrder:
		return "related_order_ref", nil
	case domain.ReferenceKindShipment:
		return "related_shipment_ref", nil
	}
	return "", fmt.Errorf("unknown reference kind %q", ref.Kind)
}

func collectTransactions(ctx context.Context, q querier, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		if err := rows.Scan(transactionDest(&t)...); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, nil
}

func transactionDest(t *domain.Transaction) []any {
	return []any{
		&t.ID, &t.WalletID, &t.UserID, &t.TransactionType, &t.Amount, &t.Currency,
		&t.RelatedOrderRef, &t.RelatedShipmentRef, &t.ChargedAmount, &t.ChargedCurrency, &t.ExchangeRate,
		&t.Fee, &t.OriginalAmountDeposited, &t.OriginalCurrency, &t.ExternalChargeID, &t.CreatedAt,
	}
}

// scanTransaction returns nil, nil when the row does not exist.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	if err := row.Scan(transactionDest(t)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
