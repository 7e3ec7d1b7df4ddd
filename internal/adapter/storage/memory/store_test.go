package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestTransactor_CommitKeepsWrites(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	wallets := NewWalletRepo(store)
	ctx := context.Background()
	w := domain.NewWallet(uuid.New(), "CNY")

	tx, err := txr.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, wallets.InsertIfAbsent(ctx, tx, w))
	require.NoError(t, wallets.UpdateBalance(ctx, tx, w.ID, 500))
	require.NoError(t, tx.Commit(ctx))
	assert.ErrorIs(t, tx.Rollback(ctx), pgx.ErrTxClosed)

	got, err := wallets.GetByUser(ctx, w.UserID, "CNY")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(500), got.Balance)
}

func TestTransactor_RollbackUndoesWrites(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	wallets := NewWalletRepo(store)
	txns := NewTransactionRepo(store)
	ctx := context.Background()
	w := domain.NewWallet(uuid.New(), "CNY")

	tx, err := txr.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, wallets.InsertIfAbsent(ctx, tx, w))
	require.NoError(t, tx.Commit(ctx))

	tx, err = txr.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, wallets.UpdateBalance(ctx, tx, w.ID, 900))
	require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{ID: uuid.New(), WalletID: w.ID, Amount: 900, CreatedAt: time.Now()}))
	require.NoError(t, tx.Rollback(ctx))

	got, _ := wallets.GetByUser(ctx, w.UserID, "CNY")
	assert.Equal(t, int64(0), got.Balance)
	list, total, err := txns.List(ctx, ports.TransactionListParams{WalletID: w.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestTransactor_SerializesUnitsOfWork(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)

	tx, err := txr.Begin(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = txr.Begin(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback(context.Background()))
	tx2, err := txr.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx2.Commit(context.Background()))
}

func TestWalletRepo_InsertIfAbsentKeepsFirst(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	wallets := NewWalletRepo(store)
	ctx := context.Background()
	userID := uuid.New()
	first := domain.NewWallet(userID, "CNY")

	tx, _ := txr.Begin(ctx)
	require.NoError(t, wallets.InsertIfAbsent(ctx, tx, first))
	require.NoError(t, wallets.InsertIfAbsent(ctx, tx, domain.NewWallet(userID, "CNY")))
	require.NoError(t, tx.Commit(ctx))

	tx, _ = txr.Begin(ctx)
	got, err := wallets.GetByUserForUpdate(ctx, tx, userID, "CNY")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Error(t, wallets.UpdateBalance(ctx, tx, got.ID, -1))
	require.NoError(t, tx.Commit(ctx))
}

func TestWalletRepo_RejectsForeignTx(t *testing.T) {
	store := NewStore()
	other := NewStore()
	tx, err := NewTransactor(other).Begin(context.Background())
	require.NoError(t, err)
	defer tx.Rollback(context.Background()) //nolint:errcheck

	err = NewWalletRepo(store).InsertIfAbsent(context.Background(), tx, domain.NewWallet(uuid.New(), "CNY"))
	assert.Error(t, err)
}

func TestTransactionRepo_DuplicateReference(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	txns := NewTransactionRepo(store)
	ctx := context.Background()
	walletID := uuid.New()

	debit := func() *domain.Transaction {
		return &domain.Transaction{
			ID:              uuid.New(),
			WalletID:        walletID,
			TransactionType: domain.TransactionTypeWithdrawalProductPayment,
			Amount:          -100,
			RelatedOrderRef: strPtr("ORD-1"),
			CreatedAt:       time.Now().UTC(),
		}
	}

	tx, _ := txr.Begin(ctx)
	require.NoError(t, txns.Create(ctx, tx, debit()))
	err := txns.Create(ctx, tx, debit())
	assert.True(t, errors.Is(err, ports.ErrDuplicate))

	refund := debit()
	refund.TransactionType = domain.TransactionTypeRefund
	refund.Amount = 100
	require.NoError(t, txns.Create(ctx, tx, refund))
	require.NoError(t, tx.Commit(ctx))

	tx, _ = txr.Begin(ctx)
	found, err := txns.FindByReference(ctx, tx, walletID, domain.OrderReference("ORD-1"), domain.TransactionTypeWithdrawalProductPayment)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(-100), found.Amount)
	require.NoError(t, tx.Commit(ctx))

	byRef, err := txns.ListByReference(ctx, domain.OrderReference("ORD-1"))
	require.NoError(t, err)
	assert.Len(t, byRef, 2)

	got, err := txns.GetByID(ctx, refund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeRefund, got.TransactionType)
}

func TestTransactionRepo_ListFiltersAndPages(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	txns := NewTransactionRepo(store)
	ctx := context.Background()
	walletID := uuid.New()
	base := time.Unix(1_800_000_000, 0).UTC()

	tx, _ := txr.Begin(ctx)
	for i := 0; i < 5; i++ {
		require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{
			ID:              uuid.New(),
			WalletID:        walletID,
			TransactionType: domain.TransactionTypeDeposit,
			Amount:          int64(i + 1),
			CreatedAt:       base.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, txns.Create(ctx, tx, &domain.Transaction{ID: uuid.New(), WalletID: uuid.New(), CreatedAt: base}))
	require.NoError(t, tx.Commit(ctx))

	page, total, err := txns.List(ctx, ports.TransactionListParams{WalletID: walletID, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].Amount, "newest first")

	from := base.Add(3 * time.Hour).Unix()
	page, total, err = txns.List(ctx, ports.TransactionListParams{WalletID: walletID, From: &from, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, page, 2)

	page, _, err = txns.List(ctx, ports.TransactionListParams{WalletID: walletID, Page: 9, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestExchangeRateRepo_ListRecent(t *testing.T) {
	store := NewStore()
	repo := NewExchangeRateRepo(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &domain.ExchangeRateLog{
			ID: uuid.New(), FromCurrency: "BRL", ToCurrency: "CNY",
			Rate: decimal.NewFromInt(int64(i + 1)), Source: "fixed", FetchedAt: time.Now(),
		}))
	}
	require.NoError(t, repo.Create(ctx, &domain.ExchangeRateLog{ID: uuid.New(), FromCurrency: "CNY", ToCurrency: "CNY", Rate: decimal.NewFromInt(1)}))

	logs, err := repo.ListRecent(ctx, "BRL", "CNY", 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "3", logs[0].Rate.String())
}

func TestCouponRepo_BindingLifecycle(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	coupons := NewCouponRepo(store)
	ctx := context.Background()

	c := &domain.Coupon{ID: uuid.New(), Code: "SHIP10", Type: domain.CouponTypeShipping, IsActive: true}
	require.NoError(t, coupons.Create(ctx, c))
	err := coupons.Create(ctx, &domain.Coupon{ID: uuid.New(), Code: "SHIP10"})
	assert.True(t, errors.Is(err, ports.ErrDuplicate))

	byCode, err := coupons.GetByCode(ctx, "SHIP10")
	require.NoError(t, err)
	assert.Equal(t, c.ID, byCode.ID)
	missing, err := coupons.GetByCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, missing)

	userID := uuid.New()
	b := &domain.CouponBinding{ID: uuid.New(), UserID: userID, CouponID: c.ID, CreatedAt: time.Now()}
	require.NoError(t, coupons.CreateBinding(ctx, b))
	assert.Error(t, coupons.CreateBinding(ctx, &domain.CouponBinding{ID: uuid.New(), CouponID: uuid.New()}))

	tx, _ := txr.Begin(ctx)
	locked, err := coupons.GetBindingForUpdate(ctx, tx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, locked.Coupon)
	locked.MarkUsed(uuid.New(), time.Now())
	require.NoError(t, coupons.UpdateBinding(ctx, tx, locked))
	require.NoError(t, tx.Rollback(ctx))

	list, err := coupons.ListBindingsByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Used, "rollback restores the binding")
	assert.Equal(t, "SHIP10", list[0].Coupon.Code)
}

func TestShipmentRepo_UpdateCoupon(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	shipments := NewShipmentRepo(store)
	ctx := context.Background()
	id := uuid.New()
	store.PutShipment(domain.Shipment{ID: id, UserID: uuid.New(), Total: 30000, Currency: "CNY"})

	tx, _ := txr.Begin(ctx)
	s, err := shipments.GetForUpdate(ctx, tx, id)
	require.NoError(t, err)
	bindingID := uuid.New()
	s.Total = 28000
	s.AppliedCouponBindingID = &bindingID
	require.NoError(t, shipments.UpdateCoupon(ctx, tx, s))
	assert.Error(t, shipments.UpdateCoupon(ctx, tx, &domain.Shipment{ID: uuid.New()}))
	require.NoError(t, tx.Commit(ctx))

	got := store.Shipment(id)
	assert.Equal(t, int64(28000), got.Total)
	assert.True(t, got.HasCoupon())
	assert.Nil(t, store.Shipment(uuid.New()))
}

func TestUserRepo_FindByID(t *testing.T) {
	store := NewStore()
	u := domain.User{ID: uuid.New(), Email: "buyer@example.com"}
	store.PutUser(u)

	got, err := NewUserRepo(store).FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", got.Email)

	missing, err := NewUserRepo(store).FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	hc := NewHealthCheck()
	assert.NoError(t, hc.Ping(context.Background()))
	assert.Equal(t, "memory", hc.Name())
}

func TestTransactionRepo_FindByExternalChargeID(t *testing.T) {
	store := NewStore()
	txr := NewTransactor(store)
	txns := NewTransactionRepo(store)
	ctx := context.Background()

	deposit := func() *domain.Transaction {
		return &domain.Transaction{
			ID:               uuid.New(),
			WalletID:         uuid.New(),
			TransactionType:  domain.TransactionTypeDeposit,
			Amount:           9500,
			ExternalChargeID: strPtr("pi_1"),
			CreatedAt:        time.Now().UTC(),
		}
	}

	tx, _ := txr.Begin(ctx)
	require.NoError(t, txns.Create(ctx, tx, deposit()))
	assert.ErrorIs(t, txns.Create(ctx, tx, deposit()), ports.ErrDuplicate)

	found, err := txns.FindByExternalChargeID(ctx, tx, "pi_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(9500), found.Amount)

	missing, err := txns.FindByExternalChargeID(ctx, tx, "pi_2")
	require.NoError(t, err)
	assert.Nil(t, missing)
	require.NoError(t, tx.Commit(ctx))
}

func TestStore_LoadSeed(t *testing.T) {
	store := NewStore()
	userID, shipmentID := uuid.New(), uuid.New()
	raw := `{
		"users": [{"id": "` + userID.String() + `", "email": "buyer@example.com"}],
		"shipments": [{"id": "` + shipmentID.String() + `", "user_id": "` + userID.String() + `", "total": 2000, "currency": "CNY"}]
	}`

	users, shipments, err := store.LoadSeed(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, users)
	assert.Equal(t, 1, shipments)

	got, err := NewUserRepo(store).FindByID(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(2000), store.Shipment(shipmentID).Total)

	_, _, err = store.LoadSeed(strings.NewReader(`{"merchants": []}`))
	assert.Error(t, err)
}
