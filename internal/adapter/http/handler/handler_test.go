package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(t *testing.T, method, target string, body any, userID *uuid.UUID) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if userID != nil {
		c.Set(middleware.CtxUserID, *userID)
	}
	return c, w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]any)
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func depositTx(userID uuid.UUID) *domain.Transaction {
	fee, original, origCur, charge := int64(500), int64(10000), "CNY", "pi_1"
	return &domain.Transaction{
		ID:                      uuid.New(),
		UserID:                  userID,
		TransactionType:         domain.TransactionTypeDeposit,
		Amount:                  9500,
		Currency:                "CNY",
		ChargedAmount:           8659,
		ChargedCurrency:         "BRL",
		ExchangeRate:            decimal.NewNullDecimal(decimal.RequireFromString("1.155")),
		Fee:                     &fee,
		OriginalAmountDeposited: &original,
		OriginalCurrency:        &origCur,
		ExternalChargeID:        &charge,
		CreatedAt:               time.Now(),
	}
}

// --- Wallet Handler Tests ---

func TestGetBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queries := mocks.NewMockWalletQueryService(ctrl)
	h := NewWalletHandler(nil, queries)

	userID := uuid.New()
	queries.EXPECT().GetBalance(gomock.Any(), userID).Return(&domain.Wallet{
		UserID: userID, Currency: "CNY", Balance: 9500,
	}, nil)

	c, w := newTestContext(t, http.MethodGet, "/api/v1/wallets/balance", nil, &userID)
	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 9500, data["balance"])
	assert.Equal(t, "95.00", data["balance_display"])
	assert.Equal(t, "CNY", data["currency"])
}

func TestGetBalance_Unauthenticated(t *testing.T) {
	h := NewWalletHandler(nil, nil)

	c, w := newTestContext(t, http.MethodGet, "/", nil, nil)
	h.GetBalance(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListTransactions_ParsesQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queries := mocks.NewMockWalletQueryService(ctrl)
	h := NewWalletHandler(nil, queries)

	userID := uuid.New()
	queries.EXPECT().ListTransactions(gomock.Any(), userID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ uuid.UUID, p ports.TransactionListParams) ([]domain.Transaction, int64, error) {
			assert.Equal(t, 2, p.Page)
			assert.Equal(t, maxPageSize, p.PageSize)
			require.NotNil(t, p.Type)
			assert.Equal(t, domain.TransactionTypeDeposit, *p.Type)
			require.NotNil(t, p.From)
			assert.Equal(t, int64(1700000000), *p.From)
			assert.Nil(t, p.To)
			return []domain.Transaction{*depositTx(userID)}, 101, nil
		})

	c, w := newTestContext(t, http.MethodGet, "/api/v1/wallets/transactions?page=2&page_size=500&type=DEPOSIT&from=1700000000", nil, &userID)
	h.ListTransactions(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 101, data["total"])
	assert.EqualValues(t, 2, data["total_pages"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "1.155", items[0].(map[string]any)["exchange_rate"])
}

func TestListTransactions_BadQuery(t *testing.T) {
	h := NewWalletHandler(nil, nil)
	userID := uuid.New()

	for _, target := range []string{"/?page=abc", "/?to=yesterday"} {
		c, w := newTestContext(t, http.MethodGet, target, nil, &userID)
		h.ListTransactions(c)

		assert.Equal(t, http.StatusBadRequest, w.Code, target)
		assert.Equal(t, "REQ_001", errorCode(t, w))
	}
}

func TestDeposit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deposits := mocks.NewMockDepositService(ctrl)
	h := NewWalletHandler(deposits, nil)

	userID, attemptID := uuid.New(), uuid.New()
	deposits.EXPECT().Deposit(gomock.Any(), ports.DepositRequest{
		UserID:           userID,
		TargetAmount:     10000,
		TargetCurrency:   "CNY",
		PaymentMethodRef: "pm_card_visa",
		AttemptID:        attemptID,
	}).Return(&ports.TransactionResult{
		Outcome:     ports.OutcomeSuccess,
		Balance:     9500,
		Transaction: depositTx(userID),
	}, nil)

	c, w := newTestContext(t, http.MethodPost, "/api/v1/wallets/deposit", dto.DepositRequest{
		Amount:        10000,
		Currency:      "CNY",
		PaymentMethod: "pm_card_visa",
		AttemptID:     attemptID.String(),
	}, &userID)
	h.Deposit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "SUCCESS", data["outcome"])
	assert.EqualValues(t, 9500, data["balance"])
	tx := data["transaction"].(map[string]any)
	assert.EqualValues(t, 8659, tx["charged_amount"])
	assert.EqualValues(t, 500, tx["fee"])
	assert.Equal(t, "pi_1", tx["external_charge_id"])
}

func TestDeposit_FreshAttemptWhenOmitted(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deposits := mocks.NewMockDepositService(ctrl)
	h := NewWalletHandler(deposits, nil)

	userID := uuid.New()
	deposits.EXPECT().Deposit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.DepositRequest) (*ports.TransactionResult, error) {
			assert.Equal(t, uuid.Nil, req.AttemptID)
			return &ports.TransactionResult{Outcome: ports.OutcomeReplayed, Balance: 9500, Transaction: depositTx(userID)}, nil
		})

	c, w := newTestContext(t, http.MethodPost, "/", dto.DepositRequest{
		Amount: 10000, Currency: "CNY", PaymentMethod: "pm_card_visa",
	}, &userID)
	h.Deposit(c)

	assert.Equal(t, http.StatusOK, w.Code, "replays answer 200")
}

func TestDeposit_BindingErrorIsDepositValidation(t *testing.T) {
	h := NewWalletHandler(nil, nil)
	userID := uuid.New()

	bodies := []any{
		"{not json",
		dto.DepositRequest{Amount: 100, Currency: "CNY"},
		dto.DepositRequest{Amount: 100, Currency: "CNY", PaymentMethod: "pm", AttemptID: "not-a-uuid"},
		dto.DepositRequest{Amount: 100, Currency: "CNY", PaymentMethod: "pm card"},
	}
	for _, body := range bodies {
		c, w := newTestContext(t, http.MethodPost, "/", body, &userID)
		h.Deposit(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "REQ_002", errorCode(t, w))
	}
}

func TestDeposit_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrPaymentDeclined("card_declined"), http.StatusPaymentRequired, "PAY_001"},
		{apperror.ErrPaymentGateway(errors.New("timeout")), http.StatusBadGateway, "PAY_002"},
		{apperror.ErrDepositPartiallyFailed("pi_9", errors.New("db down")), http.StatusInternalServerError, "PAY_004"},
		{apperror.ErrDepositInProgress(), http.StatusConflict, "PAY_005"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			deposits := mocks.NewMockDepositService(ctrl)
			deposits.EXPECT().Deposit(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			h := NewWalletHandler(deposits, nil)

			userID := uuid.New()
			c, w := newTestContext(t, http.MethodPost, "/", dto.DepositRequest{
				Amount: 10000, Currency: "CNY", PaymentMethod: "pm_card_visa",
			}, &userID)
			h.Deposit(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

// --- Ledger Handler Tests ---

func TestDebit_SuccessAndReplay(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	debits := mocks.NewMockDebitService(ctrl)
	h := NewLedgerHandler(debits, nil, nil)

	userID := uuid.New()
	orderRef := "order-42"
	tx := &domain.Transaction{
		ID: uuid.New(), UserID: userID, TransactionType: domain.TransactionTypeWithdrawalProductPayment,
		Amount: -3000, Currency: "CNY", RelatedOrderRef: &orderRef, ChargedAmount: 3000, ChargedCurrency: "CNY",
	}
	req := ports.DebitRequest{
		UserID: userID, Amount: 3000, Currency: "CNY",
		Reason: domain.DebitReasonProductPayment, OrderRef: &orderRef,
	}
	gomock.InOrder(
		debits.EXPECT().Debit(gomock.Any(), req).Return(&ports.TransactionResult{Outcome: ports.OutcomeSuccess, Balance: 6500, Transaction: tx}, nil),
		debits.EXPECT().Debit(gomock.Any(), req).Return(&ports.TransactionResult{Outcome: ports.OutcomeReplayed, Balance: 6500, Transaction: tx}, nil),
	)

	body := dto.DebitRequest{
		UserID: userID.String(), Amount: 3000, Currency: "CNY",
		Reason: "PRODUCT_PAYMENT", OrderRef: &orderRef,
	}

	c, w := newTestContext(t, http.MethodPost, "/api/v1/internal/debits", body, nil)
	h.Debit(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "SUCCESS", decodeData(t, w)["outcome"])

	c, w = newTestContext(t, http.MethodPost, "/api/v1/internal/debits", body, nil)
	h.Debit(c)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "REPLAYED", data["outcome"])
	assert.Equal(t, "order-42", data["transaction"].(map[string]any)["order_ref"])
}

func TestDebit_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"insufficient", apperror.ErrInsufficientBalance(), http.StatusPaymentRequired, "WAL_001"},
		{"conflict", apperror.ErrReferenceConflict(), http.StatusConflict, "WAL_003"},
		{"exhausted", apperror.ErrPaymentProcessingFailed(errors.New("db")), http.StatusServiceUnavailable, "PAY_003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			debits := mocks.NewMockDebitService(ctrl)
			debits.EXPECT().Debit(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			h := NewLedgerHandler(debits, nil, nil)

			ref := "ship-1"
			c, w := newTestContext(t, http.MethodPost, "/", dto.DebitRequest{
				UserID: uuid.NewString(), Amount: 100, Currency: "CNY", Reason: "SHIPPING_PAYMENT", ShipmentRef: &ref,
			}, nil)
			h.Debit(c)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestDebit_BindingErrorIsDebitValidation(t *testing.T) {
	h := NewLedgerHandler(nil, nil, nil)

	c, w := newTestContext(t, http.MethodPost, "/", dto.DebitRequest{UserID: "x", Currency: "CNY", Reason: "PRODUCT_PAYMENT"}, nil)
	h.Debit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "REQ_003", errorCode(t, w))
}

func TestRefund_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	refunds := mocks.NewMockRefundService(ctrl)
	h := NewLedgerHandler(nil, refunds, nil)

	userID := uuid.New()
	ref := "order-7"
	amount := int64(1200)
	refunds.EXPECT().Refund(gomock.Any(), ports.RefundRequest{
		UserID: userID, OrderRef: &ref, Amount: &amount,
	}).Return(&ports.TransactionResult{
		Outcome: ports.OutcomeSuccess,
		Balance: 8000,
		Transaction: &domain.Transaction{
			ID: uuid.New(), TransactionType: domain.TransactionTypeRefund, Amount: 1200, Currency: "CNY", RelatedOrderRef: &ref,
		},
	}, nil)

	c, w := newTestContext(t, http.MethodPost, "/", dto.RefundRequest{UserID: userID.String(), OrderRef: &ref, Amount: &amount}, nil)
	h.Refund(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "REFUND", decodeData(t, w)["transaction"].(map[string]any)["transaction_type"])
}

func TestRefund_Duplicate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	refunds := mocks.NewMockRefundService(ctrl)
	refunds.EXPECT().Refund(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrDuplicateRefund())
	h := NewLedgerHandler(nil, refunds, nil)

	ref := "order-7"
	c, w := newTestContext(t, http.MethodPost, "/", dto.RefundRequest{UserID: uuid.NewString(), OrderRef: &ref}, nil)
	h.Refund(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "WAL_004", errorCode(t, w))
}

func TestListByReference(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queries := mocks.NewMockWalletQueryService(ctrl)
	h := NewLedgerHandler(nil, nil, queries)

	queries.EXPECT().ListByReference(gomock.Any(), domain.ShipmentReference("ship-9")).Return(nil, nil)

	c, w := newTestContext(t, http.MethodGet, "/api/v1/internal/transactions?shipment_ref=ship-9", nil, nil)
	h.ListByReference(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []any{}, resp["data"])
}

func TestListByReference_NeedsExactlyOneRef(t *testing.T) {
	h := NewLedgerHandler(nil, nil, nil)

	for _, target := range []string{"/", "/?order_ref=a&shipment_ref=b"} {
		c, w := newTestContext(t, http.MethodGet, target, nil, nil)
		h.ListByReference(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestCheckDeletable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	queries := mocks.NewMockWalletQueryService(ctrl)
	h := NewLedgerHandler(nil, nil, queries)

	empty, funded := uuid.New(), uuid.New()
	queries.EXPECT().EnsureUserDeletable(gomock.Any(), empty).Return(nil)
	queries.EXPECT().EnsureUserDeletable(gomock.Any(), funded).Return(apperror.ErrWalletNotEmpty())

	c, w := newTestContext(t, http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: empty.String()}}
	h.CheckDeletable(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeData(t, w)["deletable"])

	c, w = newTestContext(t, http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: funded.String()}}
	h.CheckDeletable(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "WAL_002", errorCode(t, w))

	c, w = newTestContext(t, http.MethodGet, "/", nil, nil)
	c.Params = gin.Params{{Key: "id", Value: "nope"}}
	h.CheckDeletable(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Coupon Handler Tests ---

func TestApplyCoupon_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coupons := mocks.NewMockCouponService(ctrl)
	h := NewCouponHandler(coupons)

	shipmentID, bindingID, userID := uuid.New(), uuid.New(), uuid.New()
	coupons.EXPECT().ApplyCoupon(gomock.Any(), shipmentID, bindingID).Return(&ports.CouponApplication{
		Shipment:      &domain.Shipment{ID: shipmentID, UserID: userID, Total: 1500, Currency: "CNY", AppliedCouponBindingID: &bindingID},
		Binding:       &domain.CouponBinding{ID: bindingID, UserID: userID, Used: true, ShipmentID: &shipmentID},
		OriginalTotal: 2000,
		Discount:      500,
	}, nil)

	c, w := newTestContext(t, http.MethodPost, "/", dto.ApplyCouponRequest{BindingID: bindingID.String()}, nil)
	c.Params = gin.Params{{Key: "id", Value: shipmentID.String()}}
	h.Apply(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 500, data["discount"])
	shipment := data["shipment"].(map[string]any)
	assert.EqualValues(t, 1500, shipment["total"])
	assert.Equal(t, bindingID.String(), shipment["applied_coupon_binding_id"])
}

func TestApplyCoupon_Rejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coupons := mocks.NewMockCouponService(ctrl)
	coupons.EXPECT().ApplyCoupon(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrCouponAlreadyUsed())
	h := NewCouponHandler(coupons)

	c, w := newTestContext(t, http.MethodPost, "/", dto.ApplyCouponRequest{BindingID: uuid.NewString()}, nil)
	c.Params = gin.Params{{Key: "id", Value: uuid.NewString()}}
	h.Apply(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CPN_001", errorCode(t, w))
}

func TestApplyCoupon_BadShipmentID(t *testing.T) {
	h := NewCouponHandler(nil)

	c, w := newTestContext(t, http.MethodPost, "/", dto.ApplyCouponRequest{BindingID: uuid.NewString()}, nil)
	c.Params = gin.Params{{Key: "id", Value: "x"}}
	h.Apply(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRemoveCoupon(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coupons := mocks.NewMockCouponService(ctrl)
	h := NewCouponHandler(coupons)

	shipmentID, bindingID := uuid.New(), uuid.New()
	coupons.EXPECT().RemoveCoupon(gomock.Any(), shipmentID, bindingID, int64(2000)).
		Return(&domain.Shipment{ID: shipmentID, Total: 2000, Currency: "CNY"}, nil)

	total := int64(2000)
	c, w := newTestContext(t, http.MethodDelete, "/", dto.RemoveCouponRequest{BindingID: bindingID.String(), OriginalTotal: &total}, nil)
	c.Params = gin.Params{{Key: "id", Value: shipmentID.String()}}
	h.Remove(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.EqualValues(t, 2000, data["total"])
	assert.NotContains(t, data, "applied_coupon_binding_id")

	// original_total is required
	c, w = newTestContext(t, http.MethodDelete, "/", dto.RemoveCouponRequest{BindingID: bindingID.String()}, nil)
	c.Params = gin.Params{{Key: "id", Value: shipmentID.String()}}
	h.Remove(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateCoupon(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coupons := mocks.NewMockCouponService(ctrl)
	h := NewCouponHandler(coupons)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pct, maxDiscount := "12.5", int64(1000)
	coupons.EXPECT().CreateCoupon(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, c *domain.Coupon) (*domain.Coupon, error) {
			assert.Equal(t, "SHIP12", c.Code)
			assert.Equal(t, domain.CouponTypeShipping, c.Type)
			assert.True(t, c.DiscountPercentage.Valid)
			assert.True(t, c.DiscountPercentage.Decimal.Equal(decimal.RequireFromString("12.5")))
			assert.True(t, c.IsActive, "coupons are active unless stated otherwise")
			c.ID = uuid.New()
			return c, nil
		})

	c, w := newTestContext(t, http.MethodPost, "/", dto.CreateCouponRequest{
		Code: "SHIP12", Type: "SHIPPING", DiscountPercentage: &pct, MaxDiscountValue: &maxDiscount,
		ValidFrom: from, ValidTo: from.AddDate(0, 1, 0),
	}, nil)
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, "12.5", data["discount_percentage"])
	assert.Equal(t, "2026-01-01T00:00:00Z", data["valid_from"])
}

func TestCreateCoupon_InvalidType(t *testing.T) {
	h := NewCouponHandler(nil)

	from := time.Now()
	c, w := newTestContext(t, http.MethodPost, "/", dto.CreateCouponRequest{
		Code: "X", Type: "GIFT", ValidFrom: from, ValidTo: from.Add(time.Hour),
	}, nil)
	h.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGrantCoupon_CodeOrWelcome(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coupons := mocks.NewMockCouponService(ctrl)
	h := NewCouponHandler(coupons)

	userID := uuid.New()
	coupons.EXPECT().GrantCoupon(gomock.Any(), userID, "SHIP12").Return(&domain.CouponBinding{ID: uuid.New(), UserID: userID}, nil)
	coupons.EXPECT().GrantWelcomeCoupon(gomock.Any(), userID).Return(&domain.CouponBinding{ID: uuid.New(), UserID: userID}, nil)

	c, w := newTestContext(t, http.MethodPost, "/", dto.GrantCouponRequest{UserID: userID.String(), Code: "SHIP12"}, nil)
	h.Grant(c)
	assert.Equal(t, http.StatusCreated, w.Code)

	c, w = newTestContext(t, http.MethodPost, "/", dto.GrantCouponRequest{UserID: userID.String()}, nil)
	h.Grant(c)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, userID.String(), decodeData(t, w)["user_id"])
}

func TestListMine(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	coupons := mocks.NewMockCouponService(ctrl)
	h := NewCouponHandler(coupons)

	userID := uuid.New()
	amount := int64(300)
	coupons.EXPECT().ListUserCoupons(gomock.Any(), userID).Return([]domain.CouponBinding{
		{ID: uuid.New(), UserID: userID, Coupon: &domain.Coupon{ID: uuid.New(), Code: "WELCOME", Type: domain.CouponTypeShipping, DiscountAmount: &amount}},
	}, nil)

	c, w := newTestContext(t, http.MethodGet, "/", nil, &userID)
	h.ListMine(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []dto.CouponBindingResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "WELCOME", resp.Data[0].Coupon.Code)
}

// --- Exchange Rate Handler Tests ---

func TestExchangeRateHistory_DefaultsPair(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	rates := mocks.NewMockExchangeRateProvider(ctrl)
	h := NewExchangeRateHandler(rates, "BRL", "CNY")

	rates.EXPECT().History(gomock.Any(), "BRL", "CNY", 5).Return([]domain.ExchangeRateLog{
		{FromCurrency: "BRL", ToCurrency: "CNY", Rate: decimal.RequireFromString("1.155"), Source: "fixed", FetchedAt: time.Now()},
	}, nil)

	c, w := newTestContext(t, http.MethodGet, "/?limit=5", nil, nil)
	h.History(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []dto.ExchangeRateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "1.155", resp.Data[0].Rate)
}

// --- Health Tests ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(context.Context) error { return s.err }
func (s stubChecker) Name() string               { return s.name }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		checkers []ports.HealthChecker
		status   int
	}{
		{"all healthy", []ports.HealthChecker{stubChecker{name: "postgresql"}, stubChecker{name: "redis"}}, http.StatusOK},
		{"redis down", []ports.HealthChecker{stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("refused")}}, http.StatusServiceUnavailable},
		{"no dependencies", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newTestContext(t, http.MethodGet, "/health", nil, nil)
			HealthCheck(tt.checkers...)(c)

			assert.Equal(t, tt.status, w.Code)
			var resp struct {
				Status       string                     `json:"status"`
				Dependencies map[string]json.RawMessage `json:"dependencies"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Len(t, resp.Dependencies, len(tt.checkers))
		})
	}
}
