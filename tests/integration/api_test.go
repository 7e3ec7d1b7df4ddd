package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/gateway"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/rates"
	memStorage "wallet-ledger/internal/adapter/storage/memory"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-jwt-secret-key-32bytes!!"
	testIssuer = "test-issuer"
)

// testApp builds the full stack on the memory store, the fake gateway and
// miniredis, exercising the real HTTP layer, middleware, services and Redis stores.
type testApp struct {
	server  *httptest.Server
	redis   *miniredis.Miniredis
	store   *memStorage.Store
	gateway *gateway.FakeGateway
	tokens  *service.JWTTokenService
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})

	log := logger.New("error", false)
	store := memStorage.NewStore()
	transactor := memStorage.NewTransactor(store)
	walletRepo := memStorage.NewWalletRepo(store)
	users := memStorage.NewUserRepo(store)

	fake := gateway.NewFakeGateway(0)
	rate := decimal.RequireFromString("1.155")

	walletStore := service.NewWalletStore(walletRepo, transactor, "CNY", log)
	ledger := service.NewLedger(memStorage.NewTransactionRepo(store))
	rateProvider := service.NewExchangeRateService(
		rates.NewFixedSource("BRL", "CNY", rate),
		redisStorage.NewRateCache(rdb),
		memStorage.NewExchangeRateRepo(store),
		"BRL", "CNY", time.Minute, log,
	)
	tokens := service.NewJWTTokenService(testSecret, testIssuer)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		DepositSvc: service.NewDepositService(users, walletStore, ledger, rateProvider, fake,
			redisStorage.NewAttemptGuard(rdb), transactor,
			service.DepositPolicy{
				ChargeCurrency: "BRL",
				MinimumDeposit: 100,
				FeePercent:     decimal.NewFromInt(5),
			}, log),
		DebitSvc: service.NewDebitService(users, walletStore, ledger, redisStorage.NewIdempotencyCache(rdb), transactor,
			service.RetryPolicy{
				MaxAttempts: 3,
				BaseBackoff: time.Millisecond,
				Multiplier:  2,
				MaxBackoff:  4 * time.Millisecond,
				Timeout:     5 * time.Second,
			}, log),
		RefundSvc:          service.NewRefundService(walletStore, ledger, transactor, log),
		CouponSvc:          service.NewCouponService(memStorage.NewCouponRepo(store), memStorage.NewShipmentRepo(store), transactor, "WELCOME", log),
		QuerySvc:           service.NewWalletQueryService(users, walletStore, walletRepo, ledger),
		RateProvider:       rateProvider,
		TokenSvc:           tokens,
		HealthCheckers:     []ports.HealthChecker{memStorage.NewHealthCheck(), redisStorage.NewHealthCheck(rdb)},
		ChargeCurrency:     "BRL",
		SettlementCurrency: "CNY",
		Logger:             log,
	})

	return &testApp{
		server:  httptest.NewServer(router),
		redis:   mr,
		store:   store,
		gateway: fake,
		tokens:  tokens,
	}
}

func (a *testApp) close() {
	a.server.Close()
	a.redis.Close()
}

// newUser registers a user in the directory and returns its id with a user token.
func (a *testApp) newUser(t *testing.T) (uuid.UUID, string) {
	t.Helper()
	id := uuid.New()
	a.store.PutUser(domain.User{ID: id, Email: id.String() + "@example.com", CreatedAt: time.Now().UTC()})
	return id, a.token(t, id, ports.RoleUser)
}

func (a *testApp) token(t *testing.T, subject uuid.UUID, role ports.Role) string {
	t.Helper()
	tok, _, err := a.tokens.Generate(subject, role, time.Hour)
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

type result struct {
	Outcome     string `json:"outcome"`
	Balance     int64  `json:"balance"`
	Transaction struct {
		ID               string  `json:"id"`
		TransactionType  string  `json:"transaction_type"`
		Amount           int64   `json:"amount"`
		ChargedAmount    int64   `json:"charged_amount"`
		ChargedCurrency  string  `json:"charged_currency"`
		Fee              *int64  `json:"fee"`
		ExternalChargeID *string `json:"external_charge_id"`
	} `json:"transaction"`
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func (a *testApp) deposit(t *testing.T, token string, amount int64) result {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]any{
		"amount": amount, "currency": "CNY", "payment_method": "pm_card_visa",
	})
	require.Equal(t, http.StatusCreated, status, "deposit failed: %s", env.ErrorCode)
	return decode[result](t, env)
}

func (a *testApp) balance(t *testing.T, token string) int64 {
	t.Helper()
	status, env := a.do(t, http.MethodGet, "/api/v1/wallets/balance", token, nil)
	require.Equal(t, http.StatusOK, status)
	return decode[struct {
		Balance int64 `json:"balance"`
	}](t, env).Balance
}

func debitBody(userID uuid.UUID, amount int64, orderRef string) map[string]any {
	return map[string]any{
		"user_id":   userID.String(),
		"amount":    amount,
		"currency":  "CNY",
		"reason":    "PRODUCT_PAYMENT",
		"order_ref": orderRef,
	}
}

// --- Integration Tests ---

func TestIntegration_HealthCheck(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	resp, err := http.Get(app.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_DepositConvertsAndChargesFee(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, token := app.newUser(t)

	res := app.deposit(t, token, 10000)

	assert.Equal(t, "SUCCESS", res.Outcome)
	assert.Equal(t, int64(9500), res.Balance)
	assert.Equal(t, "DEPOSIT", res.Transaction.TransactionType)
	assert.Equal(t, int64(9500), res.Transaction.Amount)
	// ceil(10000 / 1.155)
	assert.Equal(t, int64(8659), res.Transaction.ChargedAmount)
	assert.Equal(t, "BRL", res.Transaction.ChargedCurrency)
	require.NotNil(t, res.Transaction.Fee)
	assert.Equal(t, int64(500), *res.Transaction.Fee)
	require.NotNil(t, res.Transaction.ExternalChargeID)

	assert.Equal(t, int64(9500), app.balance(t, token))
}

func TestIntegration_DepositDeclinedLeavesBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, token := app.newUser(t)
	app.deposit(t, token, 1000)

	status, env := app.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]any{
		"amount": 5000, "currency": "CNY", "payment_method": gateway.FakeMethodDecline,
	})
	assert.NotEqual(t, http.StatusCreated, status)
	assert.Equal(t, "PAY_001", env.ErrorCode)
	assert.Equal(t, int64(950), app.balance(t, token))
}

func TestIntegration_DepositSameAttemptReplays(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, token := app.newUser(t)
	body := map[string]any{
		"amount": 2000, "currency": "CNY", "payment_method": "pm_card_visa",
		"attempt_id": uuid.NewString(),
	}

	status, env := app.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, body)
	require.Equal(t, http.StatusCreated, status)
	first := decode[result](t, env)

	status, env = app.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, body)
	require.Equal(t, http.StatusOK, status, env.ErrorCode)
	replay := decode[result](t, env)
	assert.Equal(t, "REPLAYED", replay.Outcome)
	assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)
	assert.Equal(t, int64(1900), app.balance(t, token))
}

func TestIntegration_DepositRetryAfterGatewayError(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	_, token := app.newUser(t)
	attemptID := uuid.NewString()

	status, env := app.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]any{
		"amount": 2000, "currency": "CNY", "payment_method": gateway.FakeMethodError, "attempt_id": attemptID,
	})
	require.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "PAY_002", env.ErrorCode)

	status, env = app.do(t, http.MethodPost, "/api/v1/wallets/deposit", token, map[string]any{
		"amount": 2000, "currency": "CNY", "payment_method": "pm_card_visa", "attempt_id": attemptID,
	})
	require.Equal(t, http.StatusCreated, status, env.ErrorCode)
	assert.Equal(t, "SUCCESS", decode[result](t, env).Outcome)
	assert.Equal(t, 2, app.gateway.Calls())
	assert.Equal(t, int64(1900), app.balance(t, token))
}

func TestIntegration_DebitReplayAndConflict(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	svc := app.token(t, uuid.New(), ports.RoleService)
	app.deposit(t, token, 10000)

	status, env := app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 3000, "ORDER-1"))
	require.Equal(t, http.StatusCreated, status)
	first := decode[result](t, env)
	assert.Equal(t, "SUCCESS", first.Outcome)
	assert.Equal(t, int64(6500), first.Balance)
	assert.Equal(t, "WITHDRAWAL_PRODUCT_PAYMENT", first.Transaction.TransactionType)

	status, env = app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 3000, "ORDER-1"))
	require.Equal(t, http.StatusOK, status)
	replay := decode[result](t, env)
	assert.Equal(t, "REPLAYED", replay.Outcome)
	assert.Equal(t, first.Transaction.ID, replay.Transaction.ID)

	status, env = app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 4000, "ORDER-1"))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "WAL_003", env.ErrorCode)

	assert.Equal(t, int64(6500), app.balance(t, token))
}

func TestIntegration_DebitReplayReportsCurrentBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	svc := app.token(t, uuid.New(), ports.RoleService)
	app.deposit(t, token, 10000)

	status, _ := app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 3000, "ORDER-1"))
	require.Equal(t, http.StatusCreated, status)
	status, _ = app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 2000, "ORDER-2"))
	require.Equal(t, http.StatusCreated, status)

	status, env := app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 3000, "ORDER-1"))
	require.Equal(t, http.StatusOK, status)
	replay := decode[result](t, env)
	assert.Equal(t, "REPLAYED", replay.Outcome)
	assert.Equal(t, int64(4500), replay.Balance)
	assert.Equal(t, app.balance(t, token), replay.Balance)
}

func TestIntegration_DebitInsufficientBalance(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	svc := app.token(t, uuid.New(), ports.RoleService)
	app.deposit(t, token, 1000)

	status, env := app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 951, "ORDER-2"))
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "WAL_001", env.ErrorCode)
	assert.Equal(t, int64(950), app.balance(t, token))
}

func TestIntegration_RefundRestoresBalanceOnce(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	svc := app.token(t, uuid.New(), ports.RoleService)
	app.deposit(t, token, 10000)

	status, _ := app.do(t, http.MethodPost, "/api/v1/internal/debits", svc, debitBody(userID, 2500, "ORDER-3"))
	require.Equal(t, http.StatusCreated, status)

	refund := map[string]any{"user_id": userID.String(), "order_ref": "ORDER-3"}
	status, env := app.do(t, http.MethodPost, "/api/v1/internal/refunds", svc, refund)
	require.Equal(t, http.StatusCreated, status)
	res := decode[result](t, env)
	assert.Equal(t, "REFUND", res.Transaction.TransactionType)
	assert.Equal(t, int64(9500), res.Balance)

	status, env = app.do(t, http.MethodPost, "/api/v1/internal/refunds", svc, refund)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "WAL_004", env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/internal/transactions?order_ref=ORDER-3", svc, nil)
	require.Equal(t, http.StatusOK, status)
	entries := decode[[]struct {
		TransactionType string `json:"transaction_type"`
	}](t, env)
	require.Len(t, entries, 2)
	assert.Equal(t, "WITHDRAWAL_PRODUCT_PAYMENT", entries[0].TransactionType)
	assert.Equal(t, "REFUND", entries[1].TransactionType)
}

func TestIntegration_UserDeletableOnlyWhenEmpty(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	svc := app.token(t, uuid.New(), ports.RoleService)
	path := fmt.Sprintf("/api/v1/internal/users/%s/deletable", userID)

	status, _ := app.do(t, http.MethodGet, path, svc, nil)
	assert.Equal(t, http.StatusOK, status)

	app.deposit(t, token, 1000)

	status, env := app.do(t, http.MethodGet, path, svc, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "WAL_002", env.ErrorCode)
}

func TestIntegration_CouponLifecycle(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	svc := app.token(t, uuid.New(), ports.RoleService)
	admin := app.token(t, uuid.New(), ports.RoleAdmin)

	shipmentID := uuid.New()
	app.store.PutShipment(domain.Shipment{ID: shipmentID, UserID: userID, Total: 5000, Currency: "CNY", UpdatedAt: time.Now().UTC()})

	now := time.Now().UTC()
	status, env := app.do(t, http.MethodPost, "/api/v1/admin/coupons", admin, map[string]any{
		"code":            "SHIP10",
		"type":            "SHIPPING",
		"discount_amount": 1000,
		"valid_from":      now.Add(-time.Hour),
		"valid_to":        now.Add(24 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, status, env.ErrorCode)

	status, env = app.do(t, http.MethodPost, "/api/v1/admin/coupons/grant", admin, map[string]any{
		"user_id": userID.String(), "code": "SHIP10",
	})
	require.Equal(t, http.StatusCreated, status, env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/coupons", token, nil)
	require.Equal(t, http.StatusOK, status)
	bindings := decode[[]struct {
		ID   string `json:"id"`
		Used bool   `json:"used"`
	}](t, env)
	require.Len(t, bindings, 1)
	assert.False(t, bindings[0].Used)
	bindingID := bindings[0].ID

	path := fmt.Sprintf("/api/v1/shipments/%s/coupon", shipmentID)
	status, env = app.do(t, http.MethodPost, path, svc, map[string]any{"binding_id": bindingID})
	require.Equal(t, http.StatusOK, status, env.ErrorCode)
	applied := decode[struct {
		OriginalTotal int64 `json:"original_total"`
		Discount      int64 `json:"discount"`
		Shipment      struct {
			Total int64 `json:"total"`
		} `json:"shipment"`
	}](t, env)
	assert.Equal(t, int64(5000), applied.OriginalTotal)
	assert.Equal(t, int64(1000), applied.Discount)
	assert.Equal(t, int64(4000), applied.Shipment.Total)

	status, env = app.do(t, http.MethodPost, path, svc, map[string]any{"binding_id": bindingID})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CPN_001", env.ErrorCode)

	status, env = app.do(t, http.MethodDelete, path, svc, map[string]any{"binding_id": bindingID, "original_total": 5000})
	require.Equal(t, http.StatusOK, status, env.ErrorCode)
	restored := decode[struct {
		Total int64 `json:"total"`
	}](t, env)
	assert.Equal(t, int64(5000), restored.Total)
}

func TestIntegration_RoleGating(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)

	status, env := app.do(t, http.MethodPost, "/api/v1/internal/debits", token, debitBody(userID, 100, "ORDER-X"))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "AUTH_002", env.ErrorCode)

	status, env = app.do(t, http.MethodGet, "/api/v1/wallets/balance", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "AUTH_001", env.ErrorCode)
}

func TestIntegration_BalanceIsReadOnly(t *testing.T) {
	app := newTestApp(t)
	defer app.close()

	userID, token := app.newUser(t)
	assert.Equal(t, int64(0), app.balance(t, token))

	wallet, err := memStorage.NewWalletRepo(app.store).GetByUser(context.Background(), userID, "CNY")
	require.NoError(t, err)
	assert.Nil(t, wallet)

	stranger := app.token(t, uuid.New(), ports.RoleUser)
	status, env := app.do(t, http.MethodGet, "/api/v1/wallets/balance", stranger, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_001", env.ErrorCode)
}
