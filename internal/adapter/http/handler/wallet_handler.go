package handler

import (
	"strconv"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletHandler serves the wallet owner's endpoints.
type WalletHandler struct {
	deposits ports.DepositService
	queries  ports.WalletQueryService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(deposits ports.DepositService, queries ports.WalletQueryService) *WalletHandler {
	return &WalletHandler{deposits: deposits, queries: queries}
}

// GetBalance handles GET /api/v1/wallets/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	wallet, err := h.queries.GetBalance(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		Balance:        wallet.Balance,
		BalanceDisplay: domain.FormatMinor(wallet.Balance),
		Currency:       wallet.Currency,
	})
}

// ListTransactions handles GET /api/v1/wallets/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	params, err := parseListParams(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	txns, total, err := h.queries.ListTransactions(c.Request.Context(), userID, params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Page(c, toTransactionList(txns), total, params.Page, params.PageSize)
}

// Deposit handles POST /api/v1/wallets/deposit.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.DepositRequest
	if !bindJSON(c, &req, apperror.ErrInvalidDepositRequest) {
		return
	}

	// Invalid ids are rejected by binding; empty means a fresh attempt.
	var attemptID uuid.UUID
	if req.AttemptID != "" {
		attemptID = uuid.MustParse(req.AttemptID)
	}

	result, err := h.deposits.Deposit(c.Request.Context(), ports.DepositRequest{
		UserID:           userID,
		TargetAmount:     req.Amount,
		TargetCurrency:   req.Currency,
		PaymentMethodRef: req.PaymentMethod,
		AttemptID:        attemptID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	writeResult(c, result)
}

func parseListParams(c *gin.Context) (ports.TransactionListParams, error) {
	var params ports.TransactionListParams

	page, err := queryInt(c, "page", 1)
	if err != nil {
		return params, err
	}
	pageSize, err := queryInt(c, "page_size", defaultPageSize)
	if err != nil {
		return params, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	params.Page = page
	params.PageSize = pageSize

	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	for key, dst := range map[string]**int64{"from": &params.From, "to": &params.To} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return params, apperror.Validation(key + " must be a unix timestamp")
		}
		*dst = &v
	}
	return params, nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(key + " must be an integer")
	}
	return v, nil
}
