package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LedgerHandler serves the service-to-service ledger endpoints.
type LedgerHandler struct {
	debits  ports.DebitService
	refunds ports.RefundService
	queries ports.WalletQueryService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(debits ports.DebitService, refunds ports.RefundService, queries ports.WalletQueryService) *LedgerHandler {
	return &LedgerHandler{debits: debits, refunds: refunds, queries: queries}
}

// Debit handles POST /api/v1/internal/debits.
// A replayed debit answers 200 instead of 201 so callers can tell the two apart.
func (h *LedgerHandler) Debit(c *gin.Context) {
	var req dto.DebitRequest
	if !bindJSON(c, &req, apperror.ErrInvalidDebitRequest) {
		return
	}

	result, err := h.debits.Debit(c.Request.Context(), ports.DebitRequest{
		UserID:      uuid.MustParse(req.UserID),
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reason:      domain.DebitReason(req.Reason),
		OrderRef:    req.OrderRef,
		ShipmentRef: req.ShipmentRef,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	writeResult(c, result)
}

// Refund handles POST /api/v1/internal/refunds.
func (h *LedgerHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	if !bindJSON(c, &req, apperror.Validation) {
		return
	}

	result, err := h.refunds.Refund(c.Request.Context(), ports.RefundRequest{
		UserID:      uuid.MustParse(req.UserID),
		OrderRef:    req.OrderRef,
		ShipmentRef: req.ShipmentRef,
		Amount:      req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	writeResult(c, result)
}

// ListByReference handles GET /api/v1/internal/transactions?order_ref=|shipment_ref=.
func (h *LedgerHandler) ListByReference(c *gin.Context) {
	orderRef, shipmentRef := c.Query("order_ref"), c.Query("shipment_ref")
	ref, ok := domain.NewReference(&orderRef, &shipmentRef)
	if !ok {
		response.Error(c, apperror.Validation("exactly one of order_ref and shipment_ref is required"))
		return
	}

	txns, err := h.queries.ListByReference(c.Request.Context(), ref)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionList(txns))
}

// CheckDeletable handles GET /api/v1/internal/users/:id/deletable.
// A wallet still holding funds answers WAL_002.
func (h *LedgerHandler) CheckDeletable(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid user id"))
		return
	}

	if err := h.queries.EnsureUserDeletable(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DeletableResponse{UserID: userID.String(), Deletable: true})
}

func writeResult(c *gin.Context, result *ports.TransactionResult) {
	if result.Outcome == ports.OutcomeReplayed {
		response.OK(c, toResultResponse(result))
		return
	}
	response.Created(c, toResultResponse(result))
}
