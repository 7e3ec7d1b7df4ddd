package handler

import (
	"errors"
	"net/http"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes and sanitizes the request body into req. Oversized bodies map
// to REQ_004, everything else to the error built by invalid.
func bindJSON(c *gin.Context, req any, invalid func(string) *apperror.AppError) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return false
		}
		response.Error(c, invalid(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	resp := dto.TransactionResponse{
		ID:                      t.ID.String(),
		TransactionType:         string(t.TransactionType),
		Amount:                  t.Amount,
		AmountDisplay:           domain.FormatMinor(t.Amount),
		Currency:                t.Currency,
		OrderRef:                t.RelatedOrderRef,
		ShipmentRef:             t.RelatedShipmentRef,
		ChargedAmount:           t.ChargedAmount,
		ChargedCurrency:         t.ChargedCurrency,
		Fee:                     t.Fee,
		OriginalAmountDeposited: t.OriginalAmountDeposited,
		OriginalCurrency:        t.OriginalCurrency,
		ExternalChargeID:        t.ExternalChargeID,
		CreatedAt:               formatTime(t.CreatedAt),
	}
	if t.ExchangeRate.Valid {
		rate := t.ExchangeRate.Decimal.String()
		resp.ExchangeRate = &rate
	}
	return resp
}

func toTransactionList(txns []domain.Transaction) []dto.TransactionResponse {
	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}
	return items
}

func toResultResponse(r *ports.TransactionResult) dto.TransactionResultResponse {
	resp := dto.TransactionResultResponse{
		Outcome:        string(r.Outcome),
		Balance:        r.Balance,
		BalanceDisplay: domain.FormatMinor(r.Balance),
	}
	if r.Transaction != nil {
		resp.Transaction = toTransactionResponse(r.Transaction)
	}
	return resp
}

func toCouponResponse(c *domain.Coupon) *dto.CouponResponse {
	if c == nil {
		return nil
	}
	resp := &dto.CouponResponse{
		ID:               c.ID.String(),
		Code:             c.Code,
		Type:             string(c.Type),
		DiscountAmount:   c.DiscountAmount,
		MaxDiscountValue: c.MaxDiscountValue,
		MinPurchaseValue: c.MinPurchaseValue,
		ValidFrom:        formatTime(c.ValidFrom),
		ValidTo:          formatTime(c.ValidTo),
		IsActive:         c.IsActive,
	}
	if c.DiscountPercentage.Valid {
		pct := c.DiscountPercentage.Decimal.String()
		resp.DiscountPercentage = &pct
	}
	return resp
}

func toBindingResponse(b *domain.CouponBinding) dto.CouponBindingResponse {
	resp := dto.CouponBindingResponse{
		ID:     b.ID.String(),
		UserID: b.UserID.String(),
		Used:   b.Used,
		UsedAt: formatTimePtr(b.UsedAt),
		Coupon: toCouponResponse(b.Coupon),
	}
	if b.ShipmentID != nil {
		id := b.ShipmentID.String()
		resp.ShipmentID = &id
	}
	return resp
}

func toShipmentResponse(s *domain.Shipment) dto.ShipmentResponse {
	resp := dto.ShipmentResponse{
		ID:           s.ID.String(),
		Total:        s.Total,
		TotalDisplay: domain.FormatMinor(s.Total),
		Currency:     s.Currency,
	}
	if s.AppliedCouponBindingID != nil {
		id := s.AppliedCouponBindingID.String()
		resp.AppliedCouponBindingID = &id
	}
	return resp
}
