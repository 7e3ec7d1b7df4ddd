package handler

import (
	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/adapter/http/middleware"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponHandler serves coupon application and administration.
type CouponHandler struct {
	coupons ports.CouponService
}

// NewCouponHandler creates a new CouponHandler.
func NewCouponHandler(coupons ports.CouponService) *CouponHandler {
	return &CouponHandler{coupons: coupons}
}

// Apply handles POST /api/v1/shipments/:id/coupon.
func (h *CouponHandler) Apply(c *gin.Context) {
	shipmentID, ok := shipmentParam(c)
	if !ok {
		return
	}

	var req dto.ApplyCouponRequest
	if !bindJSON(c, &req, apperror.Validation) {
		return
	}

	app, err := h.coupons.ApplyCoupon(c.Request.Context(), shipmentID, uuid.MustParse(req.BindingID))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.CouponApplicationResponse{
		Shipment:      toShipmentResponse(app.Shipment),
		Binding:       toBindingResponse(app.Binding),
		OriginalTotal: app.OriginalTotal,
		Discount:      app.Discount,
	})
}

// Remove handles DELETE /api/v1/shipments/:id/coupon.
func (h *CouponHandler) Remove(c *gin.Context) {
	shipmentID, ok := shipmentParam(c)
	if !ok {
		return
	}

	var req dto.RemoveCouponRequest
	if !bindJSON(c, &req, apperror.Validation) {
		return
	}

	shipment, err := h.coupons.RemoveCoupon(c.Request.Context(), shipmentID, uuid.MustParse(req.BindingID), *req.OriginalTotal)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toShipmentResponse(shipment))
}

// Create handles POST /api/v1/admin/coupons.
func (h *CouponHandler) Create(c *gin.Context) {
	var req dto.CreateCouponRequest
	if !bindJSON(c, &req, apperror.Validation) {
		return
	}

	coupon := &domain.Coupon{
		Code:             req.Code,
		Type:             domain.CouponType(req.Type),
		DiscountAmount:   req.DiscountAmount,
		MaxDiscountValue: req.MaxDiscountValue,
		MinPurchaseValue: req.MinPurchaseValue,
		ValidFrom:        req.ValidFrom,
		ValidTo:          req.ValidTo,
		IsActive:         req.IsActive == nil || *req.IsActive,
	}
	if req.DiscountPercentage != nil {
		// Already checked by the decimal validator.
		coupon.DiscountPercentage = decimal.NewNullDecimal(decimal.RequireFromString(*req.DiscountPercentage))
	}

	created, err := h.coupons.CreateCoupon(c.Request.Context(), coupon)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toCouponResponse(created))
}

// Grant handles POST /api/v1/admin/coupons/grant.
func (h *CouponHandler) Grant(c *gin.Context) {
	var req dto.GrantCouponRequest
	if !bindJSON(c, &req, apperror.Validation) {
		return
	}
	userID := uuid.MustParse(req.UserID)

	var (
		binding *domain.CouponBinding
		err     error
	)
	if req.Code == "" {
		binding, err = h.coupons.GrantWelcomeCoupon(c.Request.Context(), userID)
	} else {
		binding, err = h.coupons.GrantCoupon(c.Request.Context(), userID, req.Code)
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toBindingResponse(binding))
}

// ListMine handles GET /api/v1/coupons.
func (h *CouponHandler) ListMine(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	bindings, err := h.coupons.ListUserCoupons(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.CouponBindingResponse, 0, len(bindings))
	for i := range bindings {
		items = append(items, toBindingResponse(&bindings[i]))
	}
	response.OK(c, items)
}

func shipmentParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid shipment id"))
		return uuid.Nil, false
	}
	return id, true
}
