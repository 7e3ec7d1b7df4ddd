package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by code so callers can use errors.Is against a constructor result.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Code extracts the AppError code from err, or "" if err is not an AppError.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// ---- Request validation (REQ) ----

const (
	CodeInvalidRequest        = "REQ_001"
	CodeInvalidDepositRequest = "REQ_002"
	CodeInvalidDebitRequest   = "REQ_003"
	CodePayloadTooLarge       = "REQ_004"
)

func ErrInvalidRequest(message string) *AppError {
	return New(CodeInvalidRequest, message, http.StatusBadRequest)
}

func ErrInvalidDepositRequest(message string) *AppError {
	return New(CodeInvalidDepositRequest, message, http.StatusBadRequest)
}

func ErrInvalidDebitRequest(message string) *AppError {
	return New(CodeInvalidDebitRequest, message, http.StatusBadRequest)
}

func ErrPayloadTooLarge() *AppError {
	return New(CodePayloadTooLarge, "Request body is too large", http.StatusRequestEntityTooLarge)
}

// Validation returns a REQ_001 validation error.
func Validation(message string) *AppError {
	return ErrInvalidRequest(message)
}

// ---- Currency & exchange (CUR) ----

const (
	CodeUnsupportedCurrency     = "CUR_001"
	CodeUnsupportedCurrencyPair = "CUR_002"
	CodeInvalidExchangeRate     = "CUR_003"
)

func ErrUnsupportedCurrency(currency string) *AppError {
	return New(CodeUnsupportedCurrency, fmt.Sprintf("Currency %q is not supported", currency), http.StatusUnprocessableEntity)
}

func ErrUnsupportedCurrencyPair(from, to string) *AppError {
	return New(CodeUnsupportedCurrencyPair, fmt.Sprintf("Currency pair %s->%s is not supported", from, to), http.StatusUnprocessableEntity)
}

func ErrInvalidExchangeRate(err error) *AppError {
	return Wrap(CodeInvalidExchangeRate, "Exchange rate provider returned an invalid rate", http.StatusBadGateway, err)
}

// ---- Wallet & ledger (WAL) ----

const (
	CodeInsufficientBalance   = "WAL_001"
	CodeWalletNotEmpty        = "WAL_002"
	CodeReferenceConflict     = "WAL_003"
	CodeDuplicateRefund       = "WAL_004"
	CodeRefundExceedsOriginal = "WAL_005"
)

func ErrInsufficientBalance() *AppError {
	return New(CodeInsufficientBalance, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletNotEmpty() *AppError {
	return New(CodeWalletNotEmpty, "Wallet still holds a balance", http.StatusConflict)
}

func ErrReferenceConflict() *AppError {
	return New(CodeReferenceConflict, "Reference was already debited with a different amount", http.StatusConflict)
}

func ErrDuplicateRefund() *AppError {
	return New(CodeDuplicateRefund, "Reference was already refunded", http.StatusConflict)
}

func ErrRefundExceedsOriginal() *AppError {
	return New(CodeRefundExceedsOriginal, "Refund amount exceeds the original debit", http.StatusBadRequest)
}

// ---- Payment processing (PAY) ----

const (
	CodePaymentDeclined         = "PAY_001"
	CodePaymentGatewayError     = "PAY_002"
	CodePaymentProcessingFailed = "PAY_003"
	CodeDepositPartiallyFailed  = "PAY_004"
	CodeDepositInProgress       = "PAY_005"
)

func ErrPaymentDeclined(reason string) *AppError {
	msg := "Payment was declined"
	if reason != "" {
		msg += ": " + reason
	}
	return New(CodePaymentDeclined, msg, http.StatusPaymentRequired)
}

func ErrPaymentGateway(err error) *AppError {
	return Wrap(CodePaymentGatewayError, "Payment gateway failure", http.StatusBadGateway, err)
}

func ErrPaymentProcessingFailed(err error) *AppError {
	return Wrap(CodePaymentProcessingFailed, "Payment processing failed after retries", http.StatusServiceUnavailable, err)
}

func ErrDepositPartiallyFailed(chargeID string, err error) *AppError {
	return Wrap(CodeDepositPartiallyFailed,
		fmt.Sprintf("Charge %s succeeded but the wallet was not credited; pending reconciliation", chargeID),
		http.StatusInternalServerError, err)
}

func ErrDepositInProgress() *AppError {
	return New(CodeDepositInProgress, "Deposit attempt is already being processed", http.StatusConflict)
}

// ---- Coupons (CPN) ----

const (
	CodeCouponAlreadyUsed    = "CPN_001"
	CodeCouponNotValid       = "CPN_002"
	CodeCouponTypeMismatch   = "CPN_003"
	CodeCouponMinimumNotMet  = "CPN_004"
	CodeCouponHasNoDiscount  = "CPN_005"
	CodeCouponAlreadyApplied = "CPN_006"
	CodeCouponNotApplied     = "CPN_007"
	CodeCouponNotOwned       = "CPN_008"
	CodeCouponCodeExists     = "CPN_009"
)

func ErrCouponAlreadyUsed() *AppError {
	return New(CodeCouponAlreadyUsed, "Coupon has already been used", http.StatusConflict)
}

func ErrCouponNotValid() *AppError {
	return New(CodeCouponNotValid, "Coupon is inactive or outside its validity window", http.StatusUnprocessableEntity)
}

func ErrCouponTypeMismatch() *AppError {
	return New(CodeCouponTypeMismatch, "Coupon does not apply to this purchase type", http.StatusUnprocessableEntity)
}

func ErrCouponMinimumNotMet() *AppError {
	return New(CodeCouponMinimumNotMet, "Purchase total is below the coupon minimum", http.StatusUnprocessableEntity)
}

func ErrCouponHasNoDiscount() *AppError {
	return New(CodeCouponHasNoDiscount, "Coupon carries no discount", http.StatusUnprocessableEntity)
}

func ErrCouponAlreadyApplied() *AppError {
	return New(CodeCouponAlreadyApplied, "Shipment already has a coupon applied", http.StatusConflict)
}

func ErrCouponNotApplied() *AppError {
	return New(CodeCouponNotApplied, "Coupon is not applied to this shipment", http.StatusConflict)
}

func ErrCouponNotOwned() *AppError {
	return New(CodeCouponNotOwned, "Coupon does not belong to the shipment owner", http.StatusForbidden)
}

func ErrCouponCodeExists() *AppError {
	return New(CodeCouponCodeExists, "Coupon code already exists", http.StatusConflict)
}

// ---- Lookups (NOT) ----

const CodeNotFound = "NOT_001"

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrForbidden() *AppError {
	return New("AUTH_002", "Caller is not allowed to perform this operation", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

const CodeInternal = "SYS_001"

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// nonRetryable lists codes whose outcome cannot change by trying again.
var nonRetryable = map[string]bool{
	CodeInvalidRequest:          true,
	CodeInvalidDepositRequest:   true,
	CodeInvalidDebitRequest:     true,
	CodePayloadTooLarge:         true,
	CodeUnsupportedCurrency:     true,
	CodeUnsupportedCurrencyPair: true,
	CodeInvalidExchangeRate:     true,
	CodeInsufficientBalance:     true,
	CodeWalletNotEmpty:          true,
	CodeReferenceConflict:       true,
	CodeDuplicateRefund:         true,
	CodeRefundExceedsOriginal:   true,
	CodePaymentDeclined:         true,
	CodeDepositInProgress:       true,
	CodeCouponAlreadyUsed:       true,
	CodeCouponNotValid:          true,
	CodeCouponTypeMismatch:      true,
	CodeCouponMinimumNotMet:     true,
	CodeCouponHasNoDiscount:     true,
	CodeCouponAlreadyApplied:    true,
	CodeCouponNotApplied:        true,
	CodeCouponNotOwned:          true,
	CodeCouponCodeExists:        true,
	CodeNotFound:                true,
}

// IsRetryable reports whether err is a transient fault worth another attempt.
// Context cancellation and every domain/validation code are excluded.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !nonRetryable[Code(err)]
}
