package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestSetupRouter_RoleGating(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	tokens := mocks.NewMockTokenService(ctrl)
	queries := mocks.NewMockWalletQueryService(ctrl)
	userID := uuid.New()

	tokens.EXPECT().Validate("user-token").Return(&ports.TokenClaims{Subject: userID, Role: ports.RoleUser}, nil).AnyTimes()
	tokens.EXPECT().Validate("service-token").Return(&ports.TokenClaims{Subject: uuid.New(), Role: ports.RoleService}, nil).AnyTimes()
	queries.EXPECT().GetBalance(gomock.Any(), userID).Return(&domain.Wallet{UserID: userID, Currency: "CNY"}, nil)

	router := SetupRouter(RouterDeps{
		QuerySvc: queries,
		TokenSvc: tokens,
		Logger:   zerolog.Nop(),
	})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
	}{
		{"owner reads balance", http.MethodGet, "/api/v1/wallets/balance", "user-token", http.StatusOK},
		{"service cannot read a user's balance", http.MethodGet, "/api/v1/wallets/balance", "service-token", http.StatusForbidden},
		{"user cannot debit", http.MethodPost, "/api/v1/internal/debits", "user-token", http.StatusForbidden},
		{"user cannot apply coupons", http.MethodPost, "/api/v1/shipments/" + uuid.NewString() + "/coupon", "user-token", http.StatusForbidden},
		{"service cannot administer coupons", http.MethodPost, "/api/v1/admin/coupons", "service-token", http.StatusForbidden},
		{"no token", http.MethodGet, "/api/v1/wallets/balance", "", http.StatusUnauthorized},
		{"health is public", http.MethodGet, "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestSwaggerSpec_NotLoaded(t *testing.T) {
	SetSwaggerSpec(nil)
	router := SetupRouter(RouterDeps{Logger: zerolog.Nop()})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	SetSwaggerSpec([]byte("openapi: 3.0.3"))
	defer SetSwaggerSpec(nil)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/spec", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")
}
