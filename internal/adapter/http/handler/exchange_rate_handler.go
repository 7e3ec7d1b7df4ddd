package handler

import (
	"strings"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// ExchangeRateHandler exposes the rate log to administrators.
type ExchangeRateHandler struct {
	rates       ports.ExchangeRateProvider
	defaultFrom string
	defaultTo   string
}

// NewExchangeRateHandler creates a handler whose pair defaults to from->to.
func NewExchangeRateHandler(rates ports.ExchangeRateProvider, from, to string) *ExchangeRateHandler {
	return &ExchangeRateHandler{rates: rates, defaultFrom: from, defaultTo: to}
}

// History handles GET /api/v1/admin/exchange-rates?from=&to=&limit=.
func (h *ExchangeRateHandler) History(c *gin.Context) {
	from := strings.ToUpper(c.DefaultQuery("from", h.defaultFrom))
	to := strings.ToUpper(c.DefaultQuery("to", h.defaultTo))
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		response.Error(c, err)
		return
	}

	logs, err := h.rates.History(c.Request.Context(), from, to, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.ExchangeRateResponse, 0, len(logs))
	for _, l := range logs {
		items = append(items, dto.ExchangeRateResponse{
			FromCurrency: l.FromCurrency,
			ToCurrency:   l.ToCurrency,
			Rate:         l.Rate.String(),
			Source:       l.Source,
			FetchedAt:    formatTime(l.FetchedAt),
		})
	}
	response.OK(c, items)
}
