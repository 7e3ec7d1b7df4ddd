package handler

import (
	"wallet-ledger/internal/adapter/http/middleware"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// maxRequestBody caps every JSON body; the largest request is a coupon definition.
const maxRequestBody = 64 << 10

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	DepositSvc     ports.DepositService
	DebitSvc       ports.DebitService
	RefundSvc      ports.RefundService
	CouponSvc      ports.CouponService
	QuerySvc       ports.WalletQueryService
	RateProvider   ports.ExchangeRateProvider
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	// Default pair for the rate history endpoint.
	ChargeCurrency     string
	SettlementCurrency string
	Logger             zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(maxRequestBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimitStore == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	serviceOnly := middleware.RequireRole(ports.RoleService)
	adminOnly := middleware.RequireRole(ports.RoleAdmin)
	owner := middleware.RequireRole(ports.RoleUser)

	walletHandler := NewWalletHandler(deps.DepositSvc, deps.QuerySvc)
	ledgerHandler := NewLedgerHandler(deps.DebitSvc, deps.RefundSvc, deps.QuerySvc)
	couponHandler := NewCouponHandler(deps.CouponSvc)
	rateHandler := NewExchangeRateHandler(deps.RateProvider, deps.ChargeCurrency, deps.SettlementCurrency)

	v1 := r.Group("/api/v1", jwtAuth)

	// --- Wallet owner ---
	wallets := v1.Group("/wallets", owner)
	{
		wallets.GET("/balance", rl(middleware.GroupWalletRead), walletHandler.GetBalance)
		wallets.GET("/transactions", rl(middleware.GroupWalletRead), walletHandler.ListTransactions)
		wallets.POST("/deposit", rl(middleware.GroupWalletDeposit), walletHandler.Deposit)
	}
	v1.GET("/coupons", owner, rl(middleware.GroupWalletRead), couponHandler.ListMine)

	// --- Service-to-service ---
	internal := v1.Group("/internal", serviceOnly)
	{
		internal.POST("/debits", rl(middleware.GroupLedgerWrite), ledgerHandler.Debit)
		internal.POST("/refunds", rl(middleware.GroupLedgerWrite), ledgerHandler.Refund)
		internal.GET("/transactions", rl(middleware.GroupLedgerRead), ledgerHandler.ListByReference)
		internal.GET("/users/:id/deletable", rl(middleware.GroupLedgerRead), ledgerHandler.CheckDeletable)
	}

	shipments := v1.Group("/shipments", serviceOnly)
	{
		shipments.POST("/:id/coupon", rl(middleware.GroupCoupon), couponHandler.Apply)
		shipments.DELETE("/:id/coupon", rl(middleware.GroupCoupon), couponHandler.Remove)
	}

	// --- Administration ---
	admin := v1.Group("/admin", adminOnly, rl(middleware.GroupAdmin))
	{
		admin.POST("/coupons", couponHandler.Create)
		admin.POST("/coupons/grant", couponHandler.Grant)
		admin.GET("/exchange-rates", rateHandler.History)
	}

	return r
}
