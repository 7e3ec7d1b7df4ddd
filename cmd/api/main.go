package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/adapter/gateway"
	httpHandler "wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/rates"
	memStorage "wallet-ledger/internal/adapter/storage/memory"
	pgStorage "wallet-ledger/internal/adapter/storage/postgres"
	redisStorage "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/service"
	"wallet-ledger/migrations"
	"wallet-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// storage bundles the repositories of whichever driver is configured.
type storage struct {
	users      ports.UserDirectory
	wallets    ports.WalletRepository
	txns       ports.TransactionRepository
	rateLogs   ports.ExchangeRateRepository
	coupons    ports.CouponRepository
	shipments  ports.ShipmentRepository
	transactor ports.DBTransactor
	health     ports.HealthChecker
	close      func()
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	gin.SetMode(cfg.Server.Mode)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Str("storage", cfg.Storage.Driver).
		Str("gateway", cfg.Gateway.Provider).
		Msg("Starting wallet ledger")

	if cfg.JWT.Secret == "" {
		log.Fatal().Msg("jwt.secret is required")
	}
	if cfg.Gateway.Provider == "stripe" && cfg.Gateway.StripeSecretKey == "" {
		log.Fatal().Msg("gateway.stripe_secret_key is required for the stripe provider")
	}

	ctx := context.Background()

	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.close()

	healthCheckers := []ports.HealthChecker{store.health}

	// Redis backs caches and rate limiting only; the ledger stays correct without it.
	var (
		rdb            *goredis.Client
		rateCache      ports.RateCache
		idempCache     ports.IdempotencyCache
		attemptGuard   ports.AttemptGuard
		rateLimitStore *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err = redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
		defer rdb.Close()

		rateCache = redisStorage.NewRateCache(rdb)
		idempCache = redisStorage.NewIdempotencyCache(rdb)
		attemptGuard = redisStorage.NewAttemptGuard(rdb)
		if cfg.RateLimit.Enabled {
			rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		}
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	// Both parsed once already by config.Load.
	fee, _ := cfg.Ledger.Fee()
	rate, _ := cfg.Exchange.Rate()
	settlement := cfg.Ledger.SettlementCurrency
	charge := cfg.Ledger.ChargeCurrency

	paymentGateway := gateway.NewCircuitBreaker(newGateway(cfg.Gateway, log), gateway.BreakerConfig{
		FailureThreshold: cfg.Gateway.BreakerThreshold,
		OpenTimeout:      cfg.Gateway.BreakerOpenFor,
	})

	walletStore := service.NewWalletStore(store.wallets, store.transactor, settlement, log)
	ledger := service.NewLedger(store.txns)
	rateProvider := service.NewExchangeRateService(
		rates.NewFixedSource(charge, settlement, rate),
		rateCache,
		store.rateLogs,
		charge, settlement,
		cfg.Exchange.CacheTTL,
		log,
	)

	depositSvc := service.NewDepositService(
		store.users, walletStore, ledger, rateProvider, paymentGateway, attemptGuard, store.transactor,
		service.DepositPolicy{
			ChargeCurrency: charge,
			MinimumDeposit: cfg.Ledger.MinimumDeposit,
			FeePercent:     fee,
		},
		log,
	)
	debitSvc := service.NewDebitService(
		store.users, walletStore, ledger, idempCache, store.transactor,
		service.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseBackoff: cfg.Retry.BaseBackoff,
			Multiplier:  cfg.Retry.Multiplier,
			MaxBackoff:  cfg.Retry.MaxBackoff,
			Timeout:     cfg.Retry.Timeout,
		},
		log,
	)
	refundSvc := service.NewRefundService(walletStore, ledger, store.transactor, log)
	couponSvc := service.NewCouponService(store.coupons, store.shipments, store.transactor, cfg.Ledger.WelcomeCouponCode, log)
	querySvc := service.NewWalletQueryService(store.users, walletStore, store.wallets, ledger)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	// Load OpenAPI spec for Swagger UI
	if specBytes, err := os.ReadFile("docs/api/openapi.yaml"); err == nil {
		httpHandler.SetSwaggerSpec(specBytes)
		log.Info().Msg("OpenAPI spec loaded for Swagger UI at /swagger")
	} else {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		DepositSvc:         depositSvc,
		DebitSvc:           debitSvc,
		RefundSvc:          refundSvc,
		CouponSvc:          couponSvc,
		QuerySvc:           querySvc,
		RateProvider:       rateProvider,
		TokenSvc:           tokenSvc,
		RateLimitStore:     rateLimitStore,
		HealthCheckers:     healthCheckers,
		ChargeCurrency:     charge,
		SettlementCurrency: settlement,
		Logger:             log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	// Longer than the debit retry budget so in-flight debits can finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Retry.Timeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if cfg.Storage.Driver == "memory" {
		store := memStorage.NewStore()
		if cfg.Storage.SeedFile != "" {
			f, err := os.Open(cfg.Storage.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()
			users, shipments, err := store.LoadSeed(f)
			if err != nil {
				return nil, err
			}
			log.Info().Int("users", users).Int("shipments", shipments).Msg("memory store seeded")
		}
		log.Warn().Msg("Using in-memory storage; balances are lost on restart")
		return &storage{
			users:      memStorage.NewUserRepo(store),
			wallets:    memStorage.NewWalletRepo(store),
			txns:       memStorage.NewTransactionRepo(store),
			rateLogs:   memStorage.NewExchangeRateRepo(store),
			coupons:    memStorage.NewCouponRepo(store),
			shipments:  memStorage.NewShipmentRepo(store),
			transactor: memStorage.NewTransactor(store),
			health:     memStorage.NewHealthCheck(),
			close:      func() {},
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if err := pgStorage.Migrate(ctx, pool, migrations.FS, log); err != nil {
		pool.Close()
		return nil, err
	}

	return &storage{
		users:      pgStorage.NewUserRepo(pool),
		wallets:    pgStorage.NewWalletRepo(pool),
		txns:       pgStorage.NewTransactionRepo(pool),
		rateLogs:   pgStorage.NewExchangeRateRepo(pool),
		coupons:    pgStorage.NewCouponRepo(pool),
		shipments:  pgStorage.NewShipmentRepo(pool),
		transactor: pgStorage.NewTransactor(pool),
		health:     pgStorage.NewHealthCheck(pool),
		close:      pool.Close,
	}, nil
}

func newGateway(cfg config.GatewayConfig, log zerolog.Logger) ports.PaymentGateway {
	if cfg.Provider == "stripe" {
		return gateway.NewStripeGateway(gateway.StripeConfig{
			SecretKey: cfg.StripeSecretKey,
			APIURL:    cfg.StripeAPIURL,
			Timeout:   cfg.RequestTimeout,
		}, log)
	}
	log.Warn().Msg("Using fake payment gateway; no real charges are made")
	return gateway.NewFakeGateway(0)
}
