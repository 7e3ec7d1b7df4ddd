package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"` // false runs without caches or rate limiting
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig configures bearer token validation. Tokens are issued elsewhere.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// StorageConfig selects the persistence adapter.
type StorageConfig struct {
	Driver   string `mapstructure:"driver"`    // postgres, memory
	SeedFile string `mapstructure:"seed_file"` // JSON users/shipments fixture, memory driver only
}

// LedgerConfig holds the monetary policy of the ledger.
// Amounts are in minor units; percentages are decimal strings.
type LedgerConfig struct {
	SettlementCurrency string `mapstructure:"settlement_currency"`
	ChargeCurrency     string `mapstructure:"charge_currency"`
	MinimumDeposit     int64  `mapstructure:"minimum_deposit"`
	FeePercent         string `mapstructure:"fee_percent"`
	WelcomeCouponCode  string `mapstructure:"welcome_coupon_code"`
}

// Fee parses FeePercent.
func (l LedgerConfig) Fee() (decimal.Decimal, error) {
	fee, err := decimal.NewFromString(l.FeePercent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing ledger.fee_percent %q: %w", l.FeePercent, err)
	}
	if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(100)) {
		return decimal.Zero, fmt.Errorf("ledger.fee_percent must be in [0, 100), got %s", fee)
	}
	return fee, nil
}

type ExchangeConfig struct {
	Source    string        `mapstructure:"source"` // fixed
	FixedRate string        `mapstructure:"fixed_rate"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// Rate parses FixedRate.
func (e ExchangeConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(e.FixedRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing exchange.fixed_rate %q: %w", e.FixedRate, err)
	}
	return rate, nil
}

// RetryConfig bounds the debit retry loop.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	Multiplier  float64       `mapstructure:"multiplier"`
	MaxBackoff  time.Duration `mapstructure:"max_backoff"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type GatewayConfig struct {
	Provider         string        `mapstructure:"provider"` // stripe, fake
	StripeSecretKey  string        `mapstructure:"stripe_secret_key"`
	StripeAPIURL     string        `mapstructure:"stripe_api_url"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerOpenFor   time.Duration `mapstructure:"breaker_open_for"`
}

type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WLG_ (Wallet LedGer).
// Nested keys use underscore: WLG_DATABASE_HOST, WLG_RETRY_MAX_ATTEMPTS, etc.
func Load(path string) (*Config, error) {
	// A local .env only seeds variables that are not already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "wallet_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("storage.driver", "postgres")
	v.SetDefault("storage.seed_file", "")
	v.SetDefault("ledger.settlement_currency", "CNY")
	v.SetDefault("ledger.charge_currency", "BRL")
	v.SetDefault("ledger.minimum_deposit", 0)
	v.SetDefault("ledger.fee_percent", "5")
	v.SetDefault("ledger.welcome_coupon_code", "WELCOME")
	v.SetDefault("exchange.source", "fixed")
	v.SetDefault("exchange.fixed_rate", "1.155")
	v.SetDefault("exchange.cache_ttl", "10m")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_backoff", "1s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.max_backoff", "4s")
	v.SetDefault("retry.timeout", "15s")
	v.SetDefault("gateway.provider", "fake")
	v.SetDefault("gateway.stripe_secret_key", "")
	v.SetDefault("gateway.stripe_api_url", "")
	v.SetDefault("gateway.request_timeout", "10s")
	v.SetDefault("gateway.breaker_threshold", 5)
	v.SetDefault("gateway.breaker_open_for", "30s")
	v.SetDefault("ratelimit.enabled", true)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WLG_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WLG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be postgres or memory, got %q", c.Storage.Driver)
	}
	switch c.Gateway.Provider {
	case "stripe", "fake":
	default:
		return fmt.Errorf("gateway.provider must be stripe or fake, got %q", c.Gateway.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Ledger.MinimumDeposit < 0 {
		return fmt.Errorf("ledger.minimum_deposit must not be negative")
	}
	if _, err := c.Ledger.Fee(); err != nil {
		return err
	}
	rate, err := c.Exchange.Rate()
	if err != nil {
		return err
	}
	if !rate.IsPositive() {
		return fmt.Errorf("exchange.fixed_rate must be positive, got %s", rate)
	}
	return nil
}
