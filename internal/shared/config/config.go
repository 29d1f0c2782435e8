package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/uniedit/checkout/internal/infra/httpclient"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Log        LogConfig         `mapstructure:"log"`
	Store      StoreConfig       `mapstructure:"store"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	HTTPClient httpclient.Config `mapstructure:"http_client"`
	RateLimit  RateLimitConfig   `mapstructure:"rate_limit"`
	Checkout   CheckoutConfig    `mapstructure:"checkout"`
	Settlement SettlementConfig  `mapstructure:"settlement"`
	Kafka      KafkaConfig       `mapstructure:"kafka"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Database, c.SSLMode,
	)
	if c.Password != "" {
		dsn += fmt.Sprintf(" password=%s", c.Password)
	}
	return dsn
}

// RedisConfig holds Redis configuration. An empty address disables Redis
// unless the store driver requires it.
type RedisConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// RateLimitConfig holds Redis-backed request limiting and idempotency settings.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Limit          int           `mapstructure:"limit"`
	Window         time.Duration `mapstructure:"window"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// CheckoutConfig holds session and pricing settings.
type CheckoutConfig struct {
	SessionTTL             time.Duration `mapstructure:"session_ttl"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	SweepBatchSize         int           `mapstructure:"sweep_batch_size"`
	DefaultCurrency        string        `mapstructure:"default_currency"`
	TaxRate                float64       `mapstructure:"tax_rate"`
	FreeShippingThreshold  float64       `mapstructure:"free_shipping_threshold"`
	FlatShippingFee        float64       `mapstructure:"flat_shipping_fee"`
	ExpeditedFreeThreshold float64       `mapstructure:"expedited_free_threshold"`
}

// Settlement gateways.
const (
	GatewaySimulated = "simulated"
	GatewayHTTP      = "http"
)

// SettlementConfig holds asynchronous settlement settings.
type SettlementConfig struct {
	Gateway      string        `mapstructure:"gateway"`
	SuccessRate  float64       `mapstructure:"success_rate"`
	Endpoint     string        `mapstructure:"endpoint"`
	PaymentDelay time.Duration `mapstructure:"payment_delay"`
	RefundDelay  time.Duration `mapstructure:"refund_delay"`
	Workers      int           `mapstructure:"workers"`
	JobTimeout   time.Duration `mapstructure:"job_timeout"`
	Breaker      BreakerConfig `mapstructure:"breaker"`
}

// BreakerConfig holds the settlement gateway circuit breaker settings.
type BreakerConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	FailureThreshold    uint32        `mapstructure:"failure_threshold"`
	MaxHalfOpenRequests uint32        `mapstructure:"max_half_open_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// KafkaConfig holds the domain event sink settings. Empty brokers disable it.
type KafkaConfig struct {
	Brokers      string        `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Async        bool          `mapstructure:"async"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/checkout")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// CHECKOUT_SETTLEMENT_SUCCESS_RATE overrides settlement.success_rate.
	v.SetEnvPrefix("CHECKOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override with environment variables for sensitive values
	if password := os.Getenv("CHECKOUT_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("CHECKOUT_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case StoreMemory, StorePostgres:
	case StoreRedis:
		if c.Redis.Address == "" {
			errs = append(errs, errors.New("store.driver redis requires redis.address"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}

	if c.Checkout.SessionTTL <= 0 {
		errs = append(errs, errors.New("checkout.session_ttl must be positive"))
	}
	if c.Checkout.TaxRate < 0 {
		errs = append(errs, errors.New("checkout.tax_rate must not be negative"))
	}
	if c.Checkout.FlatShippingFee < 0 || c.Checkout.FreeShippingThreshold < 0 || c.Checkout.ExpeditedFreeThreshold < 0 {
		errs = append(errs, errors.New("checkout shipping amounts must not be negative"))
	}
	if len(c.Checkout.DefaultCurrency) != 3 {
		errs = append(errs, fmt.Errorf("checkout.default_currency %q is not an ISO 4217 code", c.Checkout.DefaultCurrency))
	}

	switch c.Settlement.Gateway {
	case GatewaySimulated:
	case GatewayHTTP:
		if c.Settlement.Endpoint == "" {
			errs = append(errs, errors.New("settlement.gateway http requires settlement.endpoint"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown settlement.gateway %q", c.Settlement.Gateway))
	}
	if c.Settlement.SuccessRate < 0 || c.Settlement.SuccessRate > 1 {
		errs = append(errs, errors.New("settlement.success_rate must be within [0, 1]"))
	}
	if c.Settlement.PaymentDelay < 0 || c.Settlement.RefundDelay < 0 {
		errs = append(errs, errors.New("settlement delays must not be negative"))
	}
	if c.Settlement.Workers <= 0 {
		errs = append(errs, errors.New("settlement.workers must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", StoreMemory)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "checkout")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "checkout")

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 50)
	v.SetDefault("http_client.max_idle_conns_per_host", 10)
	v.SetDefault("http_client.max_conns_per_host", 50)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 5*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 5*time.Second)
	v.SetDefault("http_client.response_timeout", 10*time.Second)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.limit", 120)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.idempotency_ttl", 24*time.Hour)

	// Checkout defaults
	v.SetDefault("checkout.session_ttl", 30*time.Minute)
	v.SetDefault("checkout.sweep_interval", time.Minute)
	v.SetDefault("checkout.sweep_batch_size", 500)
	v.SetDefault("checkout.default_currency", "USD")
	v.SetDefault("checkout.tax_rate", 0.08)
	v.SetDefault("checkout.free_shipping_threshold", 100.0)
	v.SetDefault("checkout.flat_shipping_fee", 9.99)
	v.SetDefault("checkout.expedited_free_threshold", 200.0)

	// Settlement defaults
	v.SetDefault("settlement.gateway", GatewaySimulated)
	v.SetDefault("settlement.success_rate", 0.9)
	v.SetDefault("settlement.endpoint", "")
	v.SetDefault("settlement.payment_delay", 2*time.Second)
	v.SetDefault("settlement.refund_delay", time.Second)
	v.SetDefault("settlement.workers", 8)
	v.SetDefault("settlement.job_timeout", 30*time.Second)
	v.SetDefault("settlement.breaker.enabled", true)
	v.SetDefault("settlement.breaker.failure_threshold", 5)
	v.SetDefault("settlement.breaker.max_half_open_requests", 1)
	v.SetDefault("settlement.breaker.interval", time.Minute)
	v.SetDefault("settlement.breaker.timeout", 30*time.Second)

	// Kafka defaults
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "checkout-events")
	v.SetDefault("kafka.write_timeout", 5*time.Second)
	v.SetDefault("kafka.async", true)
}
