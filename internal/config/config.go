package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const envPrefix = "storefront"

// Config is read from STOREFRONT_* environment variables.
type Config struct {
	Port       string        `envconfig:"PORT" default:"8084"`
	APIURL     string        `envconfig:"API_URL" default:"http://localhost:5000/api"`
	APITimeout time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
	JWTSecret  string        `envconfig:"JWT_SECRET" default:"secret"`

	// sessions unused for SessionIdle are flushed and dropped every SessionSweep
	SessionIdle  time.Duration `envconfig:"SESSION_IDLE" default:"30m"`
	SessionSweep time.Duration `envconfig:"SESSION_SWEEP" default:"1m"`

	// memory, redis or mysql
	StoreBackend string        `envconfig:"STORE_BACKEND" default:"memory"`
	RedisAddr    string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisTTL     time.Duration `envconfig:"REDIS_TTL" default:"720h"`
	MySQLDSNs    []string      `envconfig:"MYSQL_DSNS"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"cart-topic"`

	// catalog events consumed to refresh cart lines
	ProductTopic string `envconfig:"PRODUCT_TOPIC" default:"product-topic"`
	GroupID      string `envconfig:"GROUP_ID" default:"storefront-cart-service"`

	Currency string `envconfig:"CURRENCY" default:"PKR"`
	CODFee   string `envconfig:"COD_FEE" default:"100"`

	RateLimit float64 `envconfig:"RATE_LIMIT" default:"5"`
	RateBurst int     `envconfig:"RATE_BURST" default:"10"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "could not read config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// CODFeeAmount parses the cash-on-delivery fee.
func (c *Config) CODFeeAmount() decimal.Decimal {
	return decimal.RequireFromString(c.CODFee)
}

func (c *Config) validate() error {
	if c.SessionIdle <= 0 || c.SessionSweep <= 0 {
		return errors.New("session idle and sweep durations must be positive")
	}

	switch c.StoreBackend {
	case "memory", "redis":
	case "mysql":
		if len(c.MySQLDSNs) == 0 {
			return errors.New("STOREFRONT_MYSQL_DSNS is required for the mysql backend")
		}
	default:
		return errors.Errorf("unknown store backend %q", c.StoreBackend)
	}

	fee, err := decimal.NewFromString(c.CODFee)
	if err != nil {
		return errors.Wrapf(err, "invalid COD fee %q", c.CODFee)
	}
	if fee.IsNegative() {
		return errors.Errorf("COD fee must not be negative, got %s", c.CODFee)
	}
	return nil
}
