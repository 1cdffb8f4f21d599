package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	Backend  BackendConfig
	Poll     PollConfig
	Checkout CheckoutConfig
	Redis    RedisConfig
	CORS     CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would make a checkout impossible to complete.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", EnvBackendBaseURL, c.Backend.BaseURL)
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("%s must be positive", EnvPollMaxAttempts)
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("%s must be positive", EnvPollInterval)
	}
	if c.Checkout.SessionTTL <= 0 {
		return errors.New("checkout session ttl must be positive")
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"ECOM_APP_ENV" default:"dev"`
	Port         string `envconfig:"ECOM_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ECOM_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"ECOM_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"ECOM_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// BackendConfig points at the order/payment API that fronts the provider.
type BackendConfig struct {
	BaseURL string        `envconfig:"ECOM_BACKEND_BASE_URL" required:"true"`
	Timeout time.Duration `envconfig:"ECOM_BACKEND_TIMEOUT" default:"15s"`
}

type PollConfig struct {
	MaxAttempts int           `envconfig:"ECOM_POLL_MAX_ATTEMPTS" default:"30"`
	Interval    time.Duration `envconfig:"ECOM_POLL_INTERVAL" default:"2s"`
}

// Budget is the longest a single poll run may take.
func (p PollConfig) Budget() time.Duration {
	return time.Duration(p.MaxAttempts) * p.Interval
}

type CheckoutConfig struct {
	// SessionTTL bounds how long a hosted checkout may wait for the buyer.
	SessionTTL      time.Duration `envconfig:"ECOM_CHECKOUT_SESSION_TTL" default:"15m"`
	ResultRetention time.Duration `envconfig:"ECOM_CHECKOUT_RESULT_RETENTION" default:"10m"`
	CreateWait      time.Duration `envconfig:"ECOM_CHECKOUT_CREATE_WAIT" default:"20s"`
}

// RedisConfig is optional; leaving both URL and Address empty disables idempotent replays.
type RedisConfig struct {
	URL          string        `envconfig:"ECOM_REDIS_URL"`
	Address      string        `envconfig:"ECOM_REDIS_ADDR"`
	Password     string        `envconfig:"ECOM_REDIS_PASSWORD"`
	DB           int           `envconfig:"ECOM_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ECOM_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ECOM_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ECOM_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ECOM_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ECOM_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ECOM_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}
