package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type RateConfig struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	LogConfig  `yaml:"log_config"`
	Upstream   `yaml:"upstream"`
	Cache      `yaml:"cache"`
	Pricing    `yaml:"pricing"`
	Kafka      `yaml:"kafka"`
	RateLimit  `yaml:"rate_limit"`
	CORS       `yaml:"cors"`
}

type HTTPServer struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"PORT" env-default:"3000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env-default:"5s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env-default:"10s"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT" env-default:"json"`
}

type Upstream struct {
	BaseURL    string        `yaml:"base_url" env:"WHITEBIT_BASE_URL" env-default:"https://whitebit.com"`
	TickerPath string        `yaml:"ticker_path" env-default:"/api/v4/public/ticker"`
	UserAgent  string        `yaml:"user_agent" env-default:"keksswap-rate-service/1.0"`
	Timeout    time.Duration `yaml:"timeout" env:"UPSTREAM_TIMEOUT" env-default:"5s"`
}

type Cache struct {
	TTL          time.Duration `yaml:"ttl" env:"CACHE_TTL" env-default:"10s"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env:"CACHE_RETRY_BACKOFF" env-default:"1s"`
	// WarmSchedule is a cron spec such as "@every 30s"; empty disables warming.
	WarmSchedule string `yaml:"warm_schedule" env:"CACHE_WARM_SCHEDULE"`
}

type Pricing struct {
	Quote              string             `yaml:"quote" env-default:"USDT"`
	Fiat               string             `yaml:"fiat" env-default:"UAH"`
	FiatMarket         string             `yaml:"fiat_market" env-default:"USDT_UAH"`
	Instruments        map[string]string  `yaml:"instruments"`
	BaseSpread         float64            `yaml:"base_spread" env:"BASE_SPREAD" env-default:"0.008"`
	BigAmountSpread    float64            `yaml:"big_amount_spread" env:"BIG_AMOUNT_SPREAD" env-default:"0.005"`
	BigAmountThreshold float64            `yaml:"big_amount_threshold" env:"BIG_AMOUNT_THRESHOLD" env-default:"30000"`
	NetworkExtra       map[string]float64 `yaml:"network_extra"`
	BankExtra          map[string]float64 `yaml:"bank_extra"`
}

type Kafka struct {
	Enabled        bool          `yaml:"enabled" env:"KAFKA_ENABLED"`
	Brokers        []string      `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:","`
	Topic          string        `yaml:"topic" env:"KAFKA_TOPIC" env-default:"rate-snapshots"`
	Username       string        `yaml:"username" env:"KAFKA_USERNAME"`
	Password       string        `yaml:"password" env:"KAFKA_PASSWORD"`
	Mechanism      string        `yaml:"mechanism" env:"KAFKA_MECHANISM"`
	TLSEnabled     bool          `yaml:"tls_enabled" env:"KAFKA_TLS_ENABLED"`
	PublishTimeout time.Duration `yaml:"publish_timeout" env-default:"5s"`
}

type RateLimit struct {
	// RPS of 0 disables the limiter.
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST" env-default:"20"`
}

type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"*"`
}

var (
	defaultInstruments = map[string]string{
		"TON": "TON_USDT",
		"BTC": "BTC_USDT",
		"ETH": "ETH_USDT",
	}
	defaultNetworkExtra = map[string]float64{
		"TRC20": 0.0,
		"BEP20": 0.001,
		"ERC20": 0.003,
	}
	defaultBankExtra = map[string]float64{
		"mono":   0.0,
		"privat": 0.0,
		"visa":   0.003,
	}
)

// Load reads the YAML file at path, or only the environment when path is
// empty, then fills defaults and validates.
func Load(path string) (*RateConfig, error) {
	var cfg RateConfig
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func MustLoad() *RateConfig {
	// Processing env config variable and file
	configPath := os.Getenv("RATE_CONFIG_PATH")
	if configPath == "" {
		log.Println("RATE_CONFIG_PATH was not set, reading config from environment")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *RateConfig) applyDefaults() {
	c.Pricing.Quote = strings.ToUpper(c.Pricing.Quote)
	c.Pricing.Fiat = strings.ToUpper(c.Pricing.Fiat)
	if len(c.Pricing.Instruments) == 0 {
		c.Pricing.Instruments = copyMap(defaultInstruments)
	}
	if c.Pricing.NetworkExtra == nil {
		c.Pricing.NetworkExtra = copyMap(defaultNetworkExtra)
	}
	if c.Pricing.BankExtra == nil {
		c.Pricing.BankExtra = copyMap(defaultBankExtra)
	}
}

func (c *RateConfig) Validate() error {
	var errs []error

	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL))
	}
	if c.Cache.RetryBackoff < 0 {
		errs = append(errs, fmt.Errorf("cache.retry_backoff must not be negative"))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("upstream.timeout must be positive"))
	}
	if c.Pricing.Quote == "" || c.Pricing.Fiat == "" || c.Pricing.FiatMarket == "" {
		errs = append(errs, fmt.Errorf("pricing.quote, pricing.fiat and pricing.fiat_market are required"))
	}
	if c.Pricing.BaseSpread < 0 || c.Pricing.BigAmountSpread < 0 {
		errs = append(errs, fmt.Errorf("spread fractions must not be negative"))
	}
	if c.Pricing.BigAmountThreshold <= 0 {
		errs = append(errs, fmt.Errorf("pricing.big_amount_threshold must be positive"))
	}
	for instrument, market := range c.Pricing.Instruments {
		code := strings.ToUpper(instrument)
		if code == c.Pricing.Quote || code == c.Pricing.Fiat {
			errs = append(errs, fmt.Errorf("instrument %s collides with the quote or fiat instrument", instrument))
		}
		if market == "" {
			errs = append(errs, fmt.Errorf("instrument %s has no market", instrument))
		}
	}
	for network, fraction := range c.Pricing.NetworkExtra {
		if fraction < 0 {
			errs = append(errs, fmt.Errorf("network_extra[%s] must not be negative", network))
		}
	}
	for bank, fraction := range c.Pricing.BankExtra {
		if fraction < 0 {
			errs = append(errs, fmt.Errorf("bank_extra[%s] must not be negative", bank))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("kafka.brokers are required when kafka is enabled"))
	}
	if c.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("rate_limit.rps must not be negative"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
