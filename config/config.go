package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Arbflow Arbflow       `yaml:"arbflow"`
	Market  MarketConfig  `yaml:"market"`
	Scanner ScannerConfig `yaml:"scanner"`
	Monitor MonitorConfig `yaml:"monitor"`
	Notify  NotifyConfig  `yaml:"notify"`
	Storage StorageConfig `yaml:"storage"`
	Web     WebConfig     `yaml:"web"`
	Logging LoggingConfig `yaml:"logging"`
}

type Arbflow struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// MarketConfig describes the venue ticker endpoint and the polling policy
// around it.
type MarketConfig struct {
	BaseURL            string      `yaml:"base_url"`
	TickersPath        string      `yaml:"tickers_path"`
	Category           string      `yaml:"category"`
	Timeout            Duration    `yaml:"timeout"`
	MinRequestInterval Duration    `yaml:"min_request_interval"`
	JitterMax          Duration    `yaml:"jitter_max"`
	Retry              RetryConfig `yaml:"retry"`
	ConnectionPool     PoolConfig  `yaml:"connection_pool"`
}

type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
}

type PoolConfig struct {
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	MaxConnsPerHost int      `yaml:"max_conns_per_host"`
	IdleConnTimeout Duration `yaml:"idle_conn_timeout"`
}

// ScannerConfig holds the normalization and detection parameters. The
// conversion rate table is a static approximation relative to the bridge
// currency; it is never refreshed at runtime.
type ScannerConfig struct {
	BridgeCurrency   string             `yaml:"bridge_currency"`
	QuoteCurrencies  []string           `yaml:"quote_currencies"`
	ConversionRates  map[string]float64 `yaml:"conversion_rates"`
	MinSpreadPercent float64            `yaml:"min_spread_percent"`
	LiquidityFloor   float64            `yaml:"liquidity_floor"`
	ResultLimit      int                `yaml:"result_limit"`
}

type MonitorConfig struct {
	Interval Duration `yaml:"interval"`
}

type NotifyConfig struct {
	Redis RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addr      string   `yaml:"addr"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	Channel   string   `yaml:"channel"`
	LatestKey string   `yaml:"latest_key"`
	TTL       Duration `yaml:"ttl"`
}

type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

type LoggingConfig struct {
	Level         string `yaml:"level"`
	Format        string `yaml:"format"`
	Output        string `yaml:"output"`
	MaxAge        int    `yaml:"max_age"`
	CloudWatch    bool   `yaml:"cloudwatch"`
	Namespace     string `yaml:"namespace"`
	DashboardName string `yaml:"dashboard_name"`
}

// Duration wraps time.Duration so yaml values can be written as "30s",
// "500ms" and so on.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func defaultConfig() *Config {
	return &Config{
		Arbflow: Arbflow{Name: "arbflow", Version: "0.1.0"},
		Market: MarketConfig{
			BaseURL:            "https://api.bybit.com",
			TickersPath:        "/v5/market/tickers",
			Category:           "spot",
			Timeout:            Duration(15 * time.Second),
			MinRequestInterval: Duration(time.Second),
			JitterMax:          Duration(250 * time.Millisecond),
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   Duration(500 * time.Millisecond),
				MaxDelay:    Duration(8 * time.Second),
			},
			ConnectionPool: PoolConfig{
				MaxIdleConns:    10,
				MaxConnsPerHost: 10,
				IdleConnTimeout: Duration(90 * time.Second),
			},
		},
		Scanner: ScannerConfig{
			BridgeCurrency:   "USDT",
			QuoteCurrencies:  []string{"USDT", "EUR", "BTC", "ETH", "USDC"},
			ConversionRates:  map[string]float64{"EUR": 1.14, "USDC": 1.0},
			MinSpreadPercent: 1.0,
			LiquidityFloor:   1000,
			ResultLimit:      20,
		},
		Monitor: MonitorConfig{Interval: Duration(30 * time.Second)},
		Notify: NotifyConfig{
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				Channel:   "arbflow.opportunities",
				LatestKey: "arbflow:scan:latest",
				TTL:       Duration(5 * time.Minute),
			},
		},
		Web:     WebConfig{Enabled: true, Address: ":8080"},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// applyEnvOverrides pulls secrets and connection endpoints from the
// environment so they never need to live in the config file.
func applyEnvOverrides(cfg *Config) {
	if cfg.Storage.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			cfg.Storage.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			cfg.Storage.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			cfg.Storage.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			cfg.Storage.S3.Bucket = strings.TrimSpace(v)
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Notify.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Notify.Redis.Password = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Arbflow.Name == "" {
		return fmt.Errorf("arbflow.name is required")
	}
	if cfg.Market.BaseURL == "" {
		return fmt.Errorf("market.base_url is required")
	}
	if cfg.Market.Timeout <= 0 {
		return fmt.Errorf("market.timeout must be greater than 0")
	}
	if cfg.Market.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("market.retry.max_attempts must be greater than 0")
	}
	if cfg.Market.Retry.BaseDelay <= 0 {
		return fmt.Errorf("market.retry.base_delay must be greater than 0")
	}
	if cfg.Scanner.BridgeCurrency == "" {
		return fmt.Errorf("scanner.bridge_currency is required")
	}
	if len(cfg.Scanner.QuoteCurrencies) == 0 {
		return fmt.Errorf("scanner.quote_currencies must not be empty")
	}
	if !containsString(cfg.Scanner.QuoteCurrencies, cfg.Scanner.BridgeCurrency) {
		return fmt.Errorf("scanner.quote_currencies must include the bridge currency %q", cfg.Scanner.BridgeCurrency)
	}
	if cfg.Scanner.MinSpreadPercent < 0 {
		return fmt.Errorf("scanner.min_spread_percent must not be negative")
	}
	if cfg.Scanner.LiquidityFloor < 0 {
		return fmt.Errorf("scanner.liquidity_floor must not be negative")
	}
	if cfg.Scanner.ResultLimit <= 0 {
		return fmt.Errorf("scanner.result_limit must be greater than 0")
	}
	for currency, rate := range cfg.Scanner.ConversionRates {
		if rate <= 0 {
			return fmt.Errorf("scanner.conversion_rates.%s must be greater than 0", currency)
		}
	}
	if cfg.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than 0")
	}

	if cfg.Storage.S3.Enabled {
		bucket := strings.TrimSpace(cfg.Storage.S3.Bucket)
		if bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when S3 is enabled")
		}
		if cfg.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when S3 is enabled")
		}
		if !isValidS3Bucket(bucket) {
			return fmt.Errorf("storage.s3.bucket '%s' is invalid", bucket)
		}
		cfg.Storage.S3.Bucket = bucket
	}

	if cfg.Notify.Redis.Enabled {
		if cfg.Notify.Redis.Addr == "" {
			return fmt.Errorf("notify.redis.addr is required when redis is enabled")
		}
		if cfg.Notify.Redis.Channel == "" {
			return fmt.Errorf("notify.redis.channel is required when redis is enabled")
		}
	}

	if cfg.Web.Enabled && cfg.Web.Address == "" {
		return fmt.Errorf("web.address is required when the web server is enabled")
	}

	return nil
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

var s3BucketRegexp = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(name string) bool {
	if len(name) < 3 || len(name) > 63 {
		return false
	}
	if strings.Contains(name, "..") || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".") {
		return false
	}
	return s3BucketRegexp.MatchString(name)
}
