package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	EventSource struct {
		BaseURL    string        `yaml:"base_url"`
		FetchPath  string        `yaml:"fetch_path"`
		UpdatePath string        `yaml:"update_path"`
		Timeout    time.Duration `yaml:"timeout"`
		Lookback   time.Duration `yaml:"lookback"`
	} `yaml:"event_source"`
	MarketData struct {
		BaseURL  string        `yaml:"base_url"`
		Interval string        `yaml:"interval"`
		BarLimit int           `yaml:"bar_limit"`
		Timeout  time.Duration `yaml:"timeout"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"market_data"`
	Scoring struct {
		BaseURL     string        `yaml:"base_url"`
		Timeout     time.Duration `yaml:"timeout"`
		MaxAttempts int           `yaml:"max_attempts"`
		BackoffStep time.Duration `yaml:"backoff_step"`
		RateLimit   struct {
			Capacity  float64 `yaml:"capacity"`
			PerSecond float64 `yaml:"per_second"`
		} `yaml:"rate_limit"`
	} `yaml:"scoring"`
	Enrich struct {
		Timeout  time.Duration `yaml:"timeout"`
		MaxChars int           `yaml:"max_chars"`
	} `yaml:"enrich"`
	Ledger struct {
		Retention   int           `yaml:"retention"`
		VerifyDelay time.Duration `yaml:"verify_delay"`
	} `yaml:"ledger"`
	Backtest struct {
		BarWidth time.Duration `yaml:"bar_width"`
		Horizon  time.Duration `yaml:"horizon"`
		Window   time.Duration `yaml:"window"`
	} `yaml:"backtest"`
	Scheduler struct {
		CollectionPasses int           `yaml:"collection_passes"`
		PassDelay        time.Duration `yaml:"pass_delay"`
	} `yaml:"scheduler"`
	Anomaly struct {
		ThresholdPercent float64 `yaml:"threshold_percent"`
		BaselineBars     int     `yaml:"baseline_bars"`
	} `yaml:"anomaly"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Workers    int           `yaml:"workers"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic"`
		RequiredAcks int           `yaml:"required_acks"`
		Compression  string        `yaml:"compression"`
		MaxAttempts  int           `yaml:"max_attempts"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		Async        bool          `yaml:"async"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("EVENT_SOURCE_URL"); v != "" {
		c.EventSource.BaseURL = v
	}
	if v := os.Getenv("SCORING_URL"); v != "" {
		c.Scoring.BaseURL = v
	}
	if v := os.Getenv("MARKET_DATA_URL"); v != "" {
		c.MarketData.BaseURL = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.EventSource.FetchPath == "" {
		c.EventSource.FetchPath = "/dataCenter/crypto/fetchCryptoPanic"
	}
	if c.EventSource.UpdatePath == "" {
		c.EventSource.UpdatePath = "/dataCenter/crypto/updatePanicNews"
	}
	if c.EventSource.Timeout <= 0 {
		c.EventSource.Timeout = 15 * time.Second
	}
	if c.EventSource.Lookback <= 0 {
		c.EventSource.Lookback = 30 * time.Minute
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "https://api.binance.com"
	}
	if c.MarketData.Interval == "" {
		c.MarketData.Interval = "15m"
	}
	if c.MarketData.BarLimit <= 0 {
		c.MarketData.BarLimit = 100
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 10 * time.Second
	}
	if c.Scoring.Timeout <= 0 {
		c.Scoring.Timeout = 20 * time.Second
	}
	if c.Scoring.MaxAttempts <= 0 {
		c.Scoring.MaxAttempts = 3
	}
	if c.Scoring.BackoffStep <= 0 {
		c.Scoring.BackoffStep = 2 * time.Second
	}
	if c.Enrich.Timeout <= 0 {
		c.Enrich.Timeout = 10 * time.Second
	}
	if c.Enrich.MaxChars <= 0 {
		c.Enrich.MaxChars = 6000
	}
	if c.Backtest.BarWidth <= 0 {
		c.Backtest.BarWidth = 15 * time.Minute
	}
	if c.Backtest.Horizon <= 0 {
		c.Backtest.Horizon = time.Hour
	}
	if c.Backtest.Window <= 0 {
		c.Backtest.Window = 24 * time.Hour
	}
	if c.Scheduler.CollectionPasses <= 0 {
		c.Scheduler.CollectionPasses = 3
	}
	if c.Scheduler.PassDelay <= 0 {
		c.Scheduler.PassDelay = 15 * time.Second
	}
	if c.Anomaly.ThresholdPercent <= 0 {
		c.Anomaly.ThresholdPercent = 50
	}
	if c.Anomaly.BaselineBars <= 0 {
		c.Anomaly.BaselineBars = 96
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 1
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.EventSource.BaseURL == "" {
		return fmt.Errorf("event_source.base_url is required")
	}
	if c.Scoring.BaseURL == "" {
		return fmt.Errorf("scoring.base_url is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}
