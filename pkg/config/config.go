package config

import (
	"fmt"
	"os"
	"strconv"
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
		RateLimitRPS    float64       `yaml:"rate_limit_rps"`
		RateLimitBurst  int           `yaml:"rate_limit_burst"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Planner struct {
		DefaultHorizonMinutes int           `yaml:"default_horizon_minutes"`
		DefaultTargetVol      float64       `yaml:"default_target_vol"`
		DefaultRiskBudget     float64       `yaml:"default_risk_budget"`
		MaxTradeNotional      float64       `yaml:"max_trade_notional"`
		LargeNotional         float64       `yaml:"large_notional"`
		HighMicroVol          float64       `yaml:"high_micro_vol"`
		TightSpreadBps        float64       `yaml:"tight_spread_bps"`
		LowImbalance          float64       `yaml:"low_imbalance"`
		DefaultSpreadBps      float64       `yaml:"default_spread_bps"`
		ImpactK               float64       `yaml:"impact_k"`
		ImpactAlpha           float64       `yaml:"impact_alpha"`
		ImpactRefNotional     float64       `yaml:"impact_ref_notional"`
		FetchTimeout          time.Duration `yaml:"fetch_timeout"`
		StyleDiscount         struct {
			POV  float64 `yaml:"pov"`
			TWAP float64 `yaml:"twap"`
			VWAP float64 `yaml:"vwap"`
		} `yaml:"style_discount"`
	} `yaml:"planner"`
	RiskGuard struct {
		SymbolCap  float64            `yaml:"symbol_cap"`
		GlobalCap  float64            `yaml:"global_cap"`
		Window     time.Duration      `yaml:"window"`
		SymbolCaps map[string]float64 `yaml:"symbol_caps"`
	} `yaml:"risk_guard"`
	Router struct {
		MinFillRatio    float64       `yaml:"min_fill_ratio"`
		MaxFillRatio    float64       `yaml:"max_fill_ratio"`
		HistoryCapacity int           `yaml:"history_capacity"`
		Seed            int64         `yaml:"seed"`
		PublishTimeout  time.Duration `yaml:"publish_timeout"`
	} `yaml:"router"`
	Volatility struct {
		Source        string        `yaml:"source"` // clickhouse | memory
		Timeframe     string        `yaml:"timeframe"`
		Bars          int           `yaml:"bars"`
		MinReturns    int           `yaml:"min_returns"`
		ShortWindow   int           `yaml:"short_window"`
		MediumWindow  int           `yaml:"medium_window"`
		LongWindow    int           `yaml:"long_window"`
		HARWeights    []float64     `yaml:"har_weights"`
		GARCHOmega    float64       `yaml:"garch_omega"`
		GARCHAlpha    float64       `yaml:"garch_alpha"`
		GARCHBeta     float64       `yaml:"garch_beta"`
		CacheTTL      time.Duration `yaml:"cache_ttl"`
		MajorSymbols  []string      `yaml:"major_symbols"`
		MajorDailyVol float64       `yaml:"major_daily_vol"`
		AltDailyVol   float64       `yaml:"alt_daily_vol"`
	} `yaml:"volatility"`
	Microstructure struct {
		MaxStaleness time.Duration `yaml:"max_staleness"`
	} `yaml:"microstructure"`
	Policy struct {
		ServiceURL   string        `yaml:"service_url"`
		Timeout      time.Duration `yaml:"timeout"`
		Retries      int           `yaml:"retries"`
		StaticPolicy string        `yaml:"static_policy"`
	} `yaml:"policy"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Brokers             []string `yaml:"brokers"`
		ExecutionTopic      string   `yaml:"execution_topic"`
		MicrostructureTopic string   `yaml:"microstructure_topic"`
		RequiredAcks        int      `yaml:"required_acks"`
		Compression         string   `yaml:"compression"`
		Producer            struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
}

// Default returns a runnable paper-trading configuration: in-memory bars,
// no Kafka, no Redis, static policy.
func Default() *Config {
	c := &Config{Environment: "development"}

	c.Server.Port = 8080
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RateLimitRPS = 20
	c.Server.RateLimitBurst = 40

	c.Log.Level = "info"
	c.Log.Format = "json"
	c.Log.Output = "stdout"

	c.Metrics.Enabled = true
	c.Metrics.Path = "/metrics"

	c.Planner.DefaultHorizonMinutes = 60
	c.Planner.DefaultTargetVol = 0.02
	c.Planner.DefaultRiskBudget = 0.02
	c.Planner.MaxTradeNotional = 250_000
	c.Planner.LargeNotional = 50_000
	c.Planner.HighMicroVol = 0.002
	c.Planner.TightSpreadBps = 5
	c.Planner.LowImbalance = 0.2
	c.Planner.DefaultSpreadBps = 10
	c.Planner.ImpactK = 0.001
	c.Planner.ImpactAlpha = 1.5
	c.Planner.ImpactRefNotional = 100_000
	c.Planner.FetchTimeout = 2 * time.Second
	c.Planner.StyleDiscount.POV = 0.8
	c.Planner.StyleDiscount.TWAP = 0.7
	c.Planner.StyleDiscount.VWAP = 0.6

	c.RiskGuard.SymbolCap = 100_000
	c.RiskGuard.GlobalCap = 500_000
	c.RiskGuard.Window = 24 * time.Hour

	c.Router.MinFillRatio = 0.8
	c.Router.MaxFillRatio = 1.0
	c.Router.HistoryCapacity = 1000
	c.Router.PublishTimeout = 2 * time.Second

	c.Volatility.Source = "memory"
	c.Volatility.Timeframe = "1m"
	c.Volatility.Bars = 1441
	c.Volatility.MinReturns = 120
	c.Volatility.ShortWindow = 60
	c.Volatility.MediumWindow = 360
	c.Volatility.LongWindow = 1440
	c.Volatility.HARWeights = []float64{0.4, 0.35, 0.25}
	c.Volatility.GARCHAlpha = 0.08
	c.Volatility.GARCHBeta = 0.9
	c.Volatility.CacheTTL = 5 * time.Minute
	c.Volatility.MajorSymbols = []string{"BTC", "ETH"}
	c.Volatility.MajorDailyVol = 0.03
	c.Volatility.AltDailyVol = 0.06

	c.Microstructure.MaxStaleness = 30 * time.Second

	c.Policy.Timeout = 2 * time.Second
	c.Policy.Retries = 3
	c.Policy.StaticPolicy = "momentum_long"

	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "execcore"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 10 * time.Second

	c.Kafka.ExecutionTopic = "execution.records"
	c.Kafka.MicrostructureTopic = "market.microstructure"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "snappy"
	c.Kafka.Producer.MaxAttempts = 3
	c.Kafka.Producer.Linger = 50 * time.Millisecond
	c.Kafka.Producer.BatchSize = 100
	c.Kafka.Producer.WriteTimeout = 5 * time.Second
	c.Kafka.Consumer.GroupID = "execcore"
	c.Kafka.Consumer.Workers = 2
	c.Kafka.Consumer.BufferSize = 256
	c.Kafka.Consumer.RetryMax = 3
	c.Kafka.Consumer.BackoffMin = 50 * time.Millisecond
	c.Kafka.Consumer.BackoffMax = 2 * time.Second

	c.Redis.Addr = "localhost:6379"
	c.Redis.Prefix = "execcore"

	return c
}

// Load reads a YAML file on top of Default() and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the environment. getenv is injected so tests
// do not have to touch the process environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = p
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("POLICY_SERVICE_URL"); v != "" {
		c.Policy.ServiceURL = v
	}
	if v := getenv("RISK_SYMBOL_CAP"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RISK_SYMBOL_CAP: %w", err)
		}
		c.RiskGuard.SymbolCap = f
	}
	if v := getenv("RISK_GUARD_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RISK_GUARD_WINDOW: %w", err)
		}
		c.RiskGuard.Window = d
	}
	return nil
}

// KafkaEnabled reports whether brokers are configured.
func (c *Config) KafkaEnabled() bool { return len(c.Kafka.Brokers) > 0 }

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Planner.DefaultTargetVol <= 0 {
		return fmt.Errorf("planner.default_target_vol must be > 0")
	}
	if c.Planner.ImpactAlpha <= 1 {
		return fmt.Errorf("planner.impact_alpha must be > 1, got %v", c.Planner.ImpactAlpha)
	}
	if c.Planner.ImpactRefNotional <= 0 {
		return fmt.Errorf("planner.impact_ref_notional must be > 0")
	}
	for name, d := range map[string]float64{
		"pov":  c.Planner.StyleDiscount.POV,
		"twap": c.Planner.StyleDiscount.TWAP,
		"vwap": c.Planner.StyleDiscount.VWAP,
	} {
		if d <= 0 || d > 1 {
			return fmt.Errorf("planner.style_discount.%s must be in (0,1], got %v", name, d)
		}
	}
	if c.RiskGuard.SymbolCap <= 0 {
		return fmt.Errorf("risk_guard.symbol_cap must be > 0")
	}
	if c.RiskGuard.GlobalCap < 0 {
		return fmt.Errorf("risk_guard.global_cap must be >= 0")
	}
	if c.RiskGuard.Window <= 0 {
		return fmt.Errorf("risk_guard.window must be > 0")
	}
	if c.Router.MinFillRatio <= 0 || c.Router.MaxFillRatio > 1 || c.Router.MinFillRatio > c.Router.MaxFillRatio {
		return fmt.Errorf("router fill ratio bounds invalid: [%v, %v]", c.Router.MinFillRatio, c.Router.MaxFillRatio)
	}
	if c.Volatility.Source != "memory" && c.Volatility.Source != "clickhouse" {
		return fmt.Errorf("volatility.source must be 'memory' or 'clickhouse', got '%s'", c.Volatility.Source)
	}
	if c.Volatility.Source == "clickhouse" && !c.ClickHouse.Enabled {
		return fmt.Errorf("volatility.source=clickhouse requires clickhouse.enabled")
	}
	if len(c.Volatility.HARWeights) != 3 {
		return fmt.Errorf("volatility.har_weights needs 3 entries, got %d", len(c.Volatility.HARWeights))
	}
	if c.Volatility.GARCHAlpha < 0 || c.Volatility.GARCHBeta < 0 || c.Volatility.GARCHAlpha+c.Volatility.GARCHBeta >= 1 {
		return fmt.Errorf("volatility garch alpha+beta must be < 1")
	}
	if c.Volatility.ShortWindow < 2 || c.Volatility.ShortWindow > c.Volatility.MediumWindow || c.Volatility.MediumWindow > c.Volatility.LongWindow {
		return fmt.Errorf("volatility windows must satisfy 2 <= short <= medium <= long")
	}
	if c.KafkaEnabled() && c.Kafka.ExecutionTopic == "" {
		return fmt.Errorf("kafka.execution_topic is required when brokers are set")
	}
	if c.Policy.ServiceURL == "" && c.Policy.StaticPolicy == "" {
		return fmt.Errorf("policy.service_url or policy.static_policy is required")
	}
	return nil
}
