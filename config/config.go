// Package config loads analyzer settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"option-chain-analyzer/chain"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure from Load and Validate.
var ErrInvalidConfig = errors.New("invalid config")

const expiryLayout = "2006-01-02"

// Data sources understood by services.NewPriceFeed
const (
	SourceMock    = "mock"
	SourceAlpaca  = "alpaca"
	SourceBinance = "binance"
	SourceMassive = "massive"
)

type AlpacaConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
	Feed      string `yaml:"feed"`
}

type BinanceConfig struct {
	BaseURL string `yaml:"base_url"`
}

type MassiveConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

type Config struct {
	Symbol     string `yaml:"symbol"`
	DataSource string `yaml:"data_source"`

	RiskFreeRate float64 `yaml:"risk_free_rate"`
	Volatility   float64 `yaml:"volatility"`
	StrikeRange  float64 `yaml:"strike_range"`
	StrikeStep   float64 `yaml:"strike_step"`

	// ExpiryDate (YYYY-MM-DD) wins over ExpiryDays when set.
	ExpiryDate string `yaml:"expiry_date"`
	ExpiryDays int    `yaml:"expiry_days"`

	UpdateIntervalSeconds int `yaml:"update_interval_seconds"`
	RetentionDays         int `yaml:"retention_days"`

	HTTPAddr string `yaml:"http_addr"`
	DBPath   string `yaml:"db_path"`
	LogDir   string `yaml:"log_dir"`
	LogLevel string `yaml:"log_level"`

	Symbols map[string][]string `yaml:"symbols"`

	Alpaca  AlpacaConfig  `yaml:"alpaca"`
	Binance BinanceConfig `yaml:"binance"`
	Massive MassiveConfig `yaml:"massive"`
}

// Default returns the settings the dashboard starts with.
func Default() *Config {
	return &Config{
		Symbol:                "AAPL",
		DataSource:            SourceMock,
		RiskFreeRate:          0.07,
		Volatility:            0.20,
		StrikeRange:           50,
		StrikeStep:            5,
		ExpiryDays:            7,
		UpdateIntervalSeconds: 5,
		RetentionDays:         30,
		HTTPAddr:              ":8080",
		DBPath:                "data/option_chain.db",
		LogDir:                "logs",
		LogLevel:              "info",
		Symbols: map[string][]string{
			SourceMock:    {"AAPL", "TSLA", "AMD"},
			SourceAlpaca:  {"AAPL", "TSLA", "AMD"},
			SourceBinance: {"BTCUSDT", "ETHUSDT"},
			SourceMassive: {"AAPL", "MSFT"},
		},
		Alpaca:  AlpacaConfig{Feed: "iex"},
		Binance: BinanceConfig{BaseURL: "https://api.binance.com"},
		Massive: MassiveConfig{BaseURL: "https://api.massive.com"},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"SYMBOL":            &c.Symbol,
		"DATA_SOURCE":       &c.DataSource,
		"EXPIRY_DATE":       &c.ExpiryDate,
		"HTTP_ADDR":         &c.HTTPAddr,
		"DB_PATH":           &c.DBPath,
		"LOG_DIR":           &c.LogDir,
		"LOG_LEVEL":         &c.LogLevel,
		"ALPACA_API_KEY":    &c.Alpaca.APIKey,
		"ALPACA_SECRET_KEY": &c.Alpaca.SecretKey,
		"ALPACA_FEED":       &c.Alpaca.Feed,
		"BINANCE_BASE_URL":  &c.Binance.BaseURL,
		"MASSIVE_API_KEY":   &c.Massive.APIKey,
		"MASSIVE_BASE_URL":  &c.Massive.BaseURL,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	floats := map[string]*float64{
		"RISK_FREE_RATE": &c.RiskFreeRate,
		"VOLATILITY":     &c.Volatility,
		"STRIKE_RANGE":   &c.StrikeRange,
		"STRIKE_STEP":    &c.StrikeStep,
	}
	for key, dst := range floats {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = f
	}

	ints := map[string]*int{
		"EXPIRY_DAYS":             &c.ExpiryDays,
		"UPDATE_INTERVAL_SECONDS": &c.UpdateIntervalSeconds,
		"RETENTION_DAYS":          &c.RetentionDays,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
		}
		*dst = n
	}

	c.DataSource = strings.ToLower(c.DataSource)
	c.Symbol = strings.ToUpper(c.Symbol)
	return nil
}

// Validate checks every field against the ranges the analyzer accepts.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}
	switch c.DataSource {
	case SourceMock, SourceAlpaca, SourceBinance, SourceMassive:
	default:
		return fmt.Errorf("%w: unknown data source %q", ErrInvalidConfig, c.DataSource)
	}
	for name, v := range map[string]float64{
		"risk_free_rate": c.RiskFreeRate,
		"volatility":     c.Volatility,
		"strike_range":   c.StrikeRange,
		"strike_step":    c.StrikeStep,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalidConfig, name, v)
		}
	}
	if c.RiskFreeRate < 0 || c.RiskFreeRate > 1 {
		return fmt.Errorf("%w: risk_free_rate must be in [0, 1], got %g", ErrInvalidConfig, c.RiskFreeRate)
	}
	if c.Volatility <= 0 || c.Volatility > 1 {
		return fmt.Errorf("%w: volatility must be in (0, 1], got %g", ErrInvalidConfig, c.Volatility)
	}
	if c.StrikeRange <= 0 {
		return fmt.Errorf("%w: strike_range must be positive, got %g", ErrInvalidConfig, c.StrikeRange)
	}
	if c.StrikeStep <= 0 {
		return fmt.Errorf("%w: strike_step must be positive, got %g", ErrInvalidConfig, c.StrikeStep)
	}
	if 2*c.StrikeRange/c.StrikeStep > chain.MaxStrikes {
		return fmt.Errorf("%w: strike_range %g with strike_step %g exceeds %d strikes", ErrInvalidConfig, c.StrikeRange, c.StrikeStep, chain.MaxStrikes)
	}
	if c.UpdateIntervalSeconds < 1 || c.UpdateIntervalSeconds > 60 {
		return fmt.Errorf("%w: update_interval_seconds must be in [1, 60], got %d", ErrInvalidConfig, c.UpdateIntervalSeconds)
	}
	if c.ExpiryDate != "" {
		if _, err := time.ParseInLocation(expiryLayout, c.ExpiryDate, time.Local); err != nil {
			return fmt.Errorf("%w: expiry_date %q: %v", ErrInvalidConfig, c.ExpiryDate, err)
		}
	} else if c.ExpiryDays < 0 {
		return fmt.Errorf("%w: expiry_days must not be negative, got %d", ErrInvalidConfig, c.ExpiryDays)
	}
	return nil
}

// UpdateInterval returns the refresh cadence.
func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalSeconds) * time.Second
}

// Expiry resolves the configured expiry relative to now. A date is taken at
// local midnight.
func (c *Config) Expiry(now time.Time) time.Time {
	if c.ExpiryDate != "" {
		if t, err := time.ParseInLocation(expiryLayout, c.ExpiryDate, time.Local); err == nil {
			return t
		}
	}
	return now.AddDate(0, 0, c.ExpiryDays)
}

// ChainRequest adapts the configuration to a chain build for the given price.
func (c *Config) ChainRequest(price *float64, now time.Time) chain.Request {
	return chain.Request{
		CurrentPrice: price,
		StrikeRange:  c.StrikeRange,
		StrikeStep:   c.StrikeStep,
		Expiry:       c.Expiry(now),
		RiskFreeRate: c.RiskFreeRate,
		Volatility:   c.Volatility,
		Now:          now,
	}
}

// SymbolsFor lists the symbols offered for the configured data source.
func (c *Config) SymbolsFor(source string) []string {
	return c.Symbols[strings.ToLower(source)]
}
