// Package config handles configuration loading for pairtrade.
// It supports YAML config files, a .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/seenimoa/pairtrade/internal/backtest"
	"github.com/seenimoa/pairtrade/internal/pair"
	"github.com/seenimoa/pairtrade/pkg/models"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "PAIRTRADE"

// Config represents the complete application configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"     yaml:"data"`
	Cache    CacheConfig    `mapstructure:"cache"    yaml:"cache"`
	Strategy StrategyConfig `mapstructure:"strategy" yaml:"strategy"`
	Costs    CostsConfig    `mapstructure:"costs"    yaml:"costs"`
	Backtest BacktestConfig `mapstructure:"backtest" yaml:"backtest"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// DataConfig selects and configures the market data provider.
type DataConfig struct {
	Provider   string        `mapstructure:"provider"     yaml:"provider"` // "alphavantage", "yahoo", "csv"
	APIKey     string        `mapstructure:"api_key"      yaml:"api_key"`
	BaseURL    string        `mapstructure:"base_url"     yaml:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"      yaml:"timeout"`
	RatePerMin int           `mapstructure:"rate_per_min" yaml:"rate_per_min"`
	CSVDir     string        `mapstructure:"csv_dir"      yaml:"csv_dir"`
}

// CacheConfig configures the price-series cache.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"        yaml:"backend"` // "memory" or "redis"
	TTL           time.Duration `mapstructure:"ttl"            yaml:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"     yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"       yaml:"redis_db"`
	Prefix        string        `mapstructure:"prefix"         yaml:"prefix"`
}

// StrategyConfig holds the default strategy and its parameters.
type StrategyConfig struct {
	Name                  string `mapstructure:"name" yaml:"name"`
	models.StrategyParams `mapstructure:",squash" yaml:",inline"`
}

// CostsConfig holds the commission model.
type CostsConfig struct {
	Enabled            bool `mapstructure:"enabled" yaml:"enabled"`
	backtest.CostModel `mapstructure:",squash" yaml:",inline"`
}

// BacktestConfig holds engine settings.
type BacktestConfig struct {
	RiskFreeRate float64       `mapstructure:"risk_free_rate" yaml:"risk_free_rate"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"      yaml:"cache_ttl"`
	MaxParallel  int           `mapstructure:"max_parallel"   yaml:"max_parallel"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host         string        `mapstructure:"host"          yaml:"host"`
	Port         int           `mapstructure:"port"          yaml:"port"`
	CORSOrigins  []string      `mapstructure:"cors_origins"  yaml:"cors_origins"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml
//  2. ./config.yaml
//  3. ~/.pairtrade/config.yaml
//
// A .env file in the working directory is loaded first. Environment
// variables override config file values.
// Format: PAIRTRADE_<SECTION>_<KEY>, e.g., PAIRTRADE_STRATEGY_LOOKBACK
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(homeDir(), ".pairtrade"))

	// Read config file (not required to exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return decode(v)
}

// Default returns the built-in configuration, ignoring config files and
// the environment.
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func newViper() *viper.Viper {
	// .env is optional.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("data.api_key", EnvPrefix+"_DATA_API_KEY", "ALPHAVANTAGE_API_KEY")
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Data defaults: the Alpha Vantage free tier allows 5 calls a minute.
	v.SetDefault("data.provider", "alphavantage")
	v.SetDefault("data.api_key", "")
	v.SetDefault("data.base_url", "")
	v.SetDefault("data.timeout", 30*time.Second)
	v.SetDefault("data.rate_per_min", 5)
	v.SetDefault("data.csv_dir", "./data")

	// Cache defaults
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 12*time.Hour)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "pairtrade:")

	// Strategy defaults
	v.SetDefault("strategy.name", "bollinger")
	v.SetDefault("strategy.lookback", 20)
	v.SetDefault("strategy.entry_z", 1.0)
	v.SetDefault("strategy.exit_z", 0.0)
	v.SetDefault("strategy.alignment", pair.AlignCurrent.String())

	// Cost defaults
	cm := backtest.DefaultCostModel()
	v.SetDefault("costs.enabled", true)
	v.SetDefault("costs.decimals", cm.Decimals)
	v.SetDefault("costs.rate", cm.Rate)
	v.SetDefault("costs.minimum", cm.Minimum)
	v.SetDefault("costs.initial_units", cm.InitialUnits)

	// Backtest defaults
	v.SetDefault("backtest.risk_free_rate", 0.0)
	v.SetDefault("backtest.cache_ttl", 10*time.Minute)
	v.SetDefault("backtest.max_parallel", 0)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 60*time.Second)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Data.Provider) {
	case "alphavantage", "yahoo", "csv":
	default:
		errs = append(errs, fmt.Errorf("data.provider: unknown provider %q", c.Data.Provider))
	}
	if c.Data.RatePerMin < 0 {
		errs = append(errs, fmt.Errorf("data.rate_per_min must be >= 0, got %d", c.Data.RatePerMin))
	}
	switch strings.ToLower(c.Cache.Backend) {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	errs = append(errs, c.Strategy.problems()...)
	if c.Costs.Enabled {
		if err := c.Costs.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("costs: %w", err))
		}
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port out of range: %d", c.API.Port))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidArgument, errors.Join(errs...))
	}
	return nil
}

// Validate checks the strategy thresholds. Exit must sit below entry, as
// in a parameter sweep.
func (s StrategyConfig) Validate() error {
	if errs := s.problems(); len(errs) > 0 {
		return fmt.Errorf("%w: %w", models.ErrInvalidArgument, errors.Join(errs...))
	}
	return nil
}

func (s StrategyConfig) problems() []error {
	var errs []error
	if s.Lookback <= 0 {
		errs = append(errs, fmt.Errorf("strategy.lookback must be > 0, got %d", s.Lookback))
	}
	if s.EntryZ <= 0 {
		errs = append(errs, fmt.Errorf("strategy.entry_z must be > 0, got %v", s.EntryZ))
	}
	if s.ExitZ < 0 {
		errs = append(errs, fmt.Errorf("strategy.exit_z must be >= 0, got %v", s.ExitZ))
	}
	if s.ExitZ >= s.EntryZ {
		errs = append(errs, fmt.Errorf("strategy.exit_z %v must be below entry_z %v", s.ExitZ, s.EntryZ))
	}
	if _, err := pair.ParseAlignment(s.Alignment); err != nil {
		errs = append(errs, fmt.Errorf("strategy.alignment: %w", err))
	}
	return errs
}

// EngineConfig converts the backtest and cost sections for the engine.
func (c *Config) EngineConfig() backtest.Config {
	cfg := backtest.Config{
		RiskFreeRate: c.Backtest.RiskFreeRate,
		CacheTTL:     c.Backtest.CacheTTL,
		MaxParallel:  c.Backtest.MaxParallel,
	}
	if c.Costs.Enabled {
		cm := c.Costs.CostModel
		cfg.Costs = &cm
	}
	return cfg
}

// Addr returns the API listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
