package config

import (
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/viper"
)

// Config represents the settlement switch configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chains   []ChainConfig  `mapstructure:"chains"`
	Routing  RoutingConfig  `mapstructure:"routing"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Registry RegistryConfig `mapstructure:"registry"`
	Fees     FeesConfig     `mapstructure:"fees"`
	JWKS     JWKSConfig     `mapstructure:"jwks"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// ChainConfig declares one supported chain and its token set
type ChainConfig struct {
	ID     string   `mapstructure:"id"`
	Name   string   `mapstructure:"name"`
	Tokens []string `mapstructure:"tokens"`
}

// RoutingConfig contains route calculation and cache settings
type RoutingConfig struct {
	TimePenaltyPerMinuteWei string        `mapstructure:"time_penalty_per_minute_wei"`
	MaxRoutes               int           `mapstructure:"max_routes"`
	MaxSplitLegs            int           `mapstructure:"max_split_legs"`
	CacheTTL                time.Duration `mapstructure:"cache_ttl"`
	RouteDeadline           time.Duration `mapstructure:"route_deadline"`
}

// LimitsConfig contains per-user rate limit and daily cap settings
type LimitsConfig struct {
	MinTransferInterval time.Duration `mapstructure:"min_transfer_interval"`
	DailyLimitWei       string        `mapstructure:"daily_limit_wei"`
}

// RegistryConfig contains adapter health bookkeeping settings
type RegistryConfig struct {
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
	FailureThresholdBps int64         `mapstructure:"failure_threshold_bps"`
	MinVolumeForHealth  int64         `mapstructure:"min_volume_for_health"`
	AutoDisable         bool          `mapstructure:"auto_disable"`
}

// FeesConfig contains protocol fee settings
type FeesConfig struct {
	FeeBps    int64  `mapstructure:"fee_bps"`
	Collector string `mapstructure:"collector"`
}

// JWKSConfig contains JWKS configuration for admin JWT validation
type JWKSConfig struct {
	URL      string `mapstructure:"url"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "settlement_switch")

	// Routing defaults
	viper.SetDefault("routing.time_penalty_per_minute_wei", "1")
	viper.SetDefault("routing.max_routes", 10)
	viper.SetDefault("routing.max_split_legs", 3)
	viper.SetDefault("routing.cache_ttl", "60s")
	viper.SetDefault("routing.route_deadline", "5m")

	// Limits defaults
	viper.SetDefault("limits.min_transfer_interval", "10s")
	viper.SetDefault("limits.daily_limit_wei", "1000000000000000000000")

	// Registry defaults
	viper.SetDefault("registry.health_check_interval", "1m")
	viper.SetDefault("registry.failure_threshold_bps", 1000)
	viper.SetDefault("registry.min_volume_for_health", 10)
	viper.SetDefault("registry.auto_disable", true)

	// Fees defaults
	viper.SetDefault("fees.fee_bps", 30)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if len(config.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}
	for _, chain := range config.Chains {
		if chain.ID == "" {
			return fmt.Errorf("chain id is required")
		}
		if len(chain.Tokens) == 0 {
			return fmt.Errorf("chain %s has no tokens configured", chain.ID)
		}
	}
	if config.Routing.MaxSplitLegs <= 0 {
		return fmt.Errorf("routing.max_split_legs must be positive")
	}
	if _, ok := new(big.Int).SetString(config.Limits.DailyLimitWei, 10); !ok {
		return fmt.Errorf("limits.daily_limit_wei is not a valid integer")
	}
	if _, ok := new(big.Int).SetString(config.Routing.TimePenaltyPerMinuteWei, 10); !ok {
		return fmt.Errorf("routing.time_penalty_per_minute_wei is not a valid integer")
	}
	return nil
}

// DailyLimit parses the configured daily cap into a big integer.
func (c *LimitsConfig) DailyLimit() *big.Int {
	v, _ := new(big.Int).SetString(c.DailyLimitWei, 10)
	return v
}

// TimePenaltyPerMinute parses the balanced-mode time penalty into wei.
func (c *RoutingConfig) TimePenaltyPerMinute() *big.Int {
	v, _ := new(big.Int).SetString(c.TimePenaltyPerMinuteWei, 10)
	return v
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
