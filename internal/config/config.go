package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the booking service
type Config struct {
	AppName  string         `mapstructure:"app_name"`
	GRPC     GRPCConfig     `mapstructure:"grpc"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Booking  BookingConfig  `mapstructure:"booking"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// GRPCConfig holds gRPC server configuration
type GRPCConfig struct {
	Address          string `mapstructure:"address"`
	EnableReflection bool   `mapstructure:"enable_reflection"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// KafkaConfig holds Kafka event publishing configuration
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// WeatherConfig holds weather provider configuration
type WeatherConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Latitude  float64       `mapstructure:"latitude"`
	Longitude float64       `mapstructure:"longitude"`
	Timeout   time.Duration `mapstructure:"timeout"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
}

// BookingConfig holds booking lifecycle configuration
type BookingConfig struct {
	PaymentTimeout    time.Duration `mapstructure:"payment_timeout"`
	CheckInWindow     time.Duration `mapstructure:"check_in_window"`
	OccupancyCacheTTL time.Duration `mapstructure:"occupancy_cache_ttl"`
	LockWait          time.Duration `mapstructure:"lock_wait"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	PublicKeyPEM       string   `mapstructure:"public_key_pem"`
	WhitelistedMethods []string `mapstructure:"whitelisted_methods"`
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app_name", "booking-service")
	viper.SetDefault("grpc.address", ":8081")
	viper.SetDefault("grpc.enable_reflection", false)
	viper.SetDefault("postgres.max_conns", 10)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "booking.events")
	viper.SetDefault("weather.base_url", "https://api.openweathermap.org/data/2.5")
	viper.SetDefault("weather.latitude", 41.0082)
	viper.SetDefault("weather.longitude", 28.9784)
	viper.SetDefault("weather.timeout", 3*time.Second)
	viper.SetDefault("weather.cache_ttl", 5*time.Minute)
	viper.SetDefault("booking.payment_timeout", 10*time.Minute)
	viper.SetDefault("booking.check_in_window", 30*time.Minute)
	viper.SetDefault("booking.occupancy_cache_ttl", 5*time.Minute)
	viper.SetDefault("booking.lock_wait", 2*time.Second)
	viper.SetDefault("auth.public_key_pem", "")
	viper.SetDefault("metrics.address", ":9090")
	viper.SetDefault("log.level", "info")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name is required")
	}
	if c.GRPC.Address == "" {
		return fmt.Errorf("grpc.address is required")
	}
	if c.Booking.PaymentTimeout <= 0 {
		return fmt.Errorf("booking.payment_timeout must be positive")
	}
	if c.Booking.CheckInWindow <= 0 {
		return fmt.Errorf("booking.check_in_window must be positive")
	}
	if c.Weather.CacheTTL <= 0 {
		return fmt.Errorf("weather.cache_ttl must be positive")
	}
	return nil
}
