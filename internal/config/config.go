package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the fulfillment core
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	API      APIConfig      `mapstructure:"api"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Campaign CampaignConfig `mapstructure:"campaign"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig holds Kafka configuration for domain events
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// APIConfig holds API server configuration
type APIConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ChannelsConfig holds outbound transport configurations
type ChannelsConfig struct {
	SendGrid SendGridConfig `mapstructure:"sendgrid"`
}

// SendGridConfig holds SendGrid email configuration
type SendGridConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromName  string `mapstructure:"from_name"`
	FromEmail string `mapstructure:"from_email"`
}

// WorkerConfig holds delivery worker pool configuration
type WorkerConfig struct {
	PoolSize      int           `mapstructure:"pool_size"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	LeaseDuration time.Duration `mapstructure:"lease_duration"`
	ReclaimEvery  time.Duration `mapstructure:"reclaim_every"`
}

// CampaignConfig holds campaign dispatcher configuration
type CampaignConfig struct {
	DefaultMinDaysBetweenSends int `mapstructure:"default_min_days_between_sends"`
}

// MetricsConfig holds monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	setDefaults()

	// Read from environment variables
	viper.AutomaticEnv()

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Println("Config file not found, using environment variables and defaults")
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.database", "fulfillment")
	viper.SetDefault("database.ssl_mode", "disable")

	// Redis defaults
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Kafka defaults
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "fulfillment-events")

	// API defaults
	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8080)

	// Channel defaults
	viper.SetDefault("channels.sendgrid.from_name", "Dounie Cuisine")
	viper.SetDefault("channels.sendgrid.from_email", "commandes@douniecuisine.ca")

	// Worker defaults
	viper.SetDefault("worker.pool_size", 4)
	viper.SetDefault("worker.poll_interval", 2*time.Second)
	viper.SetDefault("worker.send_timeout", 30*time.Second)
	viper.SetDefault("worker.lease_duration", 2*time.Minute)
	viper.SetDefault("worker.reclaim_every", 30*time.Second)

	// Campaign defaults
	viper.SetDefault("campaign.default_min_days_between_sends", 7)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9091)
	viper.SetDefault("metrics.path", "/metrics")

	// Map environment variables
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.database", "DB_NAME")
	viper.BindEnv("redis.addr", "REDIS_ADDR")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("channels.sendgrid.api_key", "SENDGRID_API_KEY")
	viper.BindEnv("worker.pool_size", "WORKER_POOL_SIZE")
}
