package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the campaign engine.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Receipts ReceiptsConfig `yaml:"receipts"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds broker connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DeliveryConfig holds campaign dispatch settings.
type DeliveryConfig struct {
	// VendorSuccessRate is the simulated vendor's success probability.
	VendorSuccessRate float64 `yaml:"vendor_success_rate"`
	// InsertBatchSize bounds each communication-log insert batch.
	InsertBatchSize int `yaml:"insert_batch_size"`
}

// ReceiptsConfig holds delivery-receipt batcher settings.
type ReceiptsConfig struct {
	// BatchSize triggers a flush when this many events have accumulated.
	BatchSize int `yaml:"batch_size"`
	// FlushIntervalMS flushes a partial batch after this much inactivity.
	FlushIntervalMS int `yaml:"flush_interval_ms"`
	// AckPolicy is "on_admit" (ack as soon as an event enters the batch,
	// at-most-once) or "after_flush" (ack after the bulk update commits,
	// at-least-once).
	AckPolicy string `yaml:"ack_policy"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Load reads configuration from a YAML file and applies defaults.
// A missing file is not an error; defaults plus env overrides still apply.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Delivery.VendorSuccessRate == 0 {
		cfg.Delivery.VendorSuccessRate = 0.9
	}
	if cfg.Delivery.InsertBatchSize == 0 {
		cfg.Delivery.InsertBatchSize = 50
	}
	if cfg.Receipts.BatchSize == 0 {
		cfg.Receipts.BatchSize = 20
	}
	if cfg.Receipts.FlushIntervalMS == 0 {
		cfg.Receipts.FlushIntervalMS = 3000
	}
	if cfg.Receipts.AckPolicy == "" {
		cfg.Receipts.AckPolicy = "on_admit"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It loads a .env file (if present) first, so secrets can live in .env
// locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RECEIPT_ACK_POLICY"); v != "" {
		cfg.Receipts.AckPolicy = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg, nil
}
