// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// storage backend, the serving cache, and the optional Redis, Kafka and
// PostgreSQL integrations.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage modes accepted by StorageConfig.Mode.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Cache     CacheConfig     `yaml:"cache"`
	Search    SearchConfig    `yaml:"search"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig selects and configures the corpus/snapshot backend.
type StorageConfig struct {
	Mode           string               `yaml:"mode"`
	LocalDir       string               `yaml:"localDir"`
	Bucket         string               `yaml:"bucket"`
	Region         string               `yaml:"region"`
	Endpoint       string               `yaml:"endpoint"`
	UsePathStyle   bool                 `yaml:"usePathStyle"`
	Retry          RetryConfig          `yaml:"retry"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RetryConfig controls the object-store client retry wrapper. MaxAttempts of
// 1 disables retries.
type RetryConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	InitialDelay time.Duration `yaml:"initialDelay"`
	MaxDelay     time.Duration `yaml:"maxDelay"`
}

// CircuitBreakerConfig controls when the object-store client stops calling
// a failing endpoint and how many trial calls it lets through after
// ResetTimeout before closing again.
type CircuitBreakerConfig struct {
	FailureThreshold    int           `yaml:"failureThreshold"`
	ResetTimeout        time.Duration `yaml:"resetTimeout"`
	HalfOpenMaxRequests int           `yaml:"halfOpenMaxRequests"`
}

// CacheConfig bounds the serving-session cache holding loaded indexes.
type CacheConfig struct {
	TTL      time.Duration `yaml:"ttl"`
	Capacity int           `yaml:"capacity"`
}

// SearchConfig controls query limits.
type SearchConfig struct {
	DefaultLimit int `yaml:"defaultLimit"`
	MaxLimit     int `yaml:"maxLimit"`
}

// PostgresConfig holds PostgreSQL connection parameters for the build ledger.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	QuoteSubmitted string `yaml:"quoteSubmitted"`
	IndexBuilt     string `yaml:"indexBuilt"`
}

// RedisConfig holds Redis connection and document caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// RateLimitConfig bounds quote submissions per client.
type RateLimitConfig struct {
	QuotesPerWindow int           `yaml:"quotesPerWindow"`
	Window          time.Duration `yaml:"window"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that cannot produce a working backend.
func (c *Config) Validate() error {
	switch c.Storage.Mode {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.localDir is required in %s mode", StorageLocal)
		}
	case StorageS3:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required in %s mode", StorageS3)
		}
	default:
		return fmt.Errorf("unknown storage mode %q (want %s or %s)", c.Storage.Mode, StorageLocal, StorageS3)
	}
	if c.Cache.TTL <= 0 || c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache ttl and capacity must be positive")
	}
	if c.Search.DefaultLimit <= 0 || c.Search.MaxLimit < c.Search.DefaultLimit {
		return fmt.Errorf("search.defaultLimit must be positive and not exceed search.maxLimit")
	}
	return nil
}

// defaultConfig returns a Config suitable for local development against a
// ./quotes directory.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Mode:     StorageLocal,
			LocalDir: "quotes",
			Region:   "eu-west-1",
			Retry: RetryConfig{
				MaxAttempts:  3,
				InitialDelay: 100 * time.Millisecond,
				MaxDelay:     2 * time.Second,
			},
			CircuitBreaker: CircuitBreakerConfig{
				FailureThreshold:    5,
				ResetTimeout:        30 * time.Second,
				HalfOpenMaxRequests: 1,
			},
		},
		Cache: CacheConfig{
			TTL:      3 * time.Hour,
			Capacity: 4,
		},
		Search: SearchConfig{
			DefaultLimit: 1,
			MaxLimit:     20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "quoteindex",
			User:            "quoteindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "quoteindex-indexer",
			Topics: KafkaTopics{
				QuoteSubmitted: "quote.submitted",
				IndexBuilt:     "index.built",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			QuotesPerWindow: 10,
			Window:          time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads QI_* environment variables (and the legacy S3_*
// names) and overrides the corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QI_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("QI_STORAGE_MODE"); v != "" {
		cfg.Storage.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("QI_STORAGE_LOCAL_DIR"); v != "" {
		cfg.Storage.LocalDir = v
	}
	if v := firstEnv("QI_STORAGE_BUCKET", "S3_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := firstEnv("QI_STORAGE_REGION", "S3_REGION"); v != "" {
		cfg.Storage.Region = v
	}
	if v := os.Getenv("QI_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("QI_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("QI_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v)
	}
	if v := os.Getenv("QI_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("QI_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("QI_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v)
	}
	if v := os.Getenv("QI_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("QI_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v)
	}
	if v := os.Getenv("QI_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QI_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("QI_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QI_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
