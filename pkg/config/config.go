// Package config loads and validates filerank configuration from YAML files
// with environment-variable overrides. It provides typed structs for the
// ranking parameters, the batch runner, input and output plumbing, and the
// optional Kafka, PostgreSQL and Redis backends.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/filerank/internal/searcher/reweight"
	apperrors "github.com/Adithya-Monish-Kumar-K/filerank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/filerank/pkg/resilience"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Ranking  RankingConfig  `yaml:"ranking"`
	Batch    BatchConfig    `yaml:"batch"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// RankingConfig holds the BM25 parameters, the wide and narrow cut-offs
// and the path re-weighting factors.
type RankingConfig struct {
	BM25     ranker.Params       `yaml:"bm25"`
	WideK    int                 `yaml:"wideK" validate:"gte=1,gtefield=NarrowK"`
	NarrowK  int                 `yaml:"narrowK" validate:"gte=1"`
	Reweight reweight.Reweighter `yaml:"reweight"`
}

// BatchConfig controls the worker pool.
type BatchConfig struct {
	Workers         int           `yaml:"workers" validate:"gte=1"`
	ContextTimeout  time.Duration `yaml:"contextTimeout" validate:"gte=0"`
	EmitEmptyCorpus bool          `yaml:"emitEmptyCorpus"`
}

// InputConfig describes where query contexts come from.
type InputConfig struct {
	Format         string   `yaml:"format" validate:"oneof=jsonl manifest kafka"`
	Path           string   `yaml:"path"`
	Topic          string   `yaml:"topic"`
	SnapshotDir    string   `yaml:"snapshotDir"`
	InstancePrefix string   `yaml:"instancePrefix"`
	Include        []string `yaml:"include"`
	Exclude        []string `yaml:"exclude"`
	MaxFileBytes   int64    `yaml:"maxFileBytes" validate:"gte=0"`
}

// OutputConfig selects the result sink.
type OutputConfig struct {
	Kind  string                 `yaml:"kind" validate:"oneof=jsonl kafka postgres"`
	Path  string                 `yaml:"path"`
	Topic string                 `yaml:"topic"`
	Table string                 `yaml:"table"`
	Retry resilience.RetryConfig `yaml:"retry"`
}

// KafkaConfig holds Kafka broker settings shared by the Kafka source and
// sink. IdleTimeout ends a Kafka-fed batch once no record arrived for
// that long.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	ConnectTimeout  time.Duration `yaml:"connectTimeout"`
}

// DSN returns a lib/pq-compatible data source name. Sessions are tagged
// with application_name=filerank.
func (p PostgresConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=filerank",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
	if secs := int(p.ConnectTimeout / time.Second); secs > 0 {
		dsn += fmt.Sprintf(" connect_timeout=%d", secs)
	}
	return dsn
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"poolSize"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// CacheConfig controls the optional ranked-result cache.
type CacheConfig struct {
	Enabled bool          `yaml:"enabled"`
	TTL     time.Duration `yaml:"ttl"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), loads a .env file next to
// the working directory when present, applies environment-variable
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidConfig, err)
	}
	if c.Input.Format == "manifest" && c.Input.SnapshotDir == "" {
		return fmt.Errorf("%w: input.snapshotDir is required for manifest input", apperrors.ErrInvalidConfig)
	}
	if c.Input.Format == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Input.Topic == "") {
		return fmt.Errorf("%w: kafka input needs brokers and input.topic", apperrors.ErrInvalidConfig)
	}
	if c.Output.Kind == "kafka" && (len(c.Kafka.Brokers) == 0 || c.Output.Topic == "") {
		return fmt.Errorf("%w: kafka output needs brokers and output.topic", apperrors.ErrInvalidConfig)
	}
	return nil
}

// Default returns a Config holding the documented ranking defaults.
func Default() *Config {
	return &Config{
		Ranking: RankingConfig{
			BM25:     ranker.DefaultParams(),
			WideK:    20,
			NarrowK:  5,
			Reweight: reweight.Default(),
		},
		Batch: BatchConfig{
			Workers:         4,
			ContextTimeout:  2 * time.Minute,
			EmitEmptyCorpus: true,
		},
		Input: InputConfig{
			Format:         "jsonl",
			Topic:          "query-contexts",
			InstancePrefix: "MONAI_",
			Include:        []string{"**/*.py"},
			MaxFileBytes:   1 << 20,
		},
		Output: OutputConfig{
			Kind:  "jsonl",
			Path:  "-",
			Topic: "ranked-hits",
			Table: "ranked_hits",
			Retry: resilience.DefaultRetryConfig(),
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "filerank",
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   30 * time.Second,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "filerank",
			User:            "filerank",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Cache: CacheConfig{
			Enabled: false,
			TTL:     24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides reads FR_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FR_RANKING_K1"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.BM25.K1 = f
		}
	}
	if v := os.Getenv("FR_RANKING_B"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ranking.BM25.B = f
		}
	}
	if v := os.Getenv("FR_RANKING_WIDE_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.WideK = k
		}
	}
	if v := os.Getenv("FR_RANKING_NARROW_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Ranking.NarrowK = k
		}
	}
	if v := os.Getenv("FR_BATCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Batch.Workers = n
		}
	}
	if v := os.Getenv("FR_BATCH_CONTEXT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Batch.ContextTimeout = d
		}
	}
	if v := os.Getenv("FR_INPUT_PATH"); v != "" {
		cfg.Input.Path = v
	}
	if v := os.Getenv("FR_INPUT_FORMAT"); v != "" {
		cfg.Input.Format = v
	}
	if v := os.Getenv("FR_OUTPUT_KIND"); v != "" {
		cfg.Output.Kind = v
	}
	if v := os.Getenv("FR_OUTPUT_PATH"); v != "" {
		cfg.Output.Path = v
	}
	if v := os.Getenv("FR_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FR_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("FR_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("FR_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("FR_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("FR_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("FR_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("FR_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("FR_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("FR_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FR_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
