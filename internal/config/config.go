package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the pipeline.
type Config struct {
	// HTTP listen address for the ingest/stats API
	HTTPAddr string
	// Log level: debug, info, warn, error
	LogLevel string

	Kafka    KafkaConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
}

// KafkaConfig configures the bus producer. Empty Brokers disables the bus.
type KafkaConfig struct {
	Brokers      []string
	MetricsTopic string
	AlertsTopic  string
	MaxRetries   int
	RetryBackoff time.Duration
	WriteTimeout time.Duration
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	// Backend: memory or influxdb
	Backend string

	// In-memory backend: max retained sample rows
	Capacity int

	// InfluxDB backend
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// PipelineConfig tunes worker and scheduling behaviour.
type PipelineConfig struct {
	Workers   int
	QueueSize int

	RealtimeInterval time.Duration
	RealtimeWindow   time.Duration
	HealthInterval   time.Duration
	SweepInterval    time.Duration

	// Sample retention applied by the daily cleanup job
	RetentionDays int
}

// Default returns a sensible default config for local dev.
func Default() *Config {
	return &Config{
		HTTPAddr: ":8080",
		LogLevel: "info",
		Kafka: KafkaConfig{
			Brokers:      nil, // bus disabled unless configured
			MetricsTopic: "metrics",
			AlertsTopic:  "alerts",
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			WriteTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Backend:      "memory",
			Capacity:     10000,
			InfluxBucket: "metrics",
		},
		Pipeline: PipelineConfig{
			Workers:          4,
			QueueSize:        4096,
			RealtimeInterval: 60 * time.Second,
			RealtimeWindow:   5 * time.Minute,
			HealthInterval:   60 * time.Second,
			SweepInterval:    30 * time.Second,
			RetentionDays:    30,
		},
	}
}

// Load reads environment variables over defaults. A .env file is loaded
// first if present.
func Load() *Config {
	_ = godotenv.Load()

	cfg := Default()

	cfg.HTTPAddr = getString("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LogLevel = getString("LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	cfg.Kafka.MetricsTopic = getString("KAFKA_METRICS_TOPIC", cfg.Kafka.MetricsTopic)
	cfg.Kafka.AlertsTopic = getString("KAFKA_ALERTS_TOPIC", cfg.Kafka.AlertsTopic)
	cfg.Kafka.MaxRetries = getInt("KAFKA_MAX_RETRIES", cfg.Kafka.MaxRetries)
	cfg.Kafka.RetryBackoff = getDuration("KAFKA_RETRY_BACKOFF", cfg.Kafka.RetryBackoff)
	cfg.Kafka.WriteTimeout = getDuration("KAFKA_WRITE_TIMEOUT", cfg.Kafka.WriteTimeout)

	cfg.Storage.Backend = getString("STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Capacity = getInt("STORAGE_CAPACITY", cfg.Storage.Capacity)
	cfg.Storage.InfluxURL = getString("INFLUX_URL", cfg.Storage.InfluxURL)
	cfg.Storage.InfluxToken = getString("INFLUX_TOKEN", cfg.Storage.InfluxToken)
	cfg.Storage.InfluxOrg = getString("INFLUX_ORG", cfg.Storage.InfluxOrg)
	cfg.Storage.InfluxBucket = getString("INFLUX_BUCKET", cfg.Storage.InfluxBucket)

	cfg.Pipeline.Workers = getInt("PIPELINE_WORKERS", cfg.Pipeline.Workers)
	cfg.Pipeline.QueueSize = getInt("PIPELINE_QUEUE_SIZE", cfg.Pipeline.QueueSize)
	cfg.Pipeline.RealtimeInterval = getDuration("REALTIME_INTERVAL", cfg.Pipeline.RealtimeInterval)
	cfg.Pipeline.RealtimeWindow = getDuration("REALTIME_WINDOW", cfg.Pipeline.RealtimeWindow)
	cfg.Pipeline.HealthInterval = getDuration("HEALTH_INTERVAL", cfg.Pipeline.HealthInterval)
	cfg.Pipeline.SweepInterval = getDuration("SWEEP_INTERVAL", cfg.Pipeline.SweepInterval)
	cfg.Pipeline.RetentionDays = getInt("RETENTION_DAYS", cfg.Pipeline.RetentionDays)

	return cfg
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
