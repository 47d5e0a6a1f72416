package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/septivank/meter-verification-engine/internal/consensus"
)

// Config holds all application configuration
type Config struct {
	ServiceName string
	LogLevel    string
	Database    DatabaseConfig
	RabbitMQ    RabbitMQConfig
	Fraud       FraudConfig
	OCR         OCRConfig
	Storage     StorageConfig
	Consensus   ConsensusConfig
	Redis       RedisConfig
	Metrics     MetricsConfig
	Pipeline    PipelineConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string
	MaxConns int
}

// RabbitMQConfig holds RabbitMQ connection and queue settings
type RabbitMQConfig struct {
	URL                 string
	VerifyExchange      string
	VerifyQueue         string
	VerifyRoutingKey    string
	EventsExchange      string
	CompletedRoutingKey string
	RejectedRoutingKey  string
	DLQQueue            string
	PrefetchCount       int
}

// FraudConfig holds fraud scoring settings
type FraudConfig struct {
	Enabled            bool
	TypicalConsumption float64
	MaxImageAge        time.Duration
	MaxImagePixels     int
}

// OCRConfig holds OCR service and source selection settings
type OCRConfig struct {
	Endpoint                  string
	APIKey                    string
	EngineName                string
	Timeout                   time.Duration
	ClientConfidenceThreshold float64
}

// StorageConfig holds the IPFS-pinning S3 gateway settings. Storage is disabled when Bucket is empty.
type StorageConfig struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	GatewayURL string
	Timeout    time.Duration
}

// ConsensusConfig holds consensus log settings
type ConsensusConfig struct {
	Enabled      bool
	Exchange     string
	Topics       map[string]string
	DefaultTopic string
	Timeout      time.Duration
}

// RedisConfig holds the optional meter lock settings. Locking is disabled when URL is empty.
type RedisConfig struct {
	URL     string
	LockTTL time.Duration
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// PipelineConfig holds verification pipeline settings
type PipelineConfig struct {
	HistoryLimit   int
	ProcessTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("SERVICE_NAME", "meter-verification-engine"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 10),
		},
		RabbitMQ: RabbitMQConfig{
			URL:                 getEnv("RABBITMQ_URL", ""),
			VerifyExchange:      getEnv("RABBITMQ_VERIFY_EXCHANGE", "meter-verification.requests.exchange"),
			VerifyQueue:         getEnv("RABBITMQ_VERIFY_QUEUE", "meter-verification.requests.queue"),
			VerifyRoutingKey:    getEnv("RABBITMQ_VERIFY_ROUTING_KEY", "meter.reading.submitted"),
			EventsExchange:      getEnv("RABBITMQ_EVENTS_EXCHANGE", "meter-verification.events.exchange"),
			CompletedRoutingKey: getEnv("RABBITMQ_COMPLETED_ROUTING_KEY", "meter.reading.verified"),
			RejectedRoutingKey:  getEnv("RABBITMQ_REJECTED_ROUTING_KEY", "meter.reading.rejected"),
			DLQQueue:            getEnv("RABBITMQ_DLQ_QUEUE", "meter-verification.requests.dlq"),
			PrefetchCount:       getEnvAsInt("RABBITMQ_PREFETCH", 4),
		},
		Fraud: FraudConfig{
			Enabled:            getEnvAsBool("FRAUD_DETECTION_ENABLED", true),
			TypicalConsumption: getEnvAsFloat("FRAUD_TYPICAL_CONSUMPTION_KWH", 2000),
			MaxImageAge:        getEnvAsDuration("FRAUD_MAX_IMAGE_AGE", 7*24*time.Hour),
			MaxImagePixels:     getEnvAsInt("FRAUD_MAX_IMAGE_PIXELS", 40_000_000),
		},
		OCR: OCRConfig{
			Endpoint:                  getEnv("OCR_ENDPOINT", ""),
			APIKey:                    getEnv("OCR_API_KEY", ""),
			EngineName:                getEnv("OCR_ENGINE_NAME", "server-ocr"),
			Timeout:                   getEnvAsDuration("OCR_TIMEOUT", 30*time.Second),
			ClientConfidenceThreshold: getEnvAsFloat("OCR_CLIENT_CONFIDENCE_THRESHOLD", 0.90),
		},
		Storage: StorageConfig{
			Endpoint:   getEnv("STORAGE_ENDPOINT", ""),
			Region:     getEnv("STORAGE_REGION", "us-east-1"),
			Bucket:     getEnv("STORAGE_BUCKET", ""),
			AccessKey:  getEnv("STORAGE_ACCESS_KEY", ""),
			SecretKey:  getEnv("STORAGE_SECRET_KEY", ""),
			Prefix:     getEnv("STORAGE_PREFIX", "meter-readings"),
			GatewayURL: getEnv("STORAGE_GATEWAY_URL", ""),
			Timeout:    getEnvAsDuration("STORAGE_TIMEOUT", 15*time.Second),
		},
		Consensus: ConsensusConfig{
			Enabled:      getEnvAsBool("CONSENSUS_ENABLED", true),
			Exchange:     getEnv("CONSENSUS_EXCHANGE", "meter-verification.consensus.exchange"),
			DefaultTopic: getEnv("CONSENSUS_DEFAULT_TOPIC", ""),
			Timeout:      getEnvAsDuration("CONSENSUS_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:     getEnv("REDIS_URL", ""),
			LockTTL: getEnvAsDuration("REDIS_LOCK_TTL", 2*time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("METRICS_ENABLED", true),
			Addr:    getEnv("METRICS_ADDR", ":2112"),
		},
		Pipeline: PipelineConfig{
			HistoryLimit:   getEnvAsInt("PIPELINE_HISTORY_LIMIT", 10),
			ProcessTimeout: getEnvAsDuration("PIPELINE_PROCESS_TIMEOUT", 2*time.Minute),
		},
	}

	topics, err := consensus.ParseTopicTable(getEnv("CONSENSUS_TOPICS", ""))
	if err != nil {
		return nil, fmt.Errorf("CONSENSUS_TOPICS: %w", err)
	}
	cfg.Consensus.Topics = topics

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set in environment variables")
	}
	if cfg.RabbitMQ.URL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required but not set in environment variables")
	}
	if cfg.OCR.ClientConfidenceThreshold <= 0 || cfg.OCR.ClientConfidenceThreshold > 1 {
		return nil, fmt.Errorf("OCR_CLIENT_CONFIDENCE_THRESHOLD must be in (0, 1]")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
