package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Zendesk  ZendeskConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
}

// ZendeskConfig holds remote API configuration
type ZendeskConfig struct {
	BaseURL   string
	Email     string
	APIToken  string
	Timeout   time.Duration
	PageDelay time.Duration // minimum delay between paginated requests
	MaxPages  int           // safety ceiling for a single window's pagination
}

// StorageConfig holds destination and auxiliary store configuration
type StorageConfig struct {
	PostgresURI     string
	TicketsTable    string
	ActivitiesTable string
	MaxColumnWidth  int

	// Optional run-status store (DynamoDB)
	Region         string
	StatusTable    string
	DynamoEndpoint string // custom endpoint for local testing

	// Optional raw-record archive (MongoDB)
	MongoDBURI    string
	MongoDatabase string

	// Optional failed-window dead letter (Redis)
	RedisURL string
}

// PipelineConfig holds batching and concurrency configuration
type PipelineConfig struct {
	BatchSize int
	Workers   int
	ExportDir string
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		Zendesk: ZendeskConfig{
			BaseURL:   getEnv("ZENDESK_BASE_URL", ""),
			Email:     getEnv("ZENDESK_EMAIL", ""),
			APIToken:  getEnv("ZENDESK_TOKEN", ""),
			Timeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			PageDelay: getEnvDuration("PAGE_DELAY", time.Second),
			MaxPages:  getEnvInt("MAX_PAGES", 1000),
		},
		Storage: StorageConfig{
			PostgresURI:     getEnv("POSTGRES_URI", ""),
			TicketsTable:    getEnv("TICKETS_TABLE", "sac_tickets"),
			ActivitiesTable: getEnv("ACTIVITIES_TABLE", "sac_activities"),
			MaxColumnWidth:  getEnvInt("MAX_COLUMN_WIDTH", 255),
			Region:          getEnv("AWS_REGION", "us-west-2"),
			StatusTable:     getEnv("STATUS_TABLE", ""),
			DynamoEndpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			MongoDBURI:      getEnv("MONGODB_URI", ""),
			MongoDatabase:   getEnv("MONGODB_DATABASE", "zendesk_raw"),
			RedisURL:        getEnv("REDIS_URL", ""),
		},
		Pipeline: PipelineConfig{
			BatchSize: getEnvInt("BATCH_SIZE", 500),
			Workers:   getEnvInt("WORKERS", defaultWorkers()),
			ExportDir: getEnv("EXPORT_DIR", "."),
		},
	}

	if cfg.Zendesk.BaseURL == "" {
		return nil, fmt.Errorf("ZENDESK_BASE_URL is required")
	}
	if cfg.Zendesk.Email == "" || cfg.Zendesk.APIToken == "" {
		return nil, fmt.Errorf("ZENDESK_EMAIL and ZENDESK_TOKEN are required")
	}

	return cfg, nil
}

// defaultWorkers sizes the worker pool to available parallelism minus one,
// never below one, so the destination is not saturated.
func defaultWorkers() int {
	if n := runtime.NumCPU() - 1; n > 1 {
		return n
	}
	return 1
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
