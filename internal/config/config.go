package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// Knowledge base source
	WebhookURL   string // primary live source; empty disables the live tier
	WebhookToken string // bearer token for the webhook, optional
	MongoURI     string // seed-tier document store; empty disables Mongo
	MongoDB      string

	// Retrieval behavior
	CacheTTL        time.Duration
	FetchTimeout    time.Duration
	FetchRatePerSec float64 // outbound webhook request budget
	FallbackFile    string  // YAML fallback dataset, hot-reloaded; empty disables
	UseMockData     bool    // serve the fallback dataset as mock data, skip live fetches

	// Matching
	SimilarityThreshold float64
	OllamaURL           string // embedding backend; empty disables embedding tier
	EmbeddingModel      string

	// External ranker
	RankerURL        string // empty disables the ranker tier
	RankerTimeout    time.Duration
	RankerConfidence float64
	RankerSentinel   string

	// Infrastructure
	RedisURL string // cache invalidation fan-out, optional
}

// Load loads configuration from environment variables with defaults
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),

		WebhookURL:   getEnv("KNOWLEDGE_WEBHOOK_URL", ""),
		WebhookToken: getEnv("KNOWLEDGE_WEBHOOK_TOKEN", ""),
		MongoURI:     getEnv("MONGODB_URI", ""),
		MongoDB:      getEnv("MONGODB_DATABASE", "answerhub"),

		CacheTTL:        time.Duration(getIntEnv("CACHE_TTL_SECONDS", 300)) * time.Second,
		FetchTimeout:    time.Duration(getIntEnv("FETCH_TIMEOUT_SECONDS", 15)) * time.Second,
		FetchRatePerSec: getFloatEnv("FETCH_RATE_PER_SECOND", 2.0),
		FallbackFile:    getEnv("FALLBACK_DATA_FILE", ""),
		UseMockData:     getBoolEnv("USE_MOCK_DATA", false),

		SimilarityThreshold: getFloatEnv("SIMILARITY_THRESHOLD", 0.6),
		OllamaURL:           getEnv("OLLAMA_URL", ""),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "nomic-embed-text"),

		RankerURL:        getEnv("RANKER_URL", ""),
		RankerTimeout:    time.Duration(getIntEnv("RANKER_TIMEOUT_SECONDS", 30)) * time.Second,
		RankerConfidence: getFloatEnv("RANKER_CONFIDENCE_THRESHOLD", 0.5),
		RankerSentinel:   getEnv("RANKER_SENTINEL", "No matching data found"),

		RedisURL: getEnv("REDIS_URL", ""),
	}

	if cfg.SimilarityThreshold < 0 || cfg.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in [0,1], got %v", cfg.SimilarityThreshold)
	}
	if cfg.RankerConfidence < 0 || cfg.RankerConfidence > 1 {
		return nil, fmt.Errorf("RANKER_CONFIDENCE_THRESHOLD must be in [0,1], got %v", cfg.RankerConfidence)
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
