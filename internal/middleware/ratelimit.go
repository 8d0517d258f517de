package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Query endpoint limits (per IP) - each query may hit the embedding backend
	QueryMax        int
	QueryExpiration time.Duration

	// Batch endpoint limits (per IP) - one request fans out to many questions
	BatchMax        int
	BatchExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min = ~3.3 req/sec - very generous for normal use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Queries: 60/min = 1 req/sec average
		QueryMax:        60,
		QueryExpiration: 1 * time.Minute,

		// Batches: 10/min (each batch embeds every question)
		BatchMax:        10,
		BatchExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_QUERY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.QueryMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.BatchMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.QueryMax = 500
		config.BatchMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
		SkipFailedRequests:     false,
		SkipSuccessfulRequests: false,
	})
}

// QueryRateLimiter for the single-question endpoint
func QueryRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.QueryMax,
		Expiration: config.QueryExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "query:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Query limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many queries. Please wait before trying again.",
				"retry_after": int(config.QueryExpiration.Seconds()),
			})
		},
	})
}

// BatchRateLimiter for the batch endpoint
func BatchRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.BatchMax,
		Expiration: config.BatchExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "batch:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Batch limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many batch requests. Please wait.",
				"retry_after": int(config.BatchExpiration.Seconds()),
			})
		},
	})
}
