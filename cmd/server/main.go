package main

import (
	"answerhub/internal/config"
	"answerhub/internal/database"
	"answerhub/internal/handlers"
	"answerhub/internal/logging"
	"answerhub/internal/middleware"
	"answerhub/internal/services"
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting AnswerHub Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	log.Printf("📋 Configuration loaded (Port: %s, Threshold: %.2f, TTL: %s)",
		cfg.Port, cfg.SimilarityThreshold, cfg.CacheTTL)

	// Knowledge cache (one slot, whole record replaced atomically)
	knowledgeCache := services.NewKnowledgeCache(cfg.CacheTTL)

	// Fallback dataset: YAML file when configured, built-in entries otherwise
	fallbackData := services.NewFallbackDataset(cfg.FallbackFile)
	if cfg.FallbackFile != "" {
		go startFallbackFileWatcher(cfg.FallbackFile, fallbackData)
	}

	// Live source: webhook takes priority, MongoDB serves seeded deployments
	var mongoDB *database.MongoDB
	var source services.DocumentSource
	if cfg.WebhookURL != "" {
		source = services.NewWebhookSource(cfg.WebhookURL, cfg.WebhookToken, cfg.FetchTimeout)
		log.Printf("🌐 Live knowledge source: webhook (%s)", cfg.WebhookURL)
	} else if cfg.MongoURI != "" {
		mongoDB, err = database.NewMongoDB(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			log.Fatalf("❌ Failed to connect to MongoDB: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := mongoDB.Initialize(ctx); err != nil {
			log.Printf("⚠️  Failed to initialize MongoDB indexes: %v", err)
		}
		cancel()
		source = services.NewMongoSource(mongoDB)
		log.Println("🌐 Live knowledge source: MongoDB")
	} else {
		log.Println("⚠️  No live knowledge source configured, serving fallback data only")
	}

	fetcher := services.NewKnowledgeFetcher(knowledgeCache, source, fallbackData, cfg.FetchRatePerSec)

	// Embedding tier (optional)
	var matcher *services.Matcher
	if cfg.OllamaURL != "" {
		embedder, err := services.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbeddingModel)
		if err != nil {
			log.Fatalf("❌ Invalid Ollama configuration: %v", err)
		}
		matcher = services.NewMatcher(embedder)
		log.Printf("🧠 Embedding matcher enabled (model: %s)", cfg.EmbeddingModel)
	} else {
		log.Println("⚠️  No embedding backend configured, using keyword matching only")
	}

	// External ranker tier (optional)
	var ranker *services.RankerClient
	if cfg.RankerURL != "" {
		ranker = services.NewRankerClient(cfg.RankerURL, cfg.RankerTimeout, cfg.RankerConfidence, cfg.RankerSentinel)
		log.Printf("🎯 External ranker enabled (%s)", cfg.RankerURL)
	}

	// Redis cache invalidation fan-out (optional)
	var invalidator *services.CacheInvalidator
	if cfg.RedisURL != "" {
		redisService, err := services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️  Redis unavailable, cache clears stay local: %v", err)
		} else {
			invalidator = services.NewCacheInvalidator(redisService, knowledgeCache, uuid.NewString())
			if err := invalidator.Start(); err != nil {
				log.Printf("⚠️  Failed to start cache invalidation listener: %v", err)
				invalidator = nil
			}
		}
	}

	// Metrics
	metrics := services.InitMetrics()

	// Engine facade
	if cfg.UseMockData {
		log.Println("⚠️  USE_MOCK_DATA is set, serving the fallback dataset as mock data")
	}
	queryService := services.NewQueryService(
		fetcher, matcher, ranker, knowledgeCache, invalidator, metrics,
		cfg.SimilarityThreshold, cfg.UseMockData,
	)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "AnswerHub v1.0",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // queries are small JSON bodies
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("answerhub")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Query=%d/min, Batch=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.QueryMax,
		rateLimitConfig.BatchMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowedOrigins != "*",
	}))

	app.Use(middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(queryService)
	queryHandler := handlers.NewQueryHandler(queryService)
	cacheHandler := handlers.NewCacheHandler(queryService)

	// Routes
	app.Get("/health", healthHandler.Handle)
	app.Post("/query", middleware.QueryRateLimiter(rateLimitConfig), queryHandler.HandleQuery)
	app.Post("/query/batch", middleware.BatchRateLimiter(rateLimitConfig), queryHandler.HandleBatchQuery)
	app.Get("/cache/info", cacheHandler.HandleInfo)
	app.Post("/cache/clear", cacheHandler.HandleClear)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if invalidator != nil {
			invalidator.Stop()
		}

		if mongoDB != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := mongoDB.Close(ctx); err != nil {
				log.Printf("⚠️ Error closing MongoDB: %v", err)
			}
			cancel()
		}

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// startFallbackFileWatcher watches the fallback dataset file for changes
// and hot-reloads it
func startFallbackFileWatcher(filePath string, dataset *services.FallbackDataset) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, reloading fallback dataset...", filePath)

					if err := dataset.Reload(); err != nil {
						log.Printf("❌ Failed to reload fallback dataset: %v", err)
					} else {
						log.Printf("✅ Fallback dataset reloaded from %s", filePath)
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
