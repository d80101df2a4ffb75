package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"praxis/internal/config"
	"praxis/internal/database"
	"praxis/internal/handlers"
	"praxis/internal/logging"
	"praxis/internal/middleware"
	"praxis/internal/models"
	"praxis/internal/preflight"
	"praxis/internal/scoring"
	"praxis/internal/services"
	"praxis/internal/store"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Praxis Server...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, DB: %s)", cfg.Port, cfg.DatabaseURL)

	// Load engine parameters (weights, caps, thresholds, reward schedule).
	// Invalid parameters are a startup error, never discovered mid-computation.
	engineCfg, err := config.LoadEngineConfig(cfg.ParamsFile)
	if err != nil {
		log.Fatalf("❌ Failed to load engine parameters: %v", err)
	}
	log.Printf("⚙️  Engine parameters loaded from %s", cfg.ParamsFile)

	// Initialize database (MySQL DSN or local SQLite file)
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Initialize(); err != nil {
		log.Fatalf("❌ Failed to initialize database: %v", err)
	}

	// Initialize MongoDB (optional - for distribution run archiving)
	var mongoDB *database.MongoDB
	if cfg.MongoURI != "" {
		log.Println("🔗 Connecting to MongoDB...")
		mongoDB, err = database.NewMongoDB(cfg.MongoURI)
		if err != nil {
			log.Printf("⚠️ Failed to connect to MongoDB: %v (distribution archiving disabled)", err)
			mongoDB = nil
		} else {
			defer mongoDB.Close(context.Background())
		}
	} else {
		log.Println("⚠️ MONGODB_URI not set - distribution archiving disabled")
	}

	// Initialize Redis service (for cross-instance pub/sub + scheduler locks)
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		log.Println("🔗 Connecting to Redis...")
		redisService, err = services.NewRedisService(cfg.RedisURL)
		if err != nil {
			log.Printf("⚠️ Failed to connect to Redis: %v (running single-instance)", err)
			redisService = nil
		} else {
			log.Println("✅ Redis connected successfully")
			defer redisService.Close()
		}
	} else {
		log.Println("⚠️ REDIS_URL not set - running single-instance")
	}

	// Run preflight checks
	checker := preflight.NewChecker(db, cfg.ParamsFile)
	results := checker.RunAll()
	if preflight.HasFailures(results) {
		log.Println("\n❌ Pre-flight checks failed. Please fix the issues above before starting the server.")
		os.Exit(1)
	}

	// Stores
	sqlStore := store.NewSQL(db)
	standardStore := sqlStore.Standards()
	distributionStore := sqlStore.Distributions()

	// Seed the usage high-water mark from persisted stats so the logarithmic
	// normalization survives restarts.
	maxUsage, err := sqlStore.MaxUsageCount(context.Background())
	if err != nil {
		log.Fatalf("❌ Failed to read max usage count: %v", err)
	}
	highWater := scoring.NewUsageHighWater(maxUsage)
	log.Printf("📈 Usage high-water mark seeded at %d", maxUsage)

	scorer, err := scoring.NewScorer(engineCfg.Scoring, highWater)
	if err != nil {
		log.Fatalf("❌ Invalid scoring parameters: %v", err)
	}

	// Connection manager + metrics
	connManager := services.NewConnectionManager()
	metrics := services.InitMetrics(connManager)

	// Notification fan-out: server log + websocket subscribers, plus Redis
	// pub/sub and webhooks when configured.
	notifier := services.NewFanoutNotifier(services.LogNotifier{}, connManager)

	instanceID := uuid.New().String()
	var pubsubService *services.PubSubService
	if redisService != nil {
		pubsubService = services.NewPubSubService(redisService, instanceID)
		// Transitions from other instances still reach local websocket clients
		pubsubService.Subscribe(func(n models.Notification) {
			connManager.Notify(context.Background(), n)
		})
		if err := pubsubService.Start(); err != nil {
			log.Printf("⚠️ Failed to start pub/sub: %v", err)
			pubsubService = nil
		} else {
			notifier.Add(pubsubService)
		}
	}

	if len(cfg.WebhookURLs) > 0 {
		webhookDispatcher := services.NewWebhookDispatcher(cfg.WebhookURLs)
		notifier.Add(webhookDispatcher)
		log.Printf("🔔 Webhook notifications enabled (%d subscribers)", len(cfg.WebhookURLs))
	}

	// Core services
	standardizationService, err := services.NewStandardizationService(
		standardStore, sqlStore, engineCfg.Standardization, notifier, metrics)
	if err != nil {
		log.Fatalf("❌ Invalid standardization thresholds: %v", err)
	}

	ledgerService := services.NewLedgerService(
		sqlStore, sqlStore, standardStore, scorer, standardizationService, metrics)

	distributionService := services.NewDistributionService(
		sqlStore, standardStore, distributionStore, mongoDB,
		engineCfg.Rewards.StandardBonus, metrics)

	schedulerService, err := services.NewSchedulerService(distributionService, redisService)
	if err != nil {
		log.Fatalf("❌ Failed to create scheduler: %v", err)
	}
	if err := schedulerService.Start(engineCfg.Rewards.Schedule); err != nil {
		log.Fatalf("❌ Failed to start scheduler: %v", err)
	}

	// Hot-reload engine parameters on file change
	go startEngineParamsWatcher(cfg.ParamsFile, scorer, standardizationService, distributionService, schedulerService)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Praxis v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("praxis")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Rate limiting
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Ingest=%d/min, Distribute=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.IngestMax,
		rateLimitConfig.DistributeMax,
		rateLimitConfig.WebSocketMax,
	)

	// CORS configuration with environment-based origins
	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173,http://localhost:3000"
		log.Println("⚠️  ALLOWED_ORIGINS not set, using development defaults")
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))

	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(connManager)
	usageHandler := handlers.NewUsageHandler(ledgerService)
	taskHandler := handlers.NewTaskHandler(ledgerService)
	userHandler := handlers.NewUserHandler(ledgerService)
	distributionHandler := handlers.NewDistributionHandler(distributionService)
	eventsWSHandler := handlers.NewEventsWebSocketHandler(connManager)

	// Routes
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")
	api.Post("/usage", middleware.IngestRateLimiter(rateLimitConfig), usageHandler.Record)
	api.Get("/tasks", taskHandler.List)
	api.Get("/tasks/:taskId/ranking", taskHandler.Ranking)
	api.Get("/tasks/:taskId/standard/history", taskHandler.StandardHistory)
	api.Get("/users/:userId/stats", userHandler.Stats)
	api.Post("/distributions", middleware.DistributeRateLimiter(rateLimitConfig), distributionHandler.Run)
	api.Get("/distributions/:id", distributionHandler.Get)
	api.Get("/distributions/:id/report", distributionHandler.Report)

	// WebSocket event feed
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Use("/ws/events", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Get("/ws/events", websocket.New(eventsWSHandler.Handle))

	// Start server
	log.Printf("✅ Server ready on port %s", cfg.Port)
	log.Printf("🔗 Event feed: ws://localhost:%s/ws/events", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		if err := schedulerService.Stop(); err != nil {
			log.Printf("⚠️ Error stopping scheduler: %v", err)
		}

		if pubsubService != nil {
			if err := pubsubService.Stop(); err != nil {
				log.Printf("⚠️ Error stopping PubSub: %v", err)
			}
		}

		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// startEngineParamsWatcher watches the engine params file and hot-swaps the
// scoring weights, standardization thresholds and reward schedule on change.
// A reload never touches already-recorded events: scores are frozen at write
// time.
func startEngineParamsWatcher(
	filePath string,
	scorer *scoring.Scorer,
	standardizationService *services.StandardizationService,
	distributionService *services.DistributionService,
	schedulerService *services.SchedulerService,
) {
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

	// Watch the directory containing the file (more reliable than watching
	// the file directly)
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
					log.Printf("🔄 Detected changes in %s, reloading engine parameters...", filePath)

					engineCfg, err := config.LoadEngineConfig(filePath)
					if err != nil {
						log.Printf("❌ Rejected engine params change: %v", err)
						return
					}

					if err := scorer.SetParams(engineCfg.Scoring); err != nil {
						log.Printf("❌ Rejected scoring params: %v", err)
						return
					}
					if err := standardizationService.SetThresholds(engineCfg.Standardization); err != nil {
						log.Printf("❌ Rejected standardization thresholds: %v", err)
						return
					}
					if err := distributionService.SetStandardBonus(engineCfg.Rewards.StandardBonus); err != nil {
						log.Printf("❌ Rejected standard bonus: %v", err)
						return
					}
					if err := schedulerService.Reconfigure(engineCfg.Rewards.Schedule); err != nil {
						log.Printf("❌ Rejected distribution schedule: %v", err)
						return
					}

					log.Printf("✅ Engine parameters reloaded from %s", filePath)
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
