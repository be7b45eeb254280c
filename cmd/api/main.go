package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carriershark/backend/internal/adapters/cache"
	"github.com/carriershark/backend/internal/adapters/database"
	"github.com/carriershark/backend/internal/adapters/ocr"
	"github.com/carriershark/backend/internal/adapters/storage"
	"github.com/carriershark/backend/internal/api/handlers"
	"github.com/carriershark/backend/internal/api/routes"
	"github.com/carriershark/backend/internal/application/services"
	"github.com/carriershark/backend/internal/domain/providers"
	"github.com/carriershark/backend/internal/domain/repositories"
	"github.com/carriershark/backend/internal/infrastructure/clients/postgres"
	"github.com/carriershark/backend/internal/infrastructure/clients/redis"
	"github.com/carriershark/backend/internal/infrastructure/clients/spaces"
	"github.com/carriershark/backend/internal/infrastructure/clients/textract"
	"github.com/carriershark/backend/internal/infrastructure/observability"
	"github.com/carriershark/backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - the application can work without caching
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize object storage client
	s3Client, err := spaces.NewClient(ctx, &cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize object storage client: %v", err)
	}
	objectStorage := storage.NewS3Adapter(s3Client)

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Select the OCR backend
	var ocrProvider providers.DocumentOCRProvider
	switch cfg.OCR.Provider {
	case "vision":
		ocrProvider = ocr.NewVisionAdapter(objectStorage, ocr.VisionConfig{
			Endpoint:  cfg.Vision.Endpoint,
			APIKey:    cfg.Vision.APIKey,
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			MaxWait:   time.Duration(cfg.OCR.MaxWaitSeconds) * time.Second,
		})
		log.Println("OCR backend: vision")
	default:
		textractClient, err := textract.NewClient(ctx, &cfg.Storage)
		if err != nil {
			log.Fatalf("Failed to initialize Textract client: %v", err)
		}
		ocrProvider = ocr.NewTextractAdapter(textractClient, objectStorage, ocr.TextractConfig{
			Bucket:    cfg.Storage.Bucket,
			KeyPrefix: cfg.Storage.KeyPrefix,
			MaxWait:   time.Duration(cfg.OCR.MaxWaitSeconds) * time.Second,
		})
		log.Println("OCR backend: textract")
	}

	// Initialize adapters
	documentAdapter := database.NewInsuranceDocumentAdapter(pgClient)

	baseCoverageAdapter := database.NewCoverageAdapter(pgClient)
	var coverageAdapter repositories.CoverageRepository
	if cacheProvider != nil {
		coverageAdapter = database.NewCachedCoverageAdapter(baseCoverageAdapter, cacheProvider)
		log.Println("Coverage adapter wrapped with caching layer")
	} else {
		coverageAdapter = baseCoverageAdapter
		log.Println("Coverage adapter running without cache (Redis unavailable)")
	}

	// Initialize services
	documentService := services.NewDocumentService(
		documentAdapter,
		objectStorage,
		cfg.Storage.Bucket,
		cfg.Storage.KeyPrefix,
	)
	parseService := services.NewDocumentParseService(
		documentAdapter,
		coverageAdapter,
		objectStorage,
		ocrProvider,
		cfg.Storage.Bucket,
		metrics,
	)

	// Initialize handlers
	documentHandler := handlers.NewDocumentHandler(documentService, parseService)
	coverageHandler := handlers.NewCoverageHandler(coverageAdapter)

	// Set up router
	router := routes.NewRouter(documentHandler, coverageHandler, metrics)
	handler := router.SetupRoutes()

	// Create HTTP server. Write timeout must exceed the OCR wait budget since
	// document parsing is synchronous.
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: time.Duration(cfg.OCR.MaxWaitSeconds+30) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	log.Println("Server stopped")
}
