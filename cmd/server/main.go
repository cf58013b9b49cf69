package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/analyzer"
	"github.com/postecho/postecho/internal/api"
	"github.com/postecho/postecho/internal/cache"
	"github.com/postecho/postecho/internal/db"
	"github.com/postecho/postecho/internal/intent"
	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/internal/onboarding"
	"github.com/postecho/postecho/internal/orchestrator"
	"github.com/postecho/postecho/internal/retrieval"
	"github.com/postecho/postecho/internal/scraper"
	"github.com/postecho/postecho/internal/tasks"
	"github.com/postecho/postecho/internal/validator"
	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting PostEcho API Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Initialize database
	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	// Initialize Redis cache
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisCache.Close()

	// Initialize model clients
	completer, err := llm.NewClient(&cfg.Gemini)
	if err != nil {
		logger.Fatal("Failed to create completion client", zap.Error(err))
	}
	embedder, err := llm.NewEmbedder(&cfg.Gemini)
	if err != nil {
		logger.Fatal("Failed to create embedding client", zap.Error(err))
	}
	jobs, err := scraper.New(&cfg.Scraper)
	if err != nil {
		logger.Fatal("Failed to create scraping client", zap.Error(err))
	}

	// Wire the core
	repo := db.NewRepository(database.DB)
	users := db.NewUserRepository(repo)
	posts := db.NewPostRepository(repo)
	profiles := db.NewProfileRepository(repo)
	styles := db.NewStyleProfileRepository(repo)
	embeddings := db.NewEmbeddingRepository(repo)
	memory := db.NewMemoryRepository(repo)
	chats := db.NewChatRepository(repo)

	runner := tasks.NewRunner(cfg.Scraper.PollTimeout + time.Minute)
	styleAnalyzer := analyzer.New(&cfg.Analyzer, completer, embedder, repo)
	pipeline := onboarding.New(&cfg.Scraper, jobs, styleAnalyzer,
		users, posts, profiles, embeddings, redisCache, runner)

	engine := retrieval.New(&cfg.Retrieval, embedder, embeddings, posts)
	orch := orchestrator.New(
		intent.New(completer),
		engine,
		validator.New(completer),
		completer,
		styles, memory, profiles, posts,
		redisCache, runner,
	)

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	apiRouter := api.NewRouter(pipeline, orch, chats, database, redisCache)
	apiRouter.SetupRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	// Let in-flight onboarding cycles land their status writes.
	runner.Wait()

	logger.Info("Server exited")
}
