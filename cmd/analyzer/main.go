// Command analyzer re-runs the engagement and style analysis for one user
// outside the onboarding pipeline. Useful after tuning scoring weights or
// when a style profile needs to be rebuilt from already-scraped posts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/postecho/postecho/internal/analyzer"
	"github.com/postecho/postecho/internal/db"
	"github.com/postecho/postecho/internal/llm"
	"github.com/postecho/postecho/internal/models"
	"github.com/postecho/postecho/pkg/config"
	"github.com/postecho/postecho/pkg/logging"
	"github.com/postecho/postecho/pkg/telemetry"
)

func main() {
	userFlag := flag.String("user", "", "user id to analyze")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Usage: analyzer -user <uuid>\n")
		os.Exit(2)
	}

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
	logger.Info("Starting PostEcho Analyzer", zap.String("user_id", userID.String()))

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

	// Initialize model clients
	completer, err := llm.NewClient(&cfg.Gemini)
	if err != nil {
		logger.Fatal("Failed to create completion client", zap.Error(err))
	}
	embedder, err := llm.NewEmbedder(&cfg.Gemini)
	if err != nil {
		logger.Fatal("Failed to create embedding client", zap.Error(err))
	}

	repo := db.NewRepository(database.DB)
	users := db.NewUserRepository(repo)
	styleAnalyzer := analyzer.New(&cfg.Analyzer, completer, embedder, repo)

	ctx := context.Background()
	if err := styleAnalyzer.Run(ctx, userID); err != nil {
		logger.Error("Analysis failed", zap.Error(err))
		if stateErr := users.SetOnboardingState(ctx, userID, models.StatusError, err.Error()); stateErr != nil {
			logger.Error("Failed to record error state", zap.Error(stateErr))
		}
		os.Exit(1)
	}

	if err := users.SetOnboardingState(ctx, userID, models.StatusReady, ""); err != nil {
		logger.Fatal("Failed to record ready state", zap.Error(err))
	}
	logger.Info("Analysis complete", zap.String("user_id", userID.String()))
}
