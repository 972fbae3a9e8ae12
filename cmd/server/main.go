package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/elimu-platform/payment-service/internal/config"
	"github.com/elimu-platform/payment-service/internal/infrastructure/database"
	httpServer "github.com/elimu-platform/payment-service/internal/infrastructure/http"
	infraprovider "github.com/elimu-platform/payment-service/internal/infrastructure/provider"
	"github.com/elimu-platform/payment-service/internal/usecase"
	"github.com/elimu-platform/payment-service/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories and provider adapters
	repos := database.NewRepositories(db, zapLogger)
	registry := infraprovider.NewRegistry(&cfg.Providers, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the status reconciler
	completion := usecase.NewCompletionService(repos.Tx, repos.Plan, zapLogger)
	reconciler := usecase.NewReconciler(repos.Payment, completion, registry, cfg.Reconciler, zapLogger)
	go reconciler.Run(ctx)

	// Start the HTTP server
	httpSrv := httpServer.NewServer(cfg, zapLogger, repos, registry)
	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")
	cancel()

	if err := httpSrv.Shutdown(context.Background()); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Server shut down successfully")
}
