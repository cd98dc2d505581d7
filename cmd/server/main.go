package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/bloodcell-ai-server/internal/api"
	"github.com/bloodcell-ai-server/internal/classify"
	"github.com/bloodcell-ai-server/internal/config"
	"github.com/bloodcell-ai-server/internal/domain"
	"github.com/bloodcell-ai-server/internal/explain"
	"github.com/bloodcell-ai-server/internal/llm"
	"github.com/bloodcell-ai-server/internal/progress"
	"github.com/bloodcell-ai-server/internal/service"
	"github.com/bloodcell-ai-server/internal/store"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)
	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting BloodCell AI server")

	// Storage
	st, err := store.Open(cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open store")
	}
	defer st.Close()

	// Progress tracking
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracker, closeTracker, err := newTracker(ctx, cfg.Progress, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create progress tracker")
	}
	defer closeTracker()

	// Model capabilities
	classifier, fallback := newClassifiers(cfg.Models.Classifier, logger)
	textGen := llm.NewClient(cfg.Models.Generator, logger)
	generator := explain.NewGenerator(logger, textGen, cfg.Models.Generator)

	analyzer := service.NewAnalyzer(logger, st, tracker, classifier, fallback, generator)
	server := api.NewServer(cfg, logger, analyzer, st, tracker)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

// newLogger builds the process logger from config.
func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// newTracker selects the Redis tracker when a URL is configured, in-memory
// otherwise.
func newTracker(ctx context.Context, cfg domain.ProgressConfig, logger *logrus.Logger) (domain.ProgressTracker, func(), error) {
	if cfg.RedisURL == "" {
		return progress.NewMemoryTracker(), func() {}, nil
	}

	tracker, err := progress.NewRedisTracker(ctx, cfg.RedisURL, cfg.TTL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Using Redis progress tracker")
	return tracker, func() { tracker.Close() }, nil
}

// newClassifiers returns the primary classifier and its degraded fallback.
// Without a configured inference endpoint the mock serves both roles.
func newClassifiers(cfg domain.ClassifierConfig, logger *logrus.Logger) (domain.CellClassifier, domain.CellClassifier) {
	mock := classify.NewMockClassifier(logger)
	if cfg.URL == "" {
		logger.Info("No inference endpoint configured, using mock classifier")
		return mock, mock
	}
	return classify.NewClient(cfg, logger), mock
}
