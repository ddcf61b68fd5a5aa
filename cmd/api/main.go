package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/cmyui/experimentation/internal/config"
	"github.com/cmyui/experimentation/internal/handler"
	"github.com/cmyui/experimentation/internal/logger"
	"github.com/cmyui/experimentation/internal/queue/sqs"
	"github.com/cmyui/experimentation/internal/repository/clickhouse"
	"github.com/cmyui/experimentation/internal/repository/sqlite"
	"github.com/cmyui/experimentation/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	// Initialize the primary store
	db, err := sqlite.NewDB(cfg.Database.URL, cfg.Database.AuthToken, cfg.Database.MaxOpenConns)
	if err != nil {
		log.Fatal("Failed to open database", zap.Error(err))
	}

	store := sqlite.NewStore(db, log)
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	if err := store.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Initialize SQS client for the exposure stream
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize ClickHouse client for exposure analytics reads
	clickhouseClient, err := clickhouse.NewClient(ctx, &cfg.ClickHouse, log)
	if err != nil {
		log.Fatal("Failed to create ClickHouse client", zap.Error(err))
	}
	defer func(clickhouseClient *clickhouse.Client) {
		if err := clickhouseClient.Close(); err != nil {
			log.Error("Failed to close ClickHouse client", zap.Error(err))
		}
	}(clickhouseClient)

	analytics := clickhouse.NewRepository(clickhouseClient, log)

	// Initialize services
	experimentService := service.NewExperimentService(store, log)
	assignmentService := service.NewAssignmentService(store, log)
	exposureService := service.NewExposureService(store, sqsClient, analytics, log)

	// Initialize handler
	h := handler.NewHandler(experimentService, assignmentService, exposureService, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	log.Info("API server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}
}
