package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/example/message-scheduler/internal/common"
	"github.com/example/message-scheduler/internal/statussync"
	"github.com/example/message-scheduler/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()
	cfg, err := common.LoadConfig("status-sync")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := common.NewLogger(cfg.ServiceName)
	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	metricsSrv := common.StartMetricsServer(cfg.MetricsPort, logger)
	defer metricsSrv.Shutdown(context.Background())

	// Reports must land in the store the dashboard reads, so memory is not an option.
	if cfg.DatabaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL must be provided")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	repo, err := store.NewPostgresStore(pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres store")
	}

	syncer := statussync.Syncer{
		Reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.ServiceName,
			Topic:   cfg.DeliveryReportsTopic,
		}),
		Messages: repo,
		Logger:   logger,
	}

	logger.Info().Msg("status sync started")
	if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("status sync stopped")
	}
}
