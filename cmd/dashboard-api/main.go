package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/example/message-scheduler/internal/common"
	"github.com/example/message-scheduler/internal/dashboard"
	"github.com/example/message-scheduler/internal/events"
	"github.com/example/message-scheduler/internal/store"
)

type repositories interface {
	store.MessageRepository
	store.UserRepository
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()
	cfg, err := common.LoadConfig("dashboard-api")
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

	repo, closeRepo := openStore(ctx, cfg, logger)
	defer closeRepo()

	producer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers...),
		Topic:    cfg.LifecycleTopic,
		Balancer: &kafka.Hash{},
	}
	defer producer.Close()

	h := dashboard.NewHandler(repo, repo, events.NewPublisher(producer, cfg.LifecycleTopic), logger,
		dashboard.WithPublishTimeout(cfg.PublishTimeout))

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("dashboard api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore uses postgres when DATABASE_URL is set and process memory
// otherwise.
func openStore(ctx context.Context, cfg *common.Config, logger zerolog.Logger) (repositories, func()) {
	if cfg.DatabaseURL == "" {
		mem := store.NewMemoryStore()
		if cfg.SeedDemoData {
			if err := store.Seed(ctx, mem, time.Now()); err != nil {
				logger.Fatal().Err(err).Msg("seed demo data")
			}
		}
		logger.Warn().Msg("DATABASE_URL not set, messages are kept in memory")
		return mem, func() {}
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	pg, err := store.NewPostgresStore(pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres store")
	}
	return pg, pool.Close
}
