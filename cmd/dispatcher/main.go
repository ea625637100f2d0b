package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/example/message-scheduler/internal/common"
	"github.com/example/message-scheduler/internal/dispatcher"
	"github.com/example/message-scheduler/internal/events"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()
	cfg, err := common.LoadConfig("dispatcher")
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

	readerFactory := func() dispatcher.Reader {
		return kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.KafkaBrokers,
			GroupID: cfg.ServiceName,
			Topic:   cfg.LifecycleTopic,
		})
	}

	var mu sync.Mutex
	writerCache := map[string]*kafka.Writer{}
	writerFactory := func(topic string) events.Writer {
		mu.Lock()
		defer mu.Unlock()
		if w, ok := writerCache[topic]; ok {
			return w
		}
		writer := &kafka.Writer{
			Addr:     kafka.TCP(cfg.KafkaBrokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		}
		writerCache[topic] = writer
		return writer
	}

	d := dispatcher.Dispatcher{
		ReaderFactory: readerFactory,
		WriterFactory: writerFactory,
		Topics: dispatcher.Topics{
			Email:      cfg.EmailTopic,
			Chat:       cfg.ChatTopic,
			DeadLetter: cfg.DLQTopic,
		},
		Logger: logger,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		logger.Info().Msg("dispatcher service started")
		if err := d.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("dispatcher stopped")
			cancel()
		}
	}()

	<-ctx.Done()
	<-done
	mu.Lock()
	for _, writer := range writerCache {
		_ = writer.Close()
	}
	mu.Unlock()
}
