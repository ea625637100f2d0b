package common

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	HTTPPort             int           `env:"HTTP_PORT,default=8080"`
	MetricsPort          int           `env:"METRICS_PORT"`
	DatabaseURL          string        `env:"DATABASE_URL"`
	KafkaBrokers         []string      `env:"KAFKA_BROKERS,default=localhost:9092"`
	LifecycleTopic       string        `env:"LIFECYCLE_TOPIC,default=messages.lifecycle"`
	EmailTopic           string        `env:"EMAIL_TOPIC,default=dispatch.email"`
	ChatTopic            string        `env:"CHAT_TOPIC,default=dispatch.chat"`
	DLQTopic             string        `env:"DLQ_TOPIC,default=dlq.messages"`
	DeliveryReportsTopic string        `env:"DELIVERY_REPORTS_TOPIC,default=delivery.reports"`
	OTLPEndpoint         string        `env:"OTLP_ENDPOINT"`
	TraceSampleRatio     float64       `env:"TRACE_SAMPLE_RATIO,default=1"`
	SeedDemoData         bool          `env:"SEED_DEMO_DATA,default=false"`
	PublishTimeout       time.Duration `env:"PUBLISH_TIMEOUT,default=1s"`
	ServiceName          string
}

func LoadConfig(service string) (*Config, error) {
	return LoadConfigFrom(service, envconfig.OsLookuper())
}

// LoadConfigFrom reads configuration through lookuper instead of the process
// environment.
func LoadConfigFrom(service string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(context.Background(), cfg, lookuper); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.ServiceName = service
	if cfg.MetricsPort == 0 {
		cfg.MetricsPort = cfg.HTTPPort + 1000
	}
	return cfg, nil
}
