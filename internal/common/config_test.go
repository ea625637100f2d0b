package common

import (
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfigFrom("dashboard-api", envconfig.MapLookuper(map[string]string{}))
	require.NoError(t, err)

	assert.Equal(t, "dashboard-api", cfg.ServiceName)
	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, 9080, cfg.MetricsPort)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "messages.lifecycle", cfg.LifecycleTopic)
	assert.Equal(t, "dispatch.email", cfg.EmailTopic)
	assert.Equal(t, "dispatch.chat", cfg.ChatTopic)
	assert.Equal(t, "dlq.messages", cfg.DLQTopic)
	assert.Equal(t, "delivery.reports", cfg.DeliveryReportsTopic)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.SeedDemoData)
	assert.Equal(t, time.Second, cfg.PublishTimeout)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := LoadConfigFrom("webhook", envconfig.MapLookuper(map[string]string{
		"HTTP_PORT":       "7000",
		"METRICS_PORT":    "7100",
		"KAFKA_BROKERS":   "k1:9092,k2:9092",
		"DATABASE_URL":    "postgres://localhost/messages",
		"SEED_DEMO_DATA":  "true",
		"PUBLISH_TIMEOUT": "250ms",
	}))
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.HTTPPort)
	assert.Equal(t, 7100, cfg.MetricsPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "postgres://localhost/messages", cfg.DatabaseURL)
	assert.True(t, cfg.SeedDemoData)
	assert.Equal(t, 250*time.Millisecond, cfg.PublishTimeout)
}

func TestLoadConfigInvalidPort(t *testing.T) {
	_, err := LoadConfigFrom("webhook", envconfig.MapLookuper(map[string]string{"HTTP_PORT": "abc"}))
	assert.Error(t, err)
}
