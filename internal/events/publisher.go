package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

var publishCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "events_published_total",
	Help: "Events written to kafka",
}, []string{"topic", "result"})

// Writer is the subset of *kafka.Writer used to publish.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Keyed interface {
	Key() []byte
}

type Publisher struct {
	Writer Writer
	// Topic labels metrics; the writer decides where records go.
	Topic          string
	MaxElapsedTime time.Duration
}

func NewPublisher(w Writer, topic string) *Publisher {
	return &Publisher{Writer: w, Topic: topic, MaxElapsedTime: 5 * time.Second}
}

// Publish encodes ev as JSON and writes it, retrying transient failures
// until MaxElapsedTime has passed or ctx is done.
func (p *Publisher) Publish(ctx context.Context, ev Keyed) error {
	body, err := json.Marshal(ev)
	if err != nil {
		publishCounter.WithLabelValues(p.Topic, "encode_error").Inc()
		return fmt.Errorf("marshal event: %w", err)
	}
	record := kafka.Message{Key: ev.Key(), Value: body}

	op := backoff.NewExponentialBackOff()
	op.MaxElapsedTime = p.MaxElapsedTime
	err = backoff.Retry(func() error {
		return p.Writer.WriteMessages(ctx, record)
	}, backoff.WithContext(op, ctx))
	if err != nil {
		publishCounter.WithLabelValues(p.Topic, "error").Inc()
		return fmt.Errorf("publish to %s: %w", p.Topic, err)
	}
	publishCounter.WithLabelValues(p.Topic, "ok").Inc()
	return nil
}
