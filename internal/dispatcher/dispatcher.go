package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/message-scheduler/internal/common"
	"github.com/example/message-scheduler/internal/events"
	"github.com/example/message-scheduler/internal/schedule"
)

var routedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dispatcher_events_total",
	Help: "Lifecycle events routed to delivery topics",
}, []string{"topic", "type"})

// Reader is the subset of *kafka.Reader the dispatcher consumes from.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Topics names the hand-off topic for each channel.
type Topics struct {
	Email      string
	Chat       string
	DeadLetter string
}

func (t Topics) forChannel(c schedule.Channel) string {
	switch c {
	case schedule.ChannelEmail:
		return t.Email
	case schedule.ChannelChat:
		return t.Chat
	default:
		return ""
	}
}

// Dispatcher forwards message lifecycle events to the delivery topic of the
// message's channel. Events for unknown channels go to the dead-letter topic.
type Dispatcher struct {
	ReaderFactory func() Reader
	WriterFactory func(topic string) events.Writer
	Topics        Topics
	Logger        zerolog.Logger
}

func (d *Dispatcher) Run(ctx context.Context) error {
	if d.ReaderFactory == nil || d.WriterFactory == nil {
		return errors.New("dispatcher requires reader and writer factories")
	}
	reader := d.ReaderFactory()
	defer reader.Close()

	tracer := otel.Tracer("dispatcher")

	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}
		var ev events.Lifecycle
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			d.Logger.Error().Err(err).Int64("offset", m.Offset).Msg("failed to decode lifecycle event")
			if err := reader.CommitMessages(ctx, m); err != nil {
				return fmt.Errorf("commit message: %w", err)
			}
			continue
		}

		spanCtx, span := tracer.Start(ctx, "dispatch")
		span.SetAttributes(
			attribute.String("message.id", ev.MessageID),
			attribute.String("event.type", string(ev.Type)),
		)

		topic := d.Topics.forChannel(ev.Channel)
		if topic == "" {
			logger := common.WithContext(spanCtx, d.Logger)
			logger.Warn().
				Str("channel", string(ev.Channel)).
				Str("message_id", ev.MessageID).
				Msg("unknown channel, sending to DLQ")
			topic = d.Topics.DeadLetter
		}

		if err := d.WriterFactory(topic).WriteMessages(spanCtx, kafka.Message{
			Key:   ev.Key(),
			Value: m.Value,
		}); err != nil {
			span.RecordError(err)
			span.End()
			return fmt.Errorf("write message: %w", err)
		}
		routedCounter.WithLabelValues(topic, string(ev.Type)).Inc()

		span.End()
		if err := reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}
