package statussync

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
	"github.com/example/message-scheduler/internal/store"
)

var appliedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "statussync_reports_total",
	Help: "Delivery reports processed by outcome",
}, []string{"result"})

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Syncer moves pending messages to their reported delivery status.
type Syncer struct {
	Reader   Reader
	Messages store.MessageRepository
	Logger   zerolog.Logger
}

func (s *Syncer) Run(ctx context.Context) error {
	if s.Reader == nil || s.Messages == nil {
		return errors.New("status sync requires a reader and a message store")
	}
	defer s.Reader.Close()

	for {
		m, err := s.Reader.FetchMessage(ctx)
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}
		var report events.DeliveryReport
		if err := json.Unmarshal(m.Value, &report); err != nil {
			s.Logger.Error().Err(err).Int64("offset", m.Offset).Msg("failed to decode delivery report")
			appliedCounter.WithLabelValues("malformed").Inc()
		} else if err := s.Apply(ctx, report); err != nil {
			return err
		}
		if err := s.Reader.CommitMessages(ctx, m); err != nil {
			return fmt.Errorf("commit message: %w", err)
		}
	}
}

// Apply records one report. Reports for unknown or already settled messages
// are logged and dropped; only store failures are returned.
func (s *Syncer) Apply(ctx context.Context, report events.DeliveryReport) error {
	ctx, span := otel.Tracer("status-sync").Start(ctx, "apply-report")
	defer span.End()
	span.SetAttributes(
		attribute.String("message.id", report.MessageID),
		attribute.String("message.status", string(report.Status)),
	)
	logger := common.WithContext(ctx, s.Logger).With().
		Str("message_id", report.MessageID).
		Str("status", string(report.Status)).
		Logger()

	msg, err := s.Messages.RecordOutcome(ctx, report.MessageID, report.Status, report.OccurredAt)
	switch {
	case errors.Is(err, store.ErrNotFound):
		logger.Warn().Msg("report for unknown message")
		appliedCounter.WithLabelValues("unknown_message").Inc()
		return nil
	case errors.Is(err, schedule.ErrNotPending), errors.Is(err, schedule.ErrInvalidOutcome):
		logger.Warn().Err(err).Msg("report ignored")
		appliedCounter.WithLabelValues("ignored").Inc()
		return nil
	case err != nil:
		span.RecordError(err)
		return fmt.Errorf("record outcome for %s: %w", report.MessageID, err)
	}

	logger.Info().Str("channel", string(msg.Channel)).Str("reason", report.Reason).Msg("delivery outcome recorded")
	appliedCounter.WithLabelValues(string(report.Status)).Inc()
	return nil
}
