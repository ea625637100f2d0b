package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/example/message-scheduler/internal/common"
	"github.com/example/message-scheduler/internal/events"
	"github.com/example/message-scheduler/internal/schedule"
)

var reportCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_reports_total",
	Help: "Delivery reports received",
}, []string{"channel", "status"})

type Publisher interface {
	Publish(ctx context.Context, ev events.Keyed) error
}

// Server accepts delivery reports from the delivery subsystem and forwards
// them to the delivery-reports topic.
type Server struct {
	Publisher Publisher
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RequestLogger(s.Logger))
	r.Post("/v1/channels/{channel}/reports", s.handle)
	return r
}

type reportPayload struct {
	MessageID  string    `json:"message_id"`
	Event      string    `json:"event"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("webhook").Start(r.Context(), "delivery-report")
	defer span.End()

	channel, err := schedule.ParseChannel(chi.URLParam(r, "channel"))
	if err != nil {
		s.respondErr(ctx, w, "", http.StatusNotFound, err)
		return
	}

	var payload reportPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondErr(ctx, w, channel, http.StatusBadRequest, err)
		return
	}

	report, err := s.normalize(channel, payload)
	if err != nil {
		s.respondErr(ctx, w, channel, http.StatusBadRequest, err)
		return
	}
	span.SetAttributes(attribute.String("message.id", report.MessageID))

	if err := s.Publisher.Publish(ctx, report); err != nil {
		s.respondErr(ctx, w, channel, http.StatusInternalServerError, err)
		return
	}

	reportCounter.WithLabelValues(string(channel), string(report.Status)).Inc()
	w.WriteHeader(http.StatusAccepted)
}

// normalize maps the event names used by delivery backends onto the
// terminal message statuses.
func (s *Server) normalize(channel schedule.Channel, p reportPayload) (events.DeliveryReport, error) {
	if p.MessageID == "" {
		return events.DeliveryReport{}, errors.New("message_id missing")
	}
	var status schedule.Status
	switch strings.ToLower(p.Event) {
	case "sent", "delivered", "read":
		status = schedule.StatusSent
	case "failed", "bounced", "dropped", "rejected", "undeliverable":
		status = schedule.StatusFailed
	case "":
		return events.DeliveryReport{}, errors.New("event missing")
	default:
		return events.DeliveryReport{}, fmt.Errorf("unsupported event %q", p.Event)
	}

	occurred := p.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	return events.DeliveryReport{
		MessageID:  p.MessageID,
		Channel:    channel,
		Status:     status,
		Reason:     p.Reason,
		OccurredAt: occurred.UTC(),
	}, nil
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// respondErr counts client mistakes as "rejected" and server faults as
// "error". channel is empty when the path did not name a known channel.
func (s *Server) respondErr(ctx context.Context, w http.ResponseWriter, channel schedule.Channel, status int, err error) {
	label := string(channel)
	if label == "" {
		label = "unknown"
	}
	logger := common.WithContext(ctx, s.Logger).With().Str("channel", label).Int("status", status).Logger()
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("webhook handler error")
		reportCounter.WithLabelValues(label, "error").Inc()
	} else {
		logger.Warn().Err(err).Msg("delivery report rejected")
		reportCounter.WithLabelValues(label, "rejected").Inc()
	}
	http.Error(w, err.Error(), status)
}
