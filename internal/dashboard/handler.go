package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/message-scheduler/internal/common"
	"github.com/example/message-scheduler/internal/events"
	"github.com/example/message-scheduler/internal/schedule"
	"github.com/example/message-scheduler/internal/store"
)

var (
	reqCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_requests_total",
		Help: "Dashboard API requests by route and response code",
	}, []string{"route", "code"})
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_request_duration_seconds",
		Help:    "Latency of dashboard API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_validation_failures_total",
		Help: "Rejected message drafts by failure kind",
	}, []string{"kind"})
)

var (
	ErrNotEditable = errors.New("only pending messages can be edited")
	ErrMissingUser = errors.New("missing x-user-id header")
)

// Publisher receives lifecycle events after a change has been stored.
type Publisher interface {
	Publish(ctx context.Context, ev events.Keyed) error
}

// DefaultPublishTimeout bounds how long a request waits on the event bus.
const DefaultPublishTimeout = time.Second

type Handler struct {
	messages       store.MessageRepository
	users          store.UserRepository
	publisher      Publisher
	publishTimeout time.Duration
	now            func() time.Time
	tracer         trace.Tracer
	logger         zerolog.Logger
}

type Option func(*Handler)

// WithClock replaces the wall clock used to validate schedules.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithPublishTimeout caps the time spent publishing one lifecycle event,
// retries included.
func WithPublishTimeout(d time.Duration) Option {
	return func(h *Handler) { h.publishTimeout = d }
}

// NewHandler builds the dashboard API. publisher may be nil, in which case
// no lifecycle events are emitted.
func NewHandler(messages store.MessageRepository, users store.UserRepository, publisher Publisher, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		messages:       messages,
		users:          users,
		publisher:      publisher,
		publishTimeout: DefaultPublishTimeout,
		now:            time.Now,
		tracer:         otel.Tracer("dashboard"),
		logger:         logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(common.RequestLogger(h.logger))
	r.Use(instrument)

	r.Route("/v1/messages", func(r chi.Router) {
		r.Use(h.requireUser)
		r.Get("/", h.listMessages)
		r.Post("/", h.createMessage)
		r.Get("/stats", h.messageStats)
		r.Get("/{id}", h.getMessage)
		r.Put("/{id}", h.updateMessage)
		r.Delete("/{id}", h.deleteMessage)
	})
	r.Route("/v1/admin", func(r chi.Router) {
		r.Get("/messages", h.adminMessages)
		r.Get("/stats", h.adminStats)
	})
	return r
}

type ctxKey struct{}

const userHeader = "x-user-id"

// requireUser takes the caller id supplied by the identity provider in front
// of this service.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(userHeader)
		if userID == "" {
			h.respondErr(r.Context(), w, http.StatusBadRequest, ErrMissingUser)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func userFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := "unknown"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = r.Method + " " + rc.RoutePattern()
		}
		reqCounter.WithLabelValues(route, http.StatusText(rec.status)).Inc()
		requestLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "list-messages")
	defer span.End()

	statusFilter, channelFilter, err := parseFilters(r)
	if err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, err)
		return
	}
	messages, err := h.messages.ListByOwner(ctx, userFrom(ctx))
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		Messages: schedule.FilterMessages(messages, statusFilter, channelFilter),
	})
}

func (h *Handler) messageStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "message-stats")
	defer span.End()

	messages, err := h.messages.ListByOwner(ctx, userFrom(ctx))
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule.ComputeStats(messages))
}

func (h *Handler) getMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "get-message")
	defer span.End()

	msg, ok := h.ownedMessage(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "create-message")
	defer span.End()

	draft, err := decodeDraft(r, userFrom(ctx))
	if err != nil {
		h.respondDraftErr(ctx, w, err)
		return
	}
	now := h.now()
	msg, err := schedule.ValidateAndBuild(draft, now, nil)
	if err != nil {
		h.respondDraftErr(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("message.id", msg.ID), attribute.String("message.channel", string(msg.Channel)))

	if err := h.messages.Create(ctx, msg); err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}
	h.publish(ctx, events.NewLifecycle(events.MessageScheduled, msg, now))
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) updateMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "update-message")
	defer span.End()

	existing, ok := h.ownedMessage(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("message.id", existing.ID))
	if !existing.Editable() {
		h.respondErr(ctx, w, http.StatusConflict, ErrNotEditable)
		return
	}

	draft, err := decodeDraft(r, existing.OwnerID)
	if err != nil {
		h.respondDraftErr(ctx, w, err)
		return
	}
	now := h.now()
	msg, err := schedule.ValidateAndBuild(draft, now, &existing)
	if err != nil {
		h.respondDraftErr(ctx, w, err)
		return
	}
	if err := h.messages.Update(ctx, msg); err != nil {
		h.respondStoreErr(ctx, w, err)
		return
	}
	h.publish(ctx, events.NewLifecycle(events.MessageUpdated, msg, now))
	writeJSON(w, http.StatusOK, msg)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "delete-message")
	defer span.End()

	msg, ok := h.ownedMessage(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("message.id", msg.ID))
	if err := h.messages.Delete(ctx, msg.ID); err != nil {
		h.respondStoreErr(ctx, w, err)
		return
	}
	h.publish(ctx, events.NewLifecycle(events.MessageDeleted, msg, h.now()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminMessages(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin-messages")
	defer span.End()

	statusFilter, channelFilter, err := parseFilters(r)
	if err != nil {
		h.respondErr(ctx, w, http.StatusBadRequest, err)
		return
	}
	messages, users, err := h.everything(ctx)
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}

	filtered := schedule.FilterMessages(messages, statusFilter, channelFilter)
	out := make([]adminMessage, 0, len(filtered))
	for _, m := range filtered {
		out = append(out, adminMessage{Message: m, OwnerName: schedule.OwnerName(users, m.OwnerID)})
	}
	writeJSON(w, http.StatusOK, adminMessagesResponse{Messages: out})
}

func (h *Handler) adminStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "admin-stats")
	defer span.End()

	messages, users, err := h.everything(ctx)
	if err != nil {
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, adminStatsResponse{
		Messages: schedule.ComputeStats(messages),
		Users:    schedule.ComputeUserStats(users, messages),
	})
}

func (h *Handler) everything(ctx context.Context) ([]schedule.Message, []schedule.User, error) {
	messages, err := h.messages.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	users, err := h.users.ListUsers(ctx)
	if err != nil {
		return nil, nil, err
	}
	return messages, users, nil
}

// ownedMessage loads id and checks it belongs to the caller. Messages of
// other owners are reported as missing.
func (h *Handler) ownedMessage(ctx context.Context, w http.ResponseWriter, id string) (schedule.Message, bool) {
	msg, err := h.messages.Get(ctx, id)
	if err != nil {
		h.respondStoreErr(ctx, w, err)
		return schedule.Message{}, false
	}
	if msg.OwnerID != userFrom(ctx) {
		h.respondErr(ctx, w, http.StatusNotFound, store.ErrNotFound)
		return schedule.Message{}, false
	}
	return msg, true
}

func (h *Handler) publish(ctx context.Context, ev events.Lifecycle) {
	if h.publisher == nil {
		return
	}
	if h.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.publishTimeout)
		defer cancel()
	}
	// The store already holds the change; a lost event is logged, not returned.
	if err := h.publisher.Publish(ctx, ev); err != nil {
		logger := common.WithContext(ctx, h.logger)
		logger.Error().Err(err).
			Str("message_id", ev.MessageID).
			Str("event", string(ev.Type)).
			Msg("failed to publish lifecycle event")
	}
}

func (h *Handler) respondDraftErr(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *schedule.ValidationError
	if !errors.As(err, &verr) {
		h.respondErr(ctx, w, http.StatusBadRequest, err)
		return
	}
	validationFailures.WithLabelValues(verr.Kind.String()).Inc()
	logger := common.WithContext(ctx, h.logger)
	logger.Info().
		Str("kind", verr.Kind.String()).
		Str("field", verr.Field).
		Msg("draft rejected")
	writeJSON(w, http.StatusUnprocessableEntity, validationResponse{
		Error: verr.Error(),
		Kind:  verr.Kind.String(),
		Field: verr.Field,
	})
}

func (h *Handler) respondStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		h.respondErr(ctx, w, http.StatusNotFound, err)
	case errors.Is(err, schedule.ErrNotPending):
		// settled by a delivery report after the message was read
		h.respondErr(ctx, w, http.StatusConflict, ErrNotEditable)
	default:
		h.respondErr(ctx, w, http.StatusInternalServerError, err)
	}
}

func (h *Handler) respondErr(ctx context.Context, w http.ResponseWriter, status int, err error) {
	logger := common.WithContext(ctx, h.logger)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("dashboard handler failed")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("dashboard request rejected")
	}
	http.Error(w, err.Error(), status)
}

func decodeDraft(r *http.Request, ownerID string) (schedule.Draft, error) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return schedule.Draft{}, err
	}
	return req.draft(ownerID)
}

func parseFilters(r *http.Request) (schedule.StatusFilter, schedule.ChannelFilter, error) {
	q := r.URL.Query()
	statusFilter, err := schedule.ParseStatusFilter(q.Get("status"))
	if err != nil {
		return "", "", err
	}
	channelFilter, err := schedule.ParseChannelFilter(q.Get("channel"))
	if err != nil {
		return "", "", err
	}
	return statusFilter, channelFilter, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
