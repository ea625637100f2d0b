package common

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

func NewLogger(service string) zerolog.Logger {
	return newLogger(os.Stdout, service)
}

func newLogger(w io.Writer, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	return zerolog.New(w).With().Timestamp().Str("service", service).Logger()
}

// WithContext returns logger tagged with the ids of the span active in ctx.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	return spanFields(logger.With(), trace.SpanContextFromContext(ctx)).Logger()
}

func spanFields(c zerolog.Context, sc trace.SpanContext) zerolog.Context {
	if sc.HasTraceID() {
		c = c.Str("trace_id", sc.TraceID().String())
	}
	if sc.HasSpanID() {
		c = c.Str("span_id", sc.SpanID().String())
	}
	return c
}

// RequestLogger logs one line per HTTP request once the handler returns.
// 5xx responses log at error level and 4xx at warn.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			c := spanFields(logger.With(), trace.SpanContextFromContext(r.Context()))
			if id := middleware.GetReqID(r.Context()); id != "" {
				c = c.Str("request_id", id)
			}
			l := c.Logger()
			status := ww.Status()
			l.WithLevel(requestLevel(status)).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request served")
		})
	}
}

func requestLevel(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
