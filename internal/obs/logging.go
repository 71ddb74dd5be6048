package obs

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/kasir-kopi/internal/common"
)

// NewLogger builds the process logger. format "console" (or "text") gives
// human readable output, anything else JSON lines on stdout.
func NewLogger(format, level string) zerolog.Logger {
	return newLogger(os.Stdout, format, level)
}

func newLogger(w io.Writer, format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

// RequestLogger writes one structured line per HTTP request. Health probes
// are only logged when they fail.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r)

		status := recorder.Status()
		if strings.HasPrefix(r.URL.Path, "/health/") && status < http.StatusInternalServerError {
			return
		}
		var evt *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			evt = l.Logger.Error()
		case status >= http.StatusBadRequest:
			evt = l.Logger.Warn()
		default:
			evt = l.Logger.Info()
		}
		evt = evt.
			Str("method", r.Method).
			Str("route", Route(r)).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Int64("bytes", recorder.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context()))
		if span := trace.SpanContextFromContext(r.Context()); span.IsValid() {
			evt = evt.Str("trace_id", span.TraceID().String()).Str("span_id", span.SpanID().String())
		}
		if station, ok := common.StationID(r.Context()); ok {
			evt = evt.Str("station_id", station)
		}
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			evt = evt.Str("idempotency_key", key)
		}
		evt.Str("remote_addr", r.RemoteAddr).Msg("http_request")
	})
}

// WithStation returns a child logger tagged with the station id carried by ctx, if any.
func WithStation(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if station, ok := common.StationID(ctx); ok {
		return logger.With().Str("station_id", station).Logger()
	}
	return logger
}
