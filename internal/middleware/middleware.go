package middleware

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jwebster45206/storyforge/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijack not supported")
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Logger logs one line per request with the default slog logger.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Default().Log(r.Context(), level, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// Metrics records request duration and in-flight count.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			m.RequestsInflight.Inc()
			defer m.RequestsInflight.Dec()

			next.ServeHTTP(rec, r)

			m.RequestDuration.
				WithLabelValues(r.Method, Route(r.URL.Path), strconv.Itoa(rec.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}

// Route collapses identifiers out of a request path so metric label
// cardinality stays bounded: /v1/games/abc/choices -> /v1/games/{id}/choices.
func Route(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return "/"
	}
	switch parts[0] {
	case "assets":
		return "/assets"
	case "v1":
	default:
		return "/" + parts[0]
	}

	idAt := 2
	// /v1/events/games/{id} and /v1/cache/models/{id}
	if len(parts) > 1 && (parts[1] == "events" || parts[1] == "cache") {
		idAt = 3
	}
	if len(parts) > idAt && !(parts[1] == "models" && parts[idAt] == "loaded") {
		parts[idAt] = "{id}"
	}
	return "/" + strings.Join(parts, "/")
}
