package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	appLog "github.com/oxifinch/dayblazer-calendar/internal/log"
)

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "dayblazer_http_requests_total",
	Help: "HTTP requests by method and status code.",
}, []string{"method", "status"})

type requestIDKeyType int

const requestIDKey = requestIDKeyType(0)

// responseWrapper captures the status code written by the wrapped handler
// so the logging middleware can report it.
type responseWrapper struct {
	writer http.ResponseWriter
	status int
}

func (w *responseWrapper) Header() http.Header {
	return w.writer.Header()
}

func (w *responseWrapper) Write(data []byte) (int, error) {
	return w.writer.Write(data)
}

func (w *responseWrapper) WriteHeader(status int) {
	w.status = status
	w.writer.WriteHeader(status)
}

// addRequestID assigns every request an ID, honoring one already set by an
// upstream proxy via X-Request-ID.
func addRequestID(f http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
			r.Header.Set("X-Request-ID", rid)
		}
		ctx := context.WithValue(r.Context(), requestIDKey, rid)
		f.ServeHTTP(w, r.WithContext(ctx))
	})
}

func logRequest(f http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rid, _ := r.Context().Value(requestIDKey).(string)
		wrapper := responseWrapper{
			writer: w,
			status: http.StatusOK,
		}
		defer func() {
			httpRequests.WithLabelValues(r.Method, strconv.Itoa(wrapper.status)).Inc()
			appLog.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapper.status,
				"duration", time.Since(start).String(),
				"request", rid,
			)
		}()
		f.ServeHTTP(&wrapper, r)
	})
}
