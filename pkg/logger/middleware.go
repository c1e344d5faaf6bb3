package logger

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/screwyprof/ballotaudit/pkg/httpkit"
)

// statusRecorder remembers the status and body size a handler produced.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.written += n
	return n, err
}

// NewMiddleware logs one "HTTP" record per request. The level follows the
// status: 5xx at error, 4xx at warn, the rest at info. Errors recorded by
// httpkit handlers are logged with their cause, never shown to the client.
func NewMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			r = r.WithContext(httpkit.WithErrorTracking(r.Context()))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []slog.Attr{
				slog.String("method", r.Method),
				slog.String("uri", r.RequestURI),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(started)),
				slog.Int64("bytes_in", max(0, r.ContentLength)),
				slog.Int("bytes_out", rec.written),
			}
			if err := httpkit.Error(r.Context()); err != nil {
				attrs = append(attrs, slog.String("error", causeOf(err).Error()))
			}
			log.LogAttrs(r.Context(), levelFor(rec.status), "HTTP", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

func causeOf(err error) error {
	var httpErr httpkit.HTTPError
	if errors.As(err, &httpErr) && httpErr.Cause() != nil {
		return httpErr.Cause()
	}
	return err
}
