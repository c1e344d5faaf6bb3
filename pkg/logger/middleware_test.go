package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/ballotaudit/pkg/logger"
	"github.com/screwyprof/ballotaudit/web/archive"
	"github.com/screwyprof/ballotaudit/web/handler"
)

func TestNewMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("it logs a run listing at info level", func(t *testing.T) {
		t.Parallel()

		// Arrange
		srv, logs := archiveServer(&stubArchive{})

		// Act
		rec := request(srv, http.MethodGet, "/audits", "")

		// Assert
		require.Equal(t, http.StatusOK, rec.Code)
		entry := lastEntry(t, logs)
		assert.Equal(t, "INFO", entry.Level)
		assert.Equal(t, "HTTP", entry.Msg)
		assert.Equal(t, http.MethodGet, entry.Method)
		assert.Equal(t, "/audits", entry.URI)
		assert.Equal(t, http.StatusOK, entry.Status)
		assert.Positive(t, entry.Duration)
		assert.Equal(t, rec.Body.Len(), entry.BytesOut)
		assert.Empty(t, entry.Error)
	})

	t.Run("it warns with the cause when a run is unknown", func(t *testing.T) {
		t.Parallel()

		// Arrange
		srv, logs := archiveServer(&stubArchive{})

		// Act
		rec := request(srv, http.MethodGet, "/audits/99", "")

		// Assert
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "audit run not found")
		entry := lastEntry(t, logs)
		assert.Equal(t, "WARN", entry.Level)
		assert.Equal(t, "/audits/99", entry.URI)
		assert.Equal(t, http.StatusNotFound, entry.Status)
		assert.Equal(t, "audit run not found: run 99", entry.Error)
	})

	t.Run("it warns with the binding error on a bad per_page", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := &stubArchive{}
		srv, logs := archiveServer(store)

		// Act
		rec := request(srv, http.MethodGet, "/audits?per_page=x", "")

		// Assert
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.False(t, store.queried, "the archive is not queried for invalid parameters")
		entry := lastEntry(t, logs)
		assert.Equal(t, "WARN", entry.Level)
		assert.Equal(t, "/audits?per_page=x", entry.URI)
		assert.Equal(t, http.StatusBadRequest, entry.Status)
		assert.Equal(t, "invalid per_page parameter: per_page must be numeric", entry.Error)
	})

	t.Run("it logs archive failures at error level without leaking them", func(t *testing.T) {
		t.Parallel()

		// Arrange
		srv, logs := archiveServer(&stubArchive{err: errors.New("connection refused")})

		// Act
		rec := request(srv, http.MethodGet, "/audits?page=2", "")

		// Assert
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
		entry := lastEntry(t, logs)
		assert.Equal(t, "ERROR", entry.Level)
		assert.Equal(t, http.StatusInternalServerError, entry.Status)
		assert.Equal(t, "failed to query the audit archive: connection refused", entry.Error)
	})

	t.Run("it counts the body of a request the archive does not route", func(t *testing.T) {
		t.Parallel()

		// Arrange
		srv, logs := archiveServer(&stubArchive{})
		body := `{"from_block":1}`

		// Act
		rec := request(srv, http.MethodPost, "/audits", body)

		// Assert
		require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
		entry := lastEntry(t, logs)
		assert.Equal(t, "WARN", entry.Level)
		assert.Equal(t, http.MethodPost, entry.Method)
		assert.Equal(t, len(body), entry.BytesIn)
		assert.Equal(t, rec.Body.Len(), entry.BytesOut)
		assert.Empty(t, entry.Error, "the mux records no handler error")
	})
}

// Test helpers

// stubArchive holds no runs; every report lookup misses.
type stubArchive struct {
	err     error
	queried bool
}

func (s *stubArchive) FindRuns(_ context.Context, criteria archive.RunsCriteria) (*archive.RunsPage, error) {
	s.queried = true
	if s.err != nil {
		return nil, s.err
	}
	return &archive.RunsPage{Number: criteria.Page, Size: criteria.Size}, nil
}

func (s *stubArchive) FindReport(_ context.Context, runID int64) (*archive.RunReport, error) {
	s.queried = true
	if s.err != nil {
		return nil, s.err
	}
	return nil, fmt.Errorf("%w: run %d", archive.ErrRunNotFound, runID)
}

// logEntry is one JSON record written by the middleware.
type logEntry struct {
	Level    string  `json:"level"`
	Msg      string  `json:"msg"`
	Method   string  `json:"method"`
	URI      string  `json:"uri"`
	Status   int     `json:"status"`
	Duration float64 `json:"duration"`
	BytesIn  int     `json:"bytes_in"`
	BytesOut int     `json:"bytes_out"`
	Error    string  `json:"error,omitempty"`
}

func archiveServer(finder archive.Finder) (http.Handler, *bytes.Buffer) {
	logs := &bytes.Buffer{}
	log := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))

	mux := http.NewServeMux()
	handler.NewAudits(finder).AddRoutes(mux)
	return logger.NewMiddleware(log)(mux), logs
}

func request(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var payload io.Reader
	if body != "" {
		payload = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, payload))
	return rec
}

func lastEntry(t *testing.T, logs *bytes.Buffer) logEntry {
	t.Helper()

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}
