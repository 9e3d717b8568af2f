package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestLogging_RecordsRequest(t *testing.T) {
	logger, buf := testLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("made"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/instances", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "method=POST")
	assert.Contains(t, out, "path=/instances")
	assert.Contains(t, out, "status=201")
	assert.Contains(t, out, "bytes_written=4")
	assert.Contains(t, out, "level=INFO")
}

func TestLogging_ServerErrorsLogAtErrorLevel(t *testing.T) {
	logger, buf := testLogger()

	handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Contains(t, buf.String(), "level=ERROR")
}

func TestLoggingWithSkip(t *testing.T) {
	logger, buf := testLogger()

	handler := LoggingWithSkip(logger, []string{"/health"})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, buf.String(), "skipped path must not be logged")

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/instances", nil))
	assert.Contains(t, buf.String(), "path=/instances")
}
