package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/flocksync/internal/server/storage/sqlite"
	"github.com/iudanet/flocksync/pkg/api"
)

// setupTestServer boots the full router over an in-memory storage and a
// temp-dir fact log.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	logHandler, err := NewLogHandler(logger, filepath.Join(t.TempDir(), "facts.log"))
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(logger, s, logHandler, "test"))
	t.Cleanup(srv.Close)
	return srv
}

// doJSON performs a request with a JSON body and decodes the JSON answer
// into out when out is non-nil.
func doJSON(t *testing.T, method, url string, body, out any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, resp.Body.Close())
	}()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// createInstance creates an instance through the API and returns it.
func createInstance(t *testing.T, baseURL, slug string) api.Instance {
	t.Helper()
	var inst api.Instance
	resp := doJSON(t, http.MethodPost, baseURL+"/instances", api.CreateInstanceRequest{
		Slug:     slug,
		AutoSync: true,
	}, &inst)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return inst
}
