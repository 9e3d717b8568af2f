package leader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "admin",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/login/authenticate", r.URL.Path)

		var req loginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Username != "admin" || req.Password != "adminA_1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(loginResponse{
			Authenticated: true,
			Token:         "session-token",
		})
	}))
	defer server.Close()

	t.Run("good credentials store the token", func(t *testing.T) {
		client := NewClient(server.URL)
		require.NoError(t, client.Login(context.Background(), "admin", "adminA_1"))
		assert.Equal(t, "session-token", client.Token())
	})

	t.Run("bad credentials are ErrAuthFailed", func(t *testing.T) {
		client := NewClient(server.URL)
		err := client.Login(context.Background(), "admin", "wrong")
		assert.ErrorIs(t, err, ErrAuthFailed)
		assert.Empty(t, client.Token())
	})
}

func TestTokenValid(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{
			name:  "empty token",
			token: "",
			want:  false,
		},
		{
			name:  "not a JWT",
			token: "opaque-session-token",
			want:  false,
		},
		{
			name:  "expired",
			token: signedToken(t, now.Add(-time.Hour)),
			want:  false,
		},
		{
			name:  "expiring within leeway",
			token: signedToken(t, now.Add(10*time.Second)),
			want:  false,
		},
		{
			name:  "valid",
			token: signedToken(t, now.Add(time.Hour)),
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TokenValid(tt.token, now))
		})
	}
}

func TestLastModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sync/last_modified", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(LastModified{
			"form": {"1": "2026-08-01T00:00:00.000000", "2": "2026-08-02T00:00:00.000000"},
			"user": {"1": "2026-07-15T00:00:00.000000"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("tok")

	lastMod, err := client.LastModified(context.Background())
	require.NoError(t, err)
	assert.Len(t, lastMod["form"], 2)
	assert.Equal(t, "2026-07-15T00:00:00.000000", lastMod["user"]["1"])
}

func TestLastModified_ExpiredSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("stale")

	_, err := client.LastModified(context.Background())
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestFetchTables(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sync/tables", r.URL.Path)

		var req tablesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []int{1, 2}, req.Tables["form"])

		_ = json.NewEncoder(w).Encode(TableRows{
			"form": {
				"1": {"id": float64(1), "transcription": "oka"},
				"2": {"id": float64(2), "transcription": "bla"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	rows, err := client.FetchTables(context.Background(), map[string][]int{"form": {1, 2}})
	require.NoError(t, err)
	require.Len(t, rows["form"], 2)
	assert.Equal(t, "oka", rows["form"]["1"]["transcription"])
}
