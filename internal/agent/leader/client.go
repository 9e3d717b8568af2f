// Package leader implements the HTTP client for a leader instance: login,
// last-modified summaries and batched table-row fetches.
package leader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrAuthFailed means the leader rejected the configured credentials.
var ErrAuthFailed = errors.New("leader authentication failed")

// tokenLeeway is how long before expiry a cached token is already
// considered dead, so a request never goes out with a token about to
// expire mid-flight.
const tokenLeeway = 30 * time.Second

// LastModified maps table name to row ID to last-modification timestamp,
// the summary both sides expose for diffing.
type LastModified map[string]map[string]string

// TableRows maps table name to row ID to the row's column values.
type TableRows map[string]map[string]map[string]any

// Client talks to one leader instance. A Client is also used against the
// local follower service, which speaks the same protocol.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a client for the instance at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetToken installs a previously cached session token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current session token, for caching.
func (c *Client) Token() string {
	return c.token
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Authenticated bool   `json:"authenticated"`
	Token         string `json:"token"`
}

// Login authenticates against the instance and stores the session token
// on the client. Rejected credentials are ErrAuthFailed.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(loginRequest{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to marshal login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/login/authenticate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("login request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var loginResp loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		return fmt.Errorf("failed to decode login response: %w", err)
	}
	if !loginResp.Authenticated || loginResp.Token == "" {
		return ErrAuthFailed
	}
	c.token = loginResp.Token
	return nil
}

// TokenValid reports whether token is usable: present, structurally a
// JWT and not within tokenLeeway of its expiry. The signature is not
// checked; only the instance that issued the token can do that, and a
// forged token just fails there.
func TokenValid(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return now.Add(tokenLeeway).Before(exp.Time)
}

// LastModified fetches the per-row last-modification summary.
func (c *Client) LastModified(ctx context.Context) (LastModified, error) {
	var resp LastModified
	if err := c.doGet(ctx, "/sync/last_modified", &resp); err != nil {
		return nil, fmt.Errorf("last modified request failed: %w", err)
	}
	return resp, nil
}

type tablesRequest struct {
	Tables map[string][]int `json:"tables"`
}

// FetchTables fetches full rows for the requested table row IDs. Callers
// batch the IDs so that no single request asks for too many rows.
func (c *Client) FetchTables(ctx context.Context, tables map[string][]int) (TableRows, error) {
	body, err := json.Marshal(tablesRequest{Tables: tables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tables request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/sync/tables", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create tables request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tables request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var rows TableRows
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode tables response: %w", err)
	}
	return rows, nil
}

func (c *Client) doGet(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ErrAuthFailed
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
