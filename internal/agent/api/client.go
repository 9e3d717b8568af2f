// Package api provides the HTTP client the agent uses to talk to the
// coordination service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iudanet/flocksync/internal/aol"
	"github.com/iudanet/flocksync/pkg/api"
)

// Sentinel errors surfaced from well-known response statuses.
var (
	// ErrNoCommands means the queue had nothing to pop.
	ErrNoCommands = errors.New("no sync commands queued")
	// ErrNotFound means the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrHeadNotFound means the service no longer recognizes the log
	// head we cached; the caller should refetch the log from scratch.
	ErrHeadNotFound = errors.New("log head not found on server")
)

// Client is the coordination service API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new client for the service at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListInstances returns the live version of every instance record.
func (c *Client) ListInstances(ctx context.Context) ([]api.Instance, error) {
	var resp []api.Instance
	if err := c.doRequest(ctx, http.MethodGet, "/instances", nil, &resp); err != nil {
		return nil, fmt.Errorf("list instances request failed: %w", err)
	}
	return resp, nil
}

// GetInstance fetches one instance record by its ID.
func (c *Client) GetInstance(ctx context.Context, id string) (*api.Instance, error) {
	var resp api.Instance
	if err := c.doRequest(ctx, http.MethodGet, "/instances/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get instance request failed: %w", err)
	}
	return &resp, nil
}

// CreateInstance creates a new instance record.
func (c *Client) CreateInstance(ctx context.Context, req api.CreateInstanceRequest) (*api.Instance, error) {
	var resp api.Instance
	if err := c.doRequest(ctx, http.MethodPost, "/instances", req, &resp); err != nil {
		return nil, fmt.Errorf("create instance request failed: %w", err)
	}
	return &resp, nil
}

// UpdateInstance versions an instance record with new field values.
func (c *Client) UpdateInstance(ctx context.Context, id string, req api.UpdateInstanceRequest) (*api.Instance, error) {
	var resp api.Instance
	if err := c.doRequest(ctx, http.MethodPut, "/instances/"+url.PathEscape(id), req, &resp); err != nil {
		return nil, fmt.Errorf("update instance request failed: %w", err)
	}
	return &resp, nil
}

// TransitionInstance asks for a sync-state transition.
func (c *Client) TransitionInstance(ctx context.Context, id, state string) (*api.Instance, error) {
	var resp api.Instance
	path := "/instances/" + url.PathEscape(id) + "/state"
	if err := c.doRequest(ctx, http.MethodPut, path, api.TransitionRequest{State: state}, &resp); err != nil {
		return nil, fmt.Errorf("transition instance request failed: %w", err)
	}
	return &resp, nil
}

// ListCommands returns every live sync command, oldest first.
func (c *Client) ListCommands(ctx context.Context) ([]api.SyncCommand, error) {
	var resp []api.SyncCommand
	if err := c.doRequest(ctx, http.MethodGet, "/sync_commands", nil, &resp); err != nil {
		return nil, fmt.Errorf("list commands request failed: %w", err)
	}
	return resp, nil
}

// EnqueueCommand enqueues a sync command for an instance. Idempotent: if
// a live command already exists for the instance it is returned as is.
func (c *Client) EnqueueCommand(ctx context.Context, instanceID string) (*api.SyncCommand, error) {
	var resp api.SyncCommand
	req := api.EnqueueCommandRequest{InstanceID: instanceID}
	if err := c.doRequest(ctx, http.MethodPost, "/sync_commands", req, &resp); err != nil {
		return nil, fmt.Errorf("enqueue command request failed: %w", err)
	}
	return &resp, nil
}

// PopCommand acknowledges and returns the oldest queued command, or
// ErrNoCommands when the queue is empty.
func (c *Client) PopCommand(ctx context.Context) (*api.SyncCommand, error) {
	var resp api.SyncCommand
	if err := c.doRequest(ctx, http.MethodPut, "/sync_commands", nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoCommands
		}
		return nil, fmt.Errorf("pop command request failed: %w", err)
	}
	return &resp, nil
}

// CompleteCommand tells the service the command's work is done.
func (c *Client) CompleteCommand(ctx context.Context, id string) error {
	path := "/sync_commands/" + url.PathEscape(id)
	if err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("complete command request failed: %w", err)
	}
	return nil
}

// GetLog fetches the service's fact log. With a non-empty head only the
// entries after that chain hash are returned; ErrHeadNotFound means the
// cached head is stale and the whole log must be refetched.
func (c *Client) GetLog(ctx context.Context, head string) (aol.Log, error) {
	path := "/"
	if head != "" {
		path = "/?head=" + url.QueryEscape(head)
	}
	var resp aol.Log
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrHeadNotFound
		}
		return nil, fmt.Errorf("get log request failed: %w", err)
	}
	return resp, nil
}

// PushLog submits entries for merging into the service's log and returns
// the entries the caller is missing.
func (c *Client) PushLog(ctx context.Context, log aol.Log) (aol.Log, error) {
	var resp aol.Log
	if err := c.doRequest(ctx, http.MethodPut, "/", log, &resp); err != nil {
		return nil, fmt.Errorf("push log request failed: %w", err)
	}
	return resp, nil
}

// doRequest performs one HTTP round trip, encoding body and decoding the
// answer into result when non-nil. Non-2xx statuses become errors; a 404
// wraps ErrNotFound so callers can branch on it.
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := string(respBody)
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, msg)
		}
		return fmt.Errorf("server error (%d): %s", resp.StatusCode, msg)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
