package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	v1 "github.com/kubev2v/asyncqueue/api/v1"
	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
	srvErrors "github.com/kubev2v/asyncqueue/pkg/errors"
)

// Client talks to the agent's /api/v1 task API.
type Client struct {
	baseURL    string
	jwt        string
	httpClient *http.Client
}

func NewClient(baseURL string, jwt string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("failed to initialize client: invalid base url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		jwt:        jwt,
		httpClient: httpClient,
	}, nil
}

// SubmitTask runs a task on the agent and waits for the outcome.
// POST /api/v1/tasks
func (c *Client) SubmitTask(ctx context.Context, key, payload string) (*v1.TaskResult, error) {
	body := v1.TaskRequest{Key: key, Payload: payload}

	zap.S().Named("client").Debugw("submit task", "key", key)

	resp, err := c.do(ctx, http.MethodPost, "/api/v1/tasks", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var result v1.TaskResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode task result: %w", err)
		}
		return &result, nil
	case http.StatusBadRequest:
		return nil, srvErrors.NewInvalidTaskError(readError(resp))
	case http.StatusServiceUnavailable:
		return nil, asyncqueue.ErrQueueStopped
	case http.StatusUnauthorized:
		return nil, srvErrors.NewUnauthorizedError(readError(resp))
	default:
		return nil, fmt.Errorf("task %q failed: %s", key, readError(resp))
	}
}

// GetTask returns the stored execution for key.
// GET /api/v1/tasks/{key}
func (c *Client) GetTask(ctx context.Context, key string) (*v1.TaskRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(key), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var rec v1.TaskRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode task record: %w", err)
		}
		return &rec, nil
	case http.StatusNotFound:
		return nil, srvErrors.NewTaskNotFoundError(key)
	case http.StatusUnauthorized:
		return nil, srvErrors.NewUnauthorizedError(readError(resp))
	default:
		return nil, fmt.Errorf("failed to get task %q: %s", key, resp.Status)
	}
}

// ForgetTask drops the agent's cached outcome for key.
// DELETE /api/v1/tasks/{key}
func (c *Client) ForgetTask(ctx context.Context, key string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+url.PathEscape(key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusUnauthorized:
		return srvErrors.NewUnauthorizedError(readError(resp))
	default:
		return fmt.Errorf("failed to forget task %q: %s", key, resp.Status)
	}
}

// QueueStatus returns the agent's queue counters.
// GET /api/v1/queue
func (c *Client) QueueStatus(ctx context.Context) (*v1.QueueStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/v1/queue", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var status v1.QueueStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return nil, fmt.Errorf("failed to decode queue status: %w", err)
		}
		return &status, nil
	case http.StatusUnauthorized:
		return nil, srvErrors.NewUnauthorizedError(readError(resp))
	default:
		return nil, fmt.Errorf("failed to get queue status: %s", resp.Status)
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.jwt != "" {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.jwt))
	}

	return c.httpClient.Do(req)
}

// readError extracts the "error" field of an API error body, falling back to
// the status line.
func readError(resp *http.Response) string {
	var apiErr v1.Error
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
		return resp.Status
	}
	return apiErr.Error
}
