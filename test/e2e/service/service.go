package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	v1 "github.com/kubev2v/asyncqueue/api/v1"
)

const (
	apiV1TasksPath = "/api/v1/tasks"
	apiV1QueuePath = "/api/v1/queue"
)

// TokenGenerator is a function that generates a JWT token for a subject.
type TokenGenerator func(subject string) (string, error)

// AgentSvc is an HTTP client for the agent API.
type AgentSvc struct {
	baseURL  string
	token    string
	client   *http.Client
	tokenGen TokenGenerator
}

func NewAgentService(baseURL string, tokenGen TokenGenerator) *AgentSvc {
	return &AgentSvc{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		tokenGen: tokenGen,
	}
}

// WithAuthUser returns a copy of the client that sends a token for subject.
// Usage: agentSvc.WithAuthUser("alice").Submit(task)
func (s *AgentSvc) WithAuthUser(subject string) *AgentSvc {
	if s.tokenGen == nil {
		zap.S().Warn("WithAuthUser called without a token generator; requests will have no auth token")
		return s
	}
	token, err := s.tokenGen(subject)
	if err != nil {
		zap.S().Errorf("WithAuthUser: failed to generate token: %v", err)
		return s
	}
	return &AgentSvc{baseURL: s.baseURL, token: token, client: s.client, tokenGen: s.tokenGen}
}

// Response is a raw API answer. Body is decoded by the typed helpers below.
type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

func (s *AgentSvc) Submit(key, payload string) (*Response, error) {
	return s.do(http.MethodPost, apiV1TasksPath, v1.TaskRequest{Key: key, Payload: payload})
}

func (s *AgentSvc) GetTask(key string) (*Response, error) {
	return s.do(http.MethodGet, apiV1TasksPath+"/"+url.PathEscape(key), nil)
}

func (s *AgentSvc) ListTasks(query url.Values) (*v1.TaskListResponse, error) {
	path := apiV1TasksPath
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	resp, err := s.do(http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list tasks: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	var list v1.TaskListResponse
	return &list, resp.Decode(&list)
}

func (s *AgentSvc) ForgetTask(key string) (*Response, error) {
	return s.do(http.MethodDelete, apiV1TasksPath+"/"+url.PathEscape(key), nil)
}

func (s *AgentSvc) QueueStatus() (*v1.QueueStatus, error) {
	resp, err := s.do(http.MethodGet, apiV1QueuePath, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("queue status: unexpected status %d: %s", resp.StatusCode, resp.Body)
	}
	var status v1.QueueStatus
	return &status, resp.Decode(&status)
}

func (s *AgentSvc) do(method, path string, body any) (*Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	zap.S().Debugw("agent api call", "method", method, "path", path, "status", resp.StatusCode)

	return &Response{StatusCode: resp.StatusCode, Body: data}, nil
}

func (s *AgentSvc) BaseURL() string {
	return s.baseURL
}
