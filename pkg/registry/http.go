package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"osops-utils/pkg/model"
)

// HTTPStore talks to a controller's /api/v1 node and search routes.
type HTTPStore struct {
	base   string
	token  string
	client *http.Client
}

// NewHTTPStore builds a client for the controller at base (e.g. http://127.0.0.1:8080).
// A nil client gets a default one with a 60s timeout.
func NewHTTPStore(base, token string, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPStore{base: strings.TrimRight(base, "/"), token: token, client: client}
}

func (s *HTTPStore) Search(ctx context.Context, query string) ([]model.Node, error) {
	var out []model.Node
	err := s.do(ctx, http.MethodGet, "/api/v1/search?q="+url.QueryEscape(query), nil, &out)
	return out, err
}

func (s *HTTPStore) UpsertNode(ctx context.Context, n model.Node) (model.Node, error) {
	var out model.Node
	if err := s.do(ctx, http.MethodPost, "/api/v1/nodes/register", n, &out); err != nil {
		return n, err
	}
	return out, nil
}

func (s *HTTPStore) GetNode(ctx context.Context, name string) (model.Node, bool, error) {
	var out model.Node
	err := s.do(ctx, http.MethodGet, "/api/v1/nodes/get?name="+url.QueryEscape(name), nil, &out)
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
			return model.Node{}, false, nil
		}
		return model.Node{}, false, err
	}
	return out, true, nil
}

func (s *HTTPStore) ListNodes(ctx context.Context) ([]model.Node, error) {
	var out []model.Node
	err := s.do(ctx, http.MethodGet, "/api/v1/nodes", nil, &out)
	return out, err
}

func (s *HTTPStore) DeleteNode(ctx context.Context, name string) error {
	err := s.do(ctx, http.MethodPost, "/api/v1/nodes/delete?name="+url.QueryEscape(name), nil, nil)
	if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
		return ErrNodeNotFound
	}
	return err
}

func (s *HTTPStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// StatusError is a non-2xx controller response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("controller returned %d body=%s", e.Code, e.Body)
}

func (s *HTTPStore) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
