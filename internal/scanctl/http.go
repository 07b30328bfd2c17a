package scanctl

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

	service "github.com/okian/lineup/internal/app"
	"github.com/okian/lineup/internal/domain/model"
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s: %s", e.Status, e.Code, e.Message)
}

// Client talks to the scanner HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

type scanEnvelope struct {
	Scan service.Job `json:"scan"`
}

type teamsEnvelope struct {
	Teams []string `json:"teams"`
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Health checks GET /healthz.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Submit queues a scan of the newest video under prefix.
func (c *Client) Submit(ctx context.Context, prefix string) (service.Job, error) {
	var env scanEnvelope
	err := c.do(ctx, http.MethodPost, "/scans", map[string]string{"prefix": prefix}, &env)
	return env.Scan, err
}

// Scan fetches one scan by id.
func (c *Client) Scan(ctx context.Context, id string) (service.Job, error) {
	var env scanEnvelope
	err := c.do(ctx, http.MethodGet, "/scans/"+url.PathEscape(id), nil, &env)
	return env.Scan, err
}

// Teams lists teams with a stored roster.
func (c *Client) Teams(ctx context.Context) ([]string, error) {
	var env teamsEnvelope
	err := c.do(ctx, http.MethodGet, "/teams", nil, &env)
	return env.Teams, err
}

// Roster fetches the stored roster of a team.
func (c *Client) Roster(ctx context.Context, team string) (model.Roster, error) {
	var r model.Roster
	err := c.do(ctx, http.MethodGet, "/rosters/"+url.PathEscape(team), nil, &r)
	return r, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
