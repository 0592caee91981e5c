// Package client calls the Meemli API on behalf of the attendance editor.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/meemli/meemli-api/internal/models"
	appErrors "github.com/meemli/meemli-api/pkg/errors"
)

// ErrSessionNotFound is returned by FindSession when no session matches.
var ErrSessionNotFound = errors.New("client: no session for section and date")

// Client is a small JSON client for the session and attendance endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	token string
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger attaches a logger for request failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the API mounted at baseURL, e.g. http://localhost:4000/api.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken swaps the bearer token, e.g. after the identity provider refreshes it.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ListSessions returns sessions, optionally filtered by section and date.
func (c *Client) ListSessions(ctx context.Context, filter models.SessionFilter) ([]models.SessionSummary, error) {
	query := url.Values{}
	if filter.SectionID != "" {
		query.Set("section", filter.SectionID)
	}
	if filter.Date != nil {
		query.Set("date", filter.Date.String())
	}
	path := "/sessions"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	var out []models.SessionSummary
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSession returns one session with its attendance rows and students.
func (c *Client) GetSession(ctx context.Context, id string) (*models.SessionDetail, error) {
	var out models.SessionDetail
	if err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindSession resolves the session a section holds on date, with attendees.
func (c *Client) FindSession(ctx context.Context, sectionID string, date models.Date) (*models.SessionDetail, error) {
	sessions, err := c.ListSessions(ctx, models.SessionFilter{SectionID: sectionID, Date: &date})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrSessionNotFound
	}
	return c.GetSession(ctx, sessions[0].ID)
}

// BulkUpdate sends every item in one bulk patch.
func (c *Client) BulkUpdate(ctx context.Context, items []models.AttendanceUpdate) error {
	return c.do(ctx, http.MethodPut, "/attendance/bulk-update", items, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("api request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Data  json.RawMessage  `json:"data"`
		Error *appErrors.Error `json:"error"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("client: read response: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil && resp.StatusCode < http.StatusMultipleChoices {
			return fmt.Errorf("client: decode response: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := envelope.Error
		if apiErr == nil {
			apiErr = appErrors.New("HTTP_ERROR", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		apiErr.Status = resp.StatusCode
		c.logger.Warn("api request rejected",
			zap.String("method", method), zap.String("path", path),
			zap.Int("status", resp.StatusCode), zap.String("code", apiErr.Code))
		return apiErr
	}

	if dest == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		return fmt.Errorf("client: decode data: %w", err)
	}
	return nil
}
