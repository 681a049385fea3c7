// Package backend talks to the hosted content backend's PostgREST-style API.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/heritage/internal/models"
)

const (
	storiesPath   = "/rest/v1/stories"
	storiesSelect = "id,title,content,author_name,monument_id,monuments(title,location,era)"
	maxErrorBody  = 64 << 10
)

// Client reads stories from the hosted backend.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the backend at baseURL. A zero timeout
// leaves request deadlines to the caller's context.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// Error is a non-2xx response from the backend.
type Error struct {
	Status  int
	Message string
	Code    string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// LatestApproved fetches the most recently created approved story with its
// monument projection, or nil when there is none.
func (c *Client) LatestApproved(ctx context.Context) (*models.Story, error) {
	q := url.Values{}
	q.Set("select", storiesSelect)
	q.Set("status", "eq."+models.StatusApproved)
	q.Set("order", "created_at.desc")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+storiesPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: fetch stories: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeError(resp)
	}

	var rows []models.Story
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("backend: decode stories: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	st := rows[0]
	if st.Monument != nil && *st.Monument == (models.Monument{}) {
		st.Monument = nil
	}
	st.Status = models.StatusApproved
	return &st, nil
}

// Ping checks that the backend answers with the configured key.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+storiesPath+"?limit=0", nil)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: ping: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func decodeError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Code    string `json:"code"`
	}
	e := &Error{Status: resp.StatusCode}
	if json.Unmarshal(body, &payload) == nil {
		e.Code = payload.Code
		e.Message = payload.Message
		if e.Message == "" {
			e.Message = payload.Error
		}
	}
	return e
}
