// Package client talks to a running triage server over its REST API.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/medops/triage/internal/domain/triage"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	http *resty.Client
}

// New returns a client for baseURL (for example http://localhost:8000).
// An empty token sends no Authorization header.
func New(baseURL, token string) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/api/v1").
		SetTimeout(15*time.Second).
		SetHeader("Accept", "application/json").
		SetError(&errorBody{})
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Client{http: c}
}

type errorBody struct {
	Message string `json:"message"`
}

type queueBody struct {
	Data  []*triage.Case `json:"data"`
	Total int            `json:"total"`
}

// Queue fetches the active queue in service order, optionally restricted to
// one priority.
func (c *Client) Queue(ctx context.Context, priority string) ([]*triage.Case, error) {
	var out queueBody
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if priority != "" {
		req.SetQueryParam("priority", priority)
	}
	resp, err := req.Get("/triage/queue")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) Stats(ctx context.Context) (*triage.QueueStats, error) {
	var out triage.QueueStats
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/triage/queue/stats")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Submit creates a case. It is not retried: a repeat would queue the
// patient twice.
func (c *Client) Submit(ctx context.Context, in triage.SubmitRequest) (*triage.Case, error) {
	var out triage.Case
	resp, err := c.http.R().SetContext(ctx).SetBody(in).SetResult(&out).Post("/triage/cases")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status triage.Status) (*triage.Case, error) {
	var out triage.Case
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]triage.Status{"status": status}).
		SetResult(&out).
		Patch("/triage/cases/{id}/status")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("call triage server: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	msg := strings.TrimSpace(resp.String())
	if body, ok := resp.Error().(*errorBody); ok && body.Message != "" {
		msg = body.Message
	}
	return &APIError{Status: resp.StatusCode(), Message: msg}
}
