// Package client is a Go client for the planguard HTTP API.
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
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/planguard/internal/version"
)

const defaultTimeout = 10 * time.Second

// Client calls a planguard server. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithAPIKey sends key as a Bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// CheckCapability asks whether role may perform capability.
func (c *Client) CheckCapability(ctx context.Context, role, capability string) (Decision, error) {
	var d Decision
	err := c.do(ctx, http.MethodPost, "/v1/capabilities/check",
		map[string]string{"role": role, "capability": capability}, &d)
	return d, err
}

// CheckModel asks whether role on plan may invoke modelID.
func (c *Client) CheckModel(ctx context.Context, role, plan, modelID string) (Decision, error) {
	var d Decision
	err := c.do(ctx, http.MethodPost, "/v1/models/check",
		map[string]string{"role": role, "plan": plan, "model_id": modelID}, &d)
	return d, err
}

// Meter records usage for accountID and returns the alerts it triggered.
func (c *Client) Meter(ctx context.Context, accountID string, req MeterRequest) ([]Alert, error) {
	var resp struct {
		Alerts []Alert `json:"alerts"`
	}
	if err := c.do(ctx, http.MethodPost, accountPath(accountID, "usage"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Alerts, nil
}

// Usage reads accountID's current counters. A non-empty plan adds quota
// percentages for that plan.
func (c *Client) Usage(ctx context.Context, accountID, plan string) (Usage, error) {
	path := accountPath(accountID, "usage")
	if plan != "" {
		path += "?plan=" + url.QueryEscape(plan)
	}
	var u Usage
	err := c.do(ctx, http.MethodGet, path, nil, &u)
	return u, err
}

// OpenPeriod sends the billing period reset signal.
func (c *Client) OpenPeriod(ctx context.Context, accountID string, start, end time.Time) (OpenPeriodResult, error) {
	var res OpenPeriodResult
	err := c.do(ctx, http.MethodPost, accountPath(accountID, "periods"),
		map[string]time.Time{"start": start.UTC(), "end": end.UTC()}, &res)
	return res, err
}

// ArchivedPeriod reads a closed period by its start.
func (c *Client) ArchivedPeriod(ctx context.Context, accountID string, start time.Time) (Usage, error) {
	var u Usage
	path := accountPath(accountID, "periods") + "/" + strconv.FormatInt(start.UnixMilli(), 10)
	err := c.do(ctx, http.MethodGet, path, nil, &u)
	return u, err
}

// Roles lists the role catalog.
func (c *Client) Roles(ctx context.Context) ([]Role, error) {
	var resp list[Role]
	err := c.do(ctx, http.MethodGet, "/v1/roles", nil, &resp)
	return resp.Items, err
}

// Plans lists the plan catalog.
func (c *Client) Plans(ctx context.Context) ([]Plan, error) {
	var resp list[Plan]
	err := c.do(ctx, http.MethodGet, "/v1/plans", nil, &resp)
	return resp.Items, err
}

// Models lists the model catalog.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var resp list[Model]
	err := c.do(ctx, http.MethodGet, "/v1/models", nil, &resp)
	return resp.Items, err
}

// Health reads the server's health report. An unhealthy server answers 503
// with a report; that report is returned together with the APIError.
func (c *Client) Health(ctx context.Context) (Health, error) {
	var h Health
	err := c.do(ctx, http.MethodGet, "/health", nil, &h)
	return h, err
}

func accountPath(accountID, suffix string) string {
	return "/v1/accounts/" + url.PathEscape(accountID) + "/" + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		if jerr := json.Unmarshal(data, apiErr); jerr != nil || apiErr.Code == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		// Health reports come back on 503 too.
		if out != nil && path == "/health" {
			_ = json.Unmarshal(data, out)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RetryAfter time.Duration     `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("planguard: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("planguard: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsRetryable reports whether err is a ledger outage the server asked to retry.
func IsRetryable(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable
}
