// Package httpjson is the shared request path for risk-signal providers:
// rate limiting, per-call timeout, status checking, JSON decoding and metrics.
package httpjson

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/liamashdown/tokengate/internal/metrics"
	"github.com/liamashdown/tokengate/internal/ratelimit"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Client performs JSON requests against one provider
type Client struct {
	provider   string
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	limiter    *ratelimit.Limiter
	headers    map[string]string
}

// New creates a provider client. timeout bounds every call, including the
// wait for a rate-limit token.
func New(provider, baseURL string, timeout time.Duration, rps float64, headers map[string]string) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		provider:   provider,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		limiter:    ratelimit.New(provider, rps),
		headers:    headers,
	}
}

// Get issues GET baseURL+path?query and decodes the JSON body into out.
// endpoint is a low-cardinality label for metrics.
func (c *Client) Get(ctx context.Context, endpoint, path string, query url.Values, out interface{}) error {
	return c.do(ctx, endpoint, http.MethodGet, path, query, nil, out)
}

// Post issues POST baseURL+path with a JSON body and decodes the response
// into out (skipped when out is nil).
func (c *Client) Post(ctx context.Context, endpoint, path string, body, out interface{}) error {
	return c.do(ctx, endpoint, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordProviderRequest(c.provider, endpoint, time.Since(start), err)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s rate limit wait: %w", c.limiter.Name(), err)
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
