// Package graph is a thin client for the Microsoft Graph REST API. It owns
// request execution, rate-limit compliance and pagination; mail-specific
// calls live in mail.go.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the Microsoft Graph API base URL.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// defaultRetryAfter is used when a 429 response omits the Retry-After header.
const defaultRetryAfter = 60

// Client executes requests against the Graph API. A single client is shared
// by the sync and delivery engines; the embedded limiter throttles both.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *RateLimiter
	log     *zap.Logger
}

// NewClient creates a Graph client. An empty baseURL selects the public
// Graph endpoint; tests point it at a local server.
func NewClient(baseURL string, limit RateLimitConfig, log *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: NewRateLimiter(limit),
		log:     log.Named("graph"),
	}
}

// graphErrorBody is the structured error envelope Graph returns on failure.
type graphErrorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Page is one page of a list or delta response.
type Page struct {
	Value     []json.RawMessage `json:"value"`
	NextLink  string            `json:"@odata.nextLink"`
	DeltaLink string            `json:"@odata.deltaLink"`
}

// Do executes one Graph request and decodes the JSON response into out (which
// may be nil for calls with empty responses, such as sendMail).
//
// endpoint may be a path resolved against the base URL or an absolute
// continuation URL as returned in nextLink/deltaLink fields; both are
// accepted transparently. A 429 response is retried after the Retry-After
// delay (60s when absent), with no upper bound on repeats.
func (c *Client) Do(ctx context.Context, method, endpoint, token string, body any, query url.Values, out any) error {
	target := endpoint
	if !strings.HasPrefix(endpoint, "http") {
		target = c.baseURL + endpoint
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		var reader io.Reader = http.NoBody
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("graph request: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			io.Copy(io.Discard, resp.Body) //nolint:errcheck
			resp.Body.Close()

			c.log.Warn("rate limited by graph, backing off",
				zap.String("endpoint", endpoint),
				zap.Int("retry_after_seconds", retryAfter))

			// The limiter's next Wait sleeps out the backoff window,
			// then the identical request is reissued.
			c.limiter.RecordRateLimitError(retryAfter)
			continue
		}

		return c.finish(resp, endpoint, out)
	}
}

// finish consumes the response body and decodes it or raises an APIError.
func (c *Client) finish(resp *http.Response, endpoint string, out any) error {
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		msg := string(data)
		var envelope graphErrorBody
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Message != "" {
			msg = envelope.Error.Message
		}
		c.log.Error("graph request failed",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetAllPages follows nextLink continuations from an initial page until
// exhausted, returning all items in response order. The final page's
// deltaLink, if any, is written back onto first.
func (c *Client) GetAllPages(ctx context.Context, first *Page, token string) ([]json.RawMessage, error) {
	items := append([]json.RawMessage(nil), first.Value...)
	nextLink := first.NextLink

	for nextLink != "" {
		var page Page
		if err := c.Do(ctx, http.MethodGet, nextLink, token, nil, nil, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		nextLink = page.NextLink
		if page.DeltaLink != "" {
			first.DeltaLink = page.DeltaLink
		}
	}

	return items, nil
}

// parseRetryAfter reads a Retry-After header value in seconds.
func parseRetryAfter(value string) int {
	if value == "" {
		return defaultRetryAfter
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return defaultRetryAfter
	}
	return n
}
