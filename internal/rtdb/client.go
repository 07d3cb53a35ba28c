// Package rtdb writes documents to a Firebase Realtime Database over its REST API.
package rtdb

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

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// Writer interface for testability
type Writer interface {
	Put(ctx context.Context, path string, v any) error
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
	tokens     oauth2.TokenSource
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ Writer = (*Client)(nil)

func NewClient(baseURL, authToken string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:       20,
		MaxConnsPerHost:    4,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		authToken:  authToken,
		limiter:    limiter,
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

// WithTokenSource authenticates every write with an OAuth bearer token from
// ts instead of the auth query parameter.
func (c *Client) WithTokenSource(ts oauth2.TokenSource) *Client {
	c.tokens = ts
	c.authToken = ""
	return c
}

// documentURL builds {base}/{path}.json with the auth query parameter when set.
func (c *Client) documentURL(path string) string {
	u := c.baseURL + "/" + strings.Trim(path, "/") + ".json"
	if c.authToken != "" {
		u += "?auth=" + url.QueryEscape(c.authToken)
	}
	return u
}

// Put replaces the document at path with the JSON encoding of v.
func (c *Client) Put(ctx context.Context, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.documentURL(path)

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying write",
				zap.String("path", path),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.tokens != nil {
			token, err := c.tokens.Token()
			if err != nil {
				return fmt.Errorf("fetching access token: %w", err)
			}
			token.SetAuthHeader(req)
		}
		// Skip echoing the written document back.
		req.Header.Set("X-Firebase-Print", "silent")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return ErrUnauthorized
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = ErrRateLimited
			continue
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		if readErr != nil {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
