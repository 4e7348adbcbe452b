// Package github is the REST client the engine fetches through. It covers
// exactly the surface the ranking and advisory layers need: commit listings
// per path, pull requests, reviews, file content, and issue comments.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/prsignal-dev/prsignal/pkg/cache"
)

const apiBase = "https://api.github.com"

// Client talks to the GitHub REST API. It implements signals.Source.
type Client struct {
	tokenExpiry   time.Time
	installExpiry time.Time
	httpClient    *http.Client
	cache         *cache.Cache
	userCache     *userCache
	appID         string
	baseURL       string
	token         string
	org           string
	installToken  string
	privateKey    []byte
	installID     int
	tokenMutex    sync.RWMutex
	isAppAuth     bool
}

// Config holds configuration for creating a new GitHub client.
type Config struct {
	AppID       string
	AppKeyPath  string
	Token       string // Personal access token (for non-app auth)
	Org         string // Organization for installation token scoping (app auth)
	HTTPTimeout time.Duration
	CacheTTL    time.Duration
	UseAppAuth  bool
}

// New creates a GitHub API client using gh auth token or GitHub App authentication.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	if cfg.UseAppAuth {
		return newAppAuthClient(cfg)
	}
	return newPersonalTokenClient(ctx, cfg)
}

// Token returns the token suitable for external use (e.g. the event stream).
// For App authentication this is the installation token for the configured org.
func (c *Client) Token(ctx context.Context) (string, error) {
	if c.isAppAuth {
		return c.installationToken(ctx)
	}
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, nil
}

// drainAndCloseBody drains and closes an HTTP response body to prevent resource leaks.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}

// doRequest makes an HTTP request to the GitHub API with retry logic.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body any) (*http.Response, error) {
	if c.isAppAuth {
		if err := c.refreshJWTIfNeeded(); err != nil {
			return nil, fmt.Errorf("failed to refresh JWT: %w", err)
		}
	}

	slog.Debug("http request", "method", method, "url", apiURL)

	var resp *http.Response
	err := retryWithBackoff(ctx, fmt.Sprintf("%s %s", method, apiURL), func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyBytes, err := json.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		authToken, scheme := c.authToken(ctx)
		req.Header.Set("Authorization", scheme+" "+authToken)
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if method == http.MethodPost || method == http.MethodPatch || method == http.MethodPut {
			req.Header.Set("Content-Type", "application/json")
		}

		localResp, err := c.httpClient.Do(req) //nolint:bodyclose // body is closed by the caller
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if localResp.StatusCode == http.StatusTooManyRequests {
			drainAndCloseBody(localResp.Body)
			slog.Warn("rate limited, will retry with backoff", "method", method, "url", apiURL)
			return fmt.Errorf("http %d: rate limited", localResp.StatusCode)
		}

		if localResp.StatusCode >= http.StatusInternalServerError && localResp.StatusCode < 600 {
			drainAndCloseBody(localResp.Body)
			slog.Warn("server error, will retry with backoff", "method", method, "url", apiURL, "status", localResp.StatusCode)
			return fmt.Errorf("http %d: server error", localResp.StatusCode)
		}

		resp = localResp
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("http response", "method", method, "url", apiURL, "status", resp.StatusCode)
	return resp, nil
}

// authToken picks the token and Authorization scheme for a request.
func (c *Client) authToken(ctx context.Context) (token, scheme string) {
	if c.isAppAuth {
		if installToken, err := c.installationToken(ctx); err == nil {
			return installToken, "Bearer"
		}
		// Graceful degradation: the JWT can still reach app-level endpoints.
		c.tokenMutex.RLock()
		defer c.tokenMutex.RUnlock()
		return c.token, "Bearer"
	}
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token, "token"
}

// getJSON performs a GET request and decodes a 200 response into out.
func (c *Client) getJSON(ctx context.Context, apiURL string, out any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return err
	}
	defer drainAndCloseBody(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, apiURL)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", apiURL, err)
	}
	return nil
}

// Retry constants.
const (
	maxRetryAttempts  = 8
	initialRetryDelay = 1 * time.Second
	maxRetryDelay     = 2 * time.Minute
)

// retryWithBackoff executes a function with exponential backoff and jitter.
func retryWithBackoff(ctx context.Context, operation string, fn func() error) error {
	return retry.Do(
		fn,
		retry.Context(ctx),
		retry.Attempts(uint(maxRetryAttempts)),
		retry.Delay(initialRetryDelay),
		retry.MaxDelay(maxRetryDelay),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(initialRetryDelay/4),
		retry.OnRetry(func(n uint, err error) {
			slog.Info("retrying", "operation", operation, "attempt", n+1, "max_attempts", maxRetryAttempts, "error", err)
		}),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if err == nil {
				return false
			}
			errStr := err.Error()
			return strings.Contains(errStr, "rate limited") ||
				strings.Contains(errStr, "server error") ||
				strings.Contains(errStr, "connection refused") ||
				strings.Contains(errStr, "timeout") ||
				strings.Contains(errStr, "EOF")
		}),
	)
}
