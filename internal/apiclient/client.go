package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/crucial707/pickem/internal/metrics"
)

// maxResponseBytes bounds JSON responses read into memory. Backup downloads
// are streamed and not subject to it.
const maxResponseBytes = 10 << 20

// Config holds configuration for creating a Client.
type Config struct {
	// BaseURL is the API root including the /api prefix (e.g. "http://localhost:5000/api").
	BaseURL string
	// HTTPClient is used for all requests. If nil, a client with a 15s timeout is used.
	HTTPClient *http.Client
	// Logger is used for request logging. If nil, slog.Default() is used.
	Logger *slog.Logger
	// Limiter, when set, is waited on before every request.
	Limiter *rate.Limiter
	// OnUnauthorized is called with the credential a 401 response rejected.
	OnUnauthorized func(token string)
}

// Client talks to the pick'em backend. A Client is immutable: WithToken
// returns a new instance, so a credential change never leaks into requests
// already built from an older client.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
	limiter        *rate.Limiter
	onUnauthorized func(token string)
	token          string
}

// New creates an unauthenticated Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("apiclient: BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: BaseURL %q must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:     httpClient,
		logger:         logger,
		limiter:        cfg.Limiter,
		onUnauthorized: cfg.OnUnauthorized,
	}, nil
}

// WithToken returns a copy of c that sends token as its bearer credential.
// An empty token yields an unauthenticated client.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithUnauthorizedHook returns a copy of c that reports 401 responses to fn.
func (c *Client) WithUnauthorizedHook(fn func(token string)) *Client {
	cp := *c
	cp.onUnauthorized = fn
	return &cp
}

// Authenticated reports whether c carries a credential.
func (c *Client) Authenticated() bool {
	return c.token != ""
}

// BaseURL returns the API root c was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// doJSON sends in (if non-nil) as a JSON body and decodes a 2xx response into
// out (if non-nil).
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("apiclient: encode %s %s body: %w", method, path, err)
		}
		body = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	resp, err := c.send(ctx, method, path, query, contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{Method: method, Path: path, Err: err}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s response: %w", method, path, err)
	}
	return nil
}

// send performs one request. It returns the response only for 2xx status
// codes; the caller must close its body. Any other status is consumed and
// returned as *APIError.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, contentType string, body io.Reader) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: method, Path: path, Err: err}
		}
	}

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.RecordRequest(method, path, 0, duration.Seconds())
		c.logger.Debug("api request failed", "method", method, "path", path, "error", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	metrics.RecordRequest(method, path, resp.StatusCode, duration.Seconds())
	c.logger.Debug("api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds())

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return resp, nil
	}

	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data)}

	if resp.StatusCode == http.StatusUnauthorized && c.token != "" && c.onUnauthorized != nil {
		c.logger.Info("credential rejected by backend", "method", method, "path", path)
		c.onUnauthorized(c.token)
	}
	return nil, apiErr
}
