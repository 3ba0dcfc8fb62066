// Package fusion talks to the Fusion+ quoter, relayer and orders APIs.
package fusion

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

	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/types"
)

const (
	DefaultBaseURL    = "https://api.1inch.dev/fusion-plus"
	DefaultAPIVersion = "v1.0"
	DefaultTimeout    = 15 * time.Second

	maxResponseBody = 4 << 20
	maxErrorBody    = 2048
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIVersion string
	APIKey     string
	// Timeout bounds every request. Zero means DefaultTimeout.
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the shared transport for every Fusion+ endpoint. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	version string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	log     *slog.Logger
}

// NewClient creates a new Fusion+ API client
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, types.ConfigurationError("fusion: API key is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, types.ConfigurationError("fusion: invalid base URL %q: %v", opts.BaseURL, err)
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logger.Named("fusion")
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		version: opts.APIVersion,
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		http:    httpClient,
		log:     log,
	}, nil
}

// endpoint builds {base}/{service}/{version}/{path}.
func (c *Client) endpoint(service, path string) string {
	return fmt.Sprintf("%s/%s/%s/%s", c.baseURL, service, c.version, strings.TrimLeft(path, "/"))
}

// do performs one request. A nil out discards the response body.
func (c *Client) do(ctx context.Context, op, method, endpoint string, query url.Values, body, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return types.WrapProtocolError(op, fmt.Errorf("encode request: %w", err), "")
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return types.NetworkError(op, 0, "", fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("relayer request failed", "op", op, "method", method, "error", err)
		return types.NetworkError(op, 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	c.log.Debug("relayer request",
		"op", op,
		"method", method,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	if err != nil {
		return types.NetworkError(op, resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return types.NetworkError(op, resp.StatusCode, snippet(data), nil)
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return types.ProtocolError(op, "empty response body (status %d)", resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return types.WrapProtocolError(op, fmt.Errorf("decode response: %w", err), snippet(data))
	}
	return nil
}

func snippet(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
