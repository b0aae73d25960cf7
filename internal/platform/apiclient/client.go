// Package apiclient is the single configured client for the upstream REST API.
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
)

type tokenContextKey struct{}

// WithToken attaches the upstream bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenContextKey{}, token)
}

// TokenFromContext extracts the bearer token stored by WithToken.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Observer, when set, is told about every upstream round trip. Status is 0 when the
	// request never got an answer.
	Observer func(method, path string, status int, elapsed time.Duration)
}

// Client wraps interactions with the upstream REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	observer   func(method, path string, status int, elapsed time.Duration)
}

// Binary is a raw upstream payload such as an exported PDF.
type Binary struct {
	Data        []byte
	ContentType string
}

// New constructs a Client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		observer:   opts.Observer,
	}
}

// Get performs a GET request and decodes the JSON answer into out.
// GET requests are retried with exponential backoff on transient failures.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	body, _, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload any, out any) error {
	body, _, err := c.do(ctx, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, payload any, out any) error {
	body, _, err := c.do(ctx, http.MethodPut, path, nil, payload)
	if err != nil {
		return err
	}
	return decode(body, out)
}

// Download performs a request whose answer is binary.
func (c *Client) Download(ctx context.Context, method, path string, payload any) (Binary, error) {
	body, header, err := c.do(ctx, method, path, nil, payload)
	if err != nil {
		return Binary{}, err
	}
	return Binary{Data: body, ContentType: header.Get("Content-Type")}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload any) ([]byte, http.Header, error) {
	var encoded []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, nil, fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		encoded = data
	}

	attempts := 1
	if method == http.MethodGet {
		attempts += c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			c.logger.Warn("retrying upstream request",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
				slog.Any("error", lastErr))
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, nil, ctx.Err()
			case <-timer.C:
			}
		}

		body, header, status, err := c.roundTrip(ctx, method, path, query, encoded)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			lastErr = fmt.Errorf("api: %s %s: %w", method, path, err)
			continue
		}
		if status >= 200 && status < 300 {
			return body, header, nil
		}
		lastErr = &APIError{Method: method, Path: path, Status: status, Message: decodeErrorMessage(body)}
		if !IsRetryable(status) {
			break
		}
	}
	return nil, nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, payload []byte) ([]byte, http.Header, int, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := TokenFromContext(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, path, 0, started)
		return nil, nil, 0, err
	}
	c.observe(method, path, resp.StatusCode, started)
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, 0, err
	}
	return body, resp.Header, resp.StatusCode, nil
}

func (c *Client) observe(method, path string, status int, started time.Time) {
	if c.observer != nil {
		c.observer(method, path, status, time.Since(started))
	}
}

func decode(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api: decode response: %w", err)
	}
	return nil
}
