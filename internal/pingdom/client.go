package pingdom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"checkloader/internal/config"
	"checkloader/internal/permanent"
	"checkloader/internal/retry"
)

const maxErrorBody = 512

// ErrEmptyToken is returned when the token file contains only whitespace.
var ErrEmptyToken = errors.New("api token file is empty")

// Options configures one API client.
// Params: service base URL with version, bearer token, user agent, timeout, and retry policy.
// Returns: client construction settings.
type Options struct {
	BaseURL    string
	Token      string
	UserAgent  string
	Timeout    time.Duration
	Retry      config.Retry
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the monitoring service checks API.
type Client struct {
	baseURL   string
	token     string
	userAgent string
	retry     config.Retry
	http      *http.Client
	logger    *slog.Logger
}

// NewClient builds API client from options.
// Params: client options; a nil HTTP client gets one with the configured timeout.
// Returns: initialized client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		token:     strings.TrimSpace(opts.Token),
		userAgent: opts.UserAgent,
		retry:     opts.Retry,
		http:      httpClient,
		logger:    opts.Logger,
	}
}

// NewClientFromConfig reads the token file and builds a client for cfg.
// Params: api section and optional logger.
// Returns: client or token read error.
func NewClientFromConfig(cfg config.APIConfig, logger *slog.Logger) (*Client, error) {
	token, err := ReadToken(cfg.TokenFile)
	if err != nil {
		return nil, err
	}
	return NewClient(Options{
		BaseURL:   cfg.BaseURL,
		Token:     token,
		UserAgent: cfg.UserAgent,
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Retry:     cfg.Retry,
		Logger:    logger,
	}), nil
}

// ReadToken loads the bearer token from a file and trims surrounding whitespace.
// Params: token file path.
// Returns: token or read error.
func ReadToken(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("api token file is required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read api token %q: %w", path, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("read api token %q: %w", path, ErrEmptyToken)
	}
	return token, nil
}

// do sends one request with retry and decodes a JSON response into out when out is non-nil.
// Params: context, operation label, method, query, optional form body, and decode target.
// Returns: transport, status, or decode error.
func (c *Client) do(ctx context.Context, op, method string, query url.Values, form url.Values, out any) error {
	endpoint := c.baseURL + "/checks"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	return retry.Do(ctx, c.retry, c.logger, op, func(ctx context.Context) error {
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
		if err != nil {
			return permanent.Mark(fmt.Errorf("build %s request: %w", op, err))
		}
		c.applyHeaders(request)
		if form != nil {
			request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		response, err := c.http.Do(request)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer response.Body.Close()

		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return permanent.FromStatus(op, response.StatusCode, readErrorBody(response.Body))
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, response.Body)
			return nil
		}
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			return permanent.Mark(fmt.Errorf("decode %s response: %w", op, err))
		}
		return nil
	})
}

// applyHeaders sets authentication and caching headers shared by every call.
func (c *Client) applyHeaders(request *http.Request) {
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("User-Agent", c.userAgent)
	request.Header.Set("Accept", "*/*")
	request.Header.Set("Cache-Control", "no-cache")
}

func readErrorBody(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}
