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
	"strings"
	"time"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/apierror"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every call that does not set its own timeout.
const DefaultTimeout = 30 * time.Second

const timeoutMessage = "request timeout: the backend took too long to respond"

var defaultHeaders = map[string]string{
	"Content-Type": "application/json",
	"Accept":       "application/json",
}

// Client issues JSON calls against the SQL Query Buddy backend.
// It holds configuration only and is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *logrus.Logger
}

// ClientConfig holds configuration for the backend client
type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logrus.Logger
}

// RequestConfig describes a single call. A zero Timeout uses the client default.
type RequestConfig struct {
	Method  string
	Body    []byte
	Headers map[string]string
	Query   url.Values
	Timeout time.Duration
}

// NewClient creates a backend client
func NewClient(cfg ClientConfig) *Client {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		timeout:    cfg.Timeout,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// BaseURL returns the backend address requests are sent to.
func (c *Client) BaseURL() string { return c.baseURL }

// Timeout returns the default per-call timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Do executes one call and returns the raw success body. Any failure is an
// *apierror.Error: status 0 for transport problems, 408 when the deadline
// fires, otherwise the backend's HTTP status.
func (c *Client) Do(ctx context.Context, endpoint string, rc RequestConfig) (json.RawMessage, error) {
	method := rc.Method
	if method == "" {
		method = http.MethodGet
	}
	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	body, err := c.do(ctx, method, c.buildURL(endpoint, rc.Query), rc)
	fields := logrus.Fields{
		"method":   method,
		"endpoint": endpoint,
		"took":     time.Since(start),
	}
	if err != nil {
		ae := apierror.From(err)
		c.logger.WithFields(fields).WithFields(logrus.Fields{
			"kind":   ae.Kind(),
			"status": ae.StatusCode,
		}).WithError(ae).Warn("backend call failed")
		return nil, ae
	}

	c.logger.WithFields(fields).Debug("backend call succeeded")
	return body, nil
}

func (c *Client) do(ctx context.Context, method, target string, rc RequestConfig) (json.RawMessage, error) {
	var reader io.Reader
	if rc.Body != nil {
		reader = bytes.NewReader(rc.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apierror.NewConnection(fmt.Sprintf("connection error: invalid request: %v", err))
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}
	for k, v := range rc.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, httpError(resp.StatusCode, raw)
	}

	if len(bytes.TrimSpace(raw)) == 0 || !json.Valid(raw) {
		return nil, apierror.NewConnection("connection error: malformed response body from backend")
	}
	return json.RawMessage(raw), nil
}

func (c *Client) buildURL(endpoint string, query url.Values) string {
	if !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	u := c.baseURL + endpoint
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		u += sep + query.Encode()
	}
	return u
}

// transportError maps a failed round trip to the taxonomy. A fired deadline
// is a timeout regardless of which layer noticed it first.
func transportError(ctx context.Context, err error) *apierror.Error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeoutError(err) {
		return apierror.NewTimeout(timeoutMessage)
	}
	return apierror.NewConnection(fmt.Sprintf("connection error: %s: %v", describeTransportError(err), err))
}

// httpError builds the error for a non-success status. The payload falls back
// to an empty object when the body is not a JSON object.
func httpError(status int, raw []byte) *apierror.Error {
	payload := map[string]any{}
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		payload = map[string]any{}
	}

	message := fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	if detail, ok := payload["detail"].(string); ok && strings.TrimSpace(detail) != "" {
		message = detail
	}
	return apierror.NewHTTP(status, message, payload)
}

// Get issues a GET, serializing params into the query string.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	return c.Do(ctx, endpoint, RequestConfig{Method: http.MethodGet, Query: params})
}

// Post issues a POST with body serialized as JSON.
func (c *Client) Post(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, endpoint, RequestConfig{Method: http.MethodPost, Body: data})
}

// Put issues a PUT with body serialized as JSON.
func (c *Client) Put(ctx context.Context, endpoint string, body any) (json.RawMessage, error) {
	data, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, endpoint, RequestConfig{Method: http.MethodPut, Body: data})
}

// Delete issues a DELETE without a body.
func (c *Client) Delete(ctx context.Context, endpoint string) (json.RawMessage, error) {
	return c.Do(ctx, endpoint, RequestConfig{Method: http.MethodDelete})
}

func marshalBody(body any) ([]byte, error) {
	if body == nil {
		body = map[string]any{}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, apierror.NewConnection(fmt.Sprintf("connection error: failed to encode request body: %v", err))
	}
	return data, nil
}
