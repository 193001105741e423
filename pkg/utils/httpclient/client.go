// Package httpclient provides a JSON-over-HTTP client that propagates trace context.
//
// It performs exactly one round trip per call. Retry policy belongs to the caller.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/kart-io/memoria/pkg/utils/json"
)

// maxErrorBody caps how much of an error body is kept.
const maxErrorBody = 4096

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Body)
}

// DecodeError is returned when a 2xx body cannot be decoded.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Client is a wrapper around http.Client with trace propagation.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new HTTP client wrapper.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// NewClientWith wraps an existing http.Client.
func NewClientWith(hc *http.Client) *Client {
	return &Client{httpClient: hc}
}

// PostJSON marshals in, posts it to url and decodes the 2xx body into out.
// Transport failures are returned unwrapped so callers can classify them.
func (c *Client) PostJSON(ctx context.Context, url string, in, out any) error {
	return c.DoJSON(ctx, http.MethodPost, url, nil, in, out)
}

// DoJSON sends in as the JSON body (none when nil) with the extra headers
// and decodes the 2xx body into out.
func (c *Client) DoJSON(ctx context.Context, method, url string, header http.Header, in, out any) error {
	resp, err := c.do(ctx, method, url, header, in)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &DecodeError{Err: err}
		}
	}
	return nil
}

// Stream sends the request and returns the 2xx body unread. 调用方负责关闭。
func (c *Client) Stream(ctx context.Context, method, url string, header http.Header, in any) (io.ReadCloser, error) {
	resp, err := c.do(ctx, method, url, header, in)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, method, url string, header http.Header, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.injectTraceContext(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return resp, nil
}

// injectTraceContext 将 W3C Trace Context 头注入到 HTTP 请求中。
// Context 中无活跃 Span 时传播器不写入任何头。
func (c *Client) injectTraceContext(req *http.Request) {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		return
	}
	propagator.Inject(req.Context(), propagation.HeaderCarrier(req.Header))
}
