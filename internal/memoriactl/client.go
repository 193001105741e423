package memoriactl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/memoria/handler"
	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/sse"
	"github.com/kart-io/memoria/pkg/response"
	"github.com/kart-io/memoria/pkg/utils/httpclient"
	"github.com/kart-io/memoria/pkg/utils/json"
)

// ErrIncompleteStream 表示进度流在终止事件之前结束。
var ErrIncompleteStream = errors.New("progress stream ended before a complete or error event")

// Client 调用 memoria 服务的 HTTP 接口。
type Client struct {
	server string
	token  string
	http   *httpclient.Client
}

// NewClient creates a Client. timeout 为 0 时不限制，进度流可能持续数分钟。
func NewClient(server, token string, timeout time.Duration) *Client {
	return &Client{
		server: strings.TrimRight(server, "/"),
		token:  token,
		http:   httpclient.NewClientWith(&http.Client{Timeout: timeout}),
	}
}

func (c *Client) projectURL(projectID, action string) string {
	return fmt.Sprintf("%s/api/v1/projects/%s/%s", c.server, url.PathEscape(projectID), action)
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

// Diagnose 触发一次新的诊断。
func (c *Client) Diagnose(ctx context.Context, projectID string) (*model.Diagnostic, error) {
	var out handler.DiagnosticResponse
	if err := c.http.DoJSON(ctx, http.MethodPost, c.projectURL(projectID, "diagnostics"), c.header(), struct{}{}, &out); err != nil {
		return nil, apiError(err)
	}
	return out.Diagnostic, nil
}

// Latest 读取最近一次诊断，没有诊断时返回 nil。
func (c *Client) Latest(ctx context.Context, projectID string) (*model.Diagnostic, error) {
	var out handler.DiagnosticResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.projectURL(projectID, "diagnostics"), c.header(), nil, &out); err != nil {
		return nil, apiError(err)
	}
	return out.Diagnostic, nil
}

// Improve 启动自动修复并把每个事件交给 fn，直到收到终止事件。
// error 事件以错误返回，fn 仍会先收到它。
func (c *Client) Improve(ctx context.Context, projectID string, fn func(biz.Event) error) error {
	body, err := c.http.Stream(ctx, http.MethodPost, c.projectURL(projectID, "auto-improve"), c.header(), struct{}{})
	if err != nil {
		return apiError(err)
	}
	defer func() { _ = body.Close() }()

	r := sse.NewReader(body)
	for {
		data, err := r.Next()
		if errors.Is(err, io.EOF) {
			return ErrIncompleteStream
		}
		if err != nil {
			return fmt.Errorf("failed to read progress stream: %w", err)
		}

		var ev biz.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("invalid progress event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
		switch ev.Type {
		case biz.EventComplete:
			return nil
		case biz.EventError:
			return fmt.Errorf("improvement failed: %s", ev.Error.Message)
		}
	}
}

// apiError 把服务端的 JSON 错误体转换为可读错误。
func apiError(err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var body response.ErrorBody
	if json.Unmarshal([]byte(se.Body), &body) == nil && body.Error != "" {
		return fmt.Errorf("%s (HTTP %d, code %d)", body.Error, se.StatusCode, body.Code)
	}
	return err
}
