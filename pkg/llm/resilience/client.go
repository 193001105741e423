// Package resilience 提供模型调用的韧性包装：固定退避重试、共享令牌桶限流、熔断器。
package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/kart-io/memoria/pkg/llm"
)

// DefaultSchedule 是重试之间的固定等待表，长度即最大重试次数。
var DefaultSchedule = []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second}

// SleepFunc 等待 d 或直到 ctx 结束。
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep 是默认的 SleepFunc。
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Config 韧性客户端配置。
type Config struct {
	// Schedule 重试等待表，nil 使用 DefaultSchedule。
	Schedule []time.Duration
	// Sleep 等待函数，测试中可替换。
	Sleep SleepFunc
	// Limiter 所有使用同一凭证的调用共享的令牌桶，nil 表示不限流。
	Limiter *rate.Limiter
	// Breaker 熔断器，nil 表示不启用。
	Breaker *CircuitBreaker
	// OnRetry 每次重试前回调，用于统计。
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Client 对单个文本生成端点做可靠调用，不感知业务语义。
type Client struct {
	provider llm.TextProvider
	config   Config
	tracer   trace.Tracer
}

// NewClient 创建韧性客户端。
func NewClient(provider llm.TextProvider, config Config) *Client {
	if config.Schedule == nil {
		config.Schedule = DefaultSchedule
	}
	if config.Sleep == nil {
		config.Sleep = Sleep
	}
	return &Client{
		provider: provider,
		config:   config,
		tracer:   otel.Tracer("github.com/kart-io/memoria/pkg/llm/resilience"),
	}
}

// Model 返回底层模型标识。
func (c *Client) Model() string {
	return c.provider.Model()
}

// errorKind 错误分类。
type errorKind int

const (
	kindPermanent errorKind = iota
	kindRateLimited
	kindNetwork
)

// Call 调用模型并按固定退避表重试 429 与网络错误。
//
// 其他非 2xx 响应立即返回，空内容返回 llm.ErrEmptyContent。
// 429 重试耗尽返回状态 429 的 *llm.APIError，网络错误耗尽返回状态 500。
func (c *Client) Call(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Call", trace.WithAttributes(
		attribute.String("llm.provider", c.provider.Name()),
		attribute.String("llm.model", c.provider.Model()),
		attribute.Bool("llm.json_mode", opts.JSONMode),
		attribute.Int("llm.prompt_chars", len(prompt)),
	))
	defer span.End()

	text, attempts, err := c.call(ctx, prompt, opts)
	span.SetAttributes(attribute.Int("llm.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return text, nil
}

func (c *Client) call(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, int, error) {
	for attempt := 0; ; attempt++ {
		if c.config.Limiter != nil {
			if err := c.config.Limiter.Wait(ctx); err != nil {
				return "", attempt, err
			}
		}

		text, err := c.generate(ctx, prompt, opts)
		if err == nil {
			return text, attempt + 1, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", attempt + 1, ctxErr
		}

		kind := classify(err)
		if kind == kindPermanent {
			return "", attempt + 1, err
		}

		if attempt >= len(c.config.Schedule) {
			logger.Warnw("model call retries exhausted",
				"attempts", attempt+1,
				"error", err.Error(),
			)
			if kind == kindRateLimited {
				return "", attempt + 1, &llm.APIError{
					StatusCode: http.StatusTooManyRequests,
					Message:    fmt.Sprintf("rate limit exceeded after %d attempts", attempt+1),
				}
			}
			return "", attempt + 1, &llm.APIError{
				StatusCode: http.StatusInternalServerError,
				Message:    fmt.Sprintf("network error after %d attempts: %v", attempt+1, err),
			}
		}

		delay := c.config.Schedule[attempt]
		logger.Warnw("model call failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"rate_limited", kind == kindRateLimited,
			"error", err.Error(),
		)
		if c.config.OnRetry != nil {
			c.config.OnRetry(attempt+1, delay, err)
		}
		if err := c.config.Sleep(ctx, delay); err != nil {
			return "", attempt + 1, err
		}
	}
}

func (c *Client) generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	if c.config.Breaker == nil {
		return c.provider.Generate(ctx, prompt, opts)
	}
	var text string
	err := c.config.Breaker.Execute(func() error {
		var err error
		text, err = c.provider.Generate(ctx, prompt, opts)
		return err
	}, isUpstreamFault)
	return text, err
}

func classify(err error) errorKind {
	if errors.Is(err, llm.ErrEmptyContent) || errors.Is(err, ErrCircuitBreakerOpen) {
		return kindPermanent
	}

	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return kindRateLimited
		}
		return kindPermanent
	}

	if isNetworkError(err) {
		return kindNetwork
	}
	return kindPermanent
}

// isNetworkError 判断是否为网络层错误（超时、DNS、连接被拒绝或重置）。
func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// isUpstreamFault 决定哪些错误计入熔断器失败次数。
func isUpstreamFault(err error) bool {
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= 500
	}
	return isNetworkError(err)
}

// NewLimiter 按每分钟请求数创建令牌桶，requestsPerMinute <= 0 时返回 nil。
func NewLimiter(requestsPerMinute float64, burst int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerMinute/60), burst)
}
