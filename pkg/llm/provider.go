// Package llm 提供统一的文本生成供应商抽象层。
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// GenerateOptions 单次生成调用的参数。
type GenerateOptions struct {
	// Temperature 采样温度。
	Temperature float64
	// MaxTokens 输出 token 上限，0 表示使用供应商默认值。
	MaxTokens int
	// JSONMode 要求模型只输出 JSON。
	JSONMode bool
}

// TextProvider 定义文本生成供应商接口。
// 实现只做一次往返调用，重试由 resilience 包负责。
type TextProvider interface {
	// Generate 根据提示生成文本。
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Name 返回供应商名称。
	Name() string

	// Model 返回模型标识。
	Model() string
}

// ErrEmptyContent 响应成功但没有可用文本。
var ErrEmptyContent = errors.New("llm: empty content")

// ErrMissingAPIKey 未配置 API 密钥。
var ErrMissingAPIKey = errors.New("llm: api key is not configured")

// APIError 上游返回的非 2xx 响应。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm api error (status %d): %s", e.StatusCode, e.Message)
}

// StatusCode 从错误中提取上游状态码，无法识别时返回 500。
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 500
}

// ProviderFactory 供应商工厂函数类型。
type ProviderFactory func(config map[string]any) (TextProvider, error)

var registry = struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}{factories: make(map[string]ProviderFactory)}

// RegisterProvider 注册供应商工厂。
func RegisterProvider(name string, factory ProviderFactory) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.factories[name] = factory
}

// NewProvider 根据名称创建供应商实例。
func NewProvider(name string, config map[string]any) (TextProvider, error) {
	registry.mu.RLock()
	factory, ok := registry.factories[name]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
	return factory(config)
}

// ListProviders 列出所有已注册的供应商名称。
func ListProviders() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.factories))
	for name := range registry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConfigString 从配置 map 读取字符串，缺失或为空时返回 def。
func ConfigString(config map[string]any, key, def string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return def
}

// ConfigDuration 从配置 map 读取时长。
func ConfigDuration(config map[string]any, key string, def time.Duration) time.Duration {
	if v, ok := config[key].(time.Duration); ok && v > 0 {
		return v
	}
	return def
}
