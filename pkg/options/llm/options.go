// Package llm provides text generation provider configuration options.
package llm

import (
	"os"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"

	"github.com/kart-io/memoria/pkg/llm"
	_ "github.com/kart-io/memoria/pkg/llm/gemini" // 注册 gemini
	_ "github.com/kart-io/memoria/pkg/llm/openai" // 注册 openai
	"github.com/kart-io/memoria/pkg/options"
	pkgvalidator "github.com/kart-io/memoria/pkg/validator"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// apiKeyEnv 按供应商查找凭证的环境变量，MEMORIA_LLM_API_KEY 优先。
var apiKeyEnv = map[string]string{
	"gemini": "GEMINI_API_KEY",
	"openai": "OPENAI_API_KEY",
}

func init() {
	_ = pkgvalidator.Global().RegisterValidationWithTranslation("llm_provider",
		func(fl validator.FieldLevel) bool {
			return slices.Contains(llm.ListProviders(), fl.Field().String())
		},
		map[string]string{
			pkgvalidator.LangEN: "{0} is not a registered provider",
			pkgvalidator.LangZH: "{0}不是已注册的供应商",
		})
}

// ProviderOptions 定义文本生成供应商及调用韧性配置。
type ProviderOptions struct {
	// Provider 供应商名称（gemini, openai）。
	Provider string `json:"provider" mapstructure:"provider" validate:"llm_provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url" validate:"omitempty,url"`

	// APIKey 为空表示未配置凭证，模型调用时返回错误而不是启动失败。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 模型名称，为空时使用供应商默认值。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	// RetrySchedule 重试等待表，长度即最大重试次数。
	RetrySchedule []time.Duration `json:"retry-schedule" mapstructure:"retry-schedule" validate:"dive,gt=0"`

	// RequestsPerMinute 进程内共享令牌桶速率，0 表示不限流。
	RequestsPerMinute float64 `json:"requests-per-minute" mapstructure:"requests-per-minute" validate:"gte=0"`
	Burst             int     `json:"burst" mapstructure:"burst" validate:"gte=1"`

	BreakerEnabled     bool          `json:"breaker-enabled" mapstructure:"breaker-enabled"`
	BreakerMaxFailures int           `json:"breaker-max-failures" mapstructure:"breaker-max-failures" validate:"gte=1"`
	BreakerTimeout     time.Duration `json:"breaker-timeout" mapstructure:"breaker-timeout" validate:"gt=0"`
}

// NewProviderOptions 创建默认配置。
func NewProviderOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:           "gemini",
		Timeout:            180 * time.Second,
		RetrySchedule:      []time.Duration{5 * time.Second, 15 * time.Second, 30 * time.Second},
		RequestsPerMinute:  10,
		Burst:              1,
		BreakerMaxFailures: 8,
		BreakerTimeout:     2 * time.Minute,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"model":        o.Model,
		"timeout":      o.Timeout,
		"organization": o.Organization,
	}
}

// AddFlags adds flags for provider options to the specified FlagSet.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "llm")...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Text generation provider (gemini, openai).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key, falls back to MEMORIA_LLM_API_KEY or the provider's env var.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Per request timeout.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (optional).")
	fs.DurationSliceVar(&o.RetrySchedule, p+"retry-schedule", o.RetrySchedule, "Waits between retries of a failed model call.")
	fs.Float64Var(&o.RequestsPerMinute, p+"requests-per-minute", o.RequestsPerMinute, "Shared model call rate, 0 disables limiting.")
	fs.IntVar(&o.Burst, p+"burst", o.Burst, "Token bucket burst size.")
	fs.BoolVar(&o.BreakerEnabled, p+"breaker-enabled", o.BreakerEnabled, "Enable the circuit breaker around model calls.")
	fs.IntVar(&o.BreakerMaxFailures, p+"breaker-max-failures", o.BreakerMaxFailures, "Consecutive failures that open the breaker.")
	fs.DurationVar(&o.BreakerTimeout, p+"breaker-timeout", o.BreakerTimeout, "Time the breaker stays open.")
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}
	return pkgvalidator.Errors(o)
}

// Complete 从环境变量补全凭证。
func (o *ProviderOptions) Complete() error {
	if o.APIKey != "" {
		return nil
	}
	if v := os.Getenv("MEMORIA_LLM_API_KEY"); v != "" {
		o.APIKey = v
		return nil
	}
	if name, ok := apiKeyEnv[o.Provider]; ok {
		o.APIKey = os.Getenv(name)
	}
	return nil
}
