// Package gemini 提供 Google Gemini 文本生成供应商实现。
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kart-io/memoria/pkg/llm"
	"github.com/kart-io/memoria/pkg/utils/httpclient"
	"github.com/kart-io/memoria/pkg/utils/json"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Gemini 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string
	// APIKey Google AI API 密钥。
	APIKey string
	// Model 生成模型。
	Model string
	// Timeout 单次请求超时时间。
	Timeout time.Duration
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://generativelanguage.googleapis.com/v1beta",
		Model:   "gemini-2.0-flash",
		Timeout: 180 * time.Second,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 Gemini 供应商。
func NewProvider(configMap map[string]any) (llm.TextProvider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.ConfigString(configMap, "base_url", cfg.BaseURL)
	cfg.APIKey = llm.ConfigString(configMap, "api_key", "")
	cfg.Model = llm.ConfigString(configMap, "model", cfg.Model)
	cfg.Timeout = llm.ConfigDuration(configMap, "timeout", cfg.Timeout)

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: %w", llm.ErrMissingAPIKey)
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 Gemini 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

// Model 返回模型标识。
func (p *Provider) Model() string { return p.config.Model }

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate 调用 generateContent 生成文本。
func (p *Provider) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     opts.Temperature,
			MaxOutputTokens: opts.MaxTokens,
		},
	}
	if opts.JSONMode {
		req.GenerationConfig.ResponseMimeType = "application/json"
	}

	// 密钥只放在请求头，URL 中不得出现
	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(p.config.BaseURL, "/"), url.PathEscape(p.config.Model))
	header := http.Header{}
	header.Set("x-goog-api-key", p.config.APIKey)

	var resp generateResponse
	if err := p.client.DoJSON(ctx, http.MethodPost, endpoint, header, req, &resp); err != nil {
		return "", translateError(err)
	}

	var sb strings.Builder
	for _, c := range resp.Candidates {
		for _, pt := range c.Content.Parts {
			sb.WriteString(pt.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", llm.ErrEmptyContent
	}
	return text, nil
}

// translateError 将 HTTP 层错误转换为 llm 错误，网络错误原样返回。
func translateError(err error) error {
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		msg := se.Body
		var eb errorBody
		if json.Unmarshal([]byte(se.Body), &eb) == nil && eb.Error.Message != "" {
			msg = eb.Error.Message
		}
		return &llm.APIError{StatusCode: se.StatusCode, Message: msg}
	}
	var de *httpclient.DecodeError
	if errors.As(err, &de) {
		return fmt.Errorf("gemini: malformed response: %w", de)
	}
	return err
}
