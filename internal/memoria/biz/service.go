package biz

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/memoria/internal/memoria/metrics"
	"github.com/kart-io/memoria/internal/memoria/store"
	"github.com/kart-io/memoria/internal/pkg/matcher"
	"github.com/kart-io/memoria/pkg/llm"
	"github.com/kart-io/memoria/pkg/llm/resilience"
)

// Model 是可靠的文本生成调用，resilience.Client 实现了该接口。
type Model interface {
	Call(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error)
	Model() string
}

// Config 诊断与修复参数。
type Config struct {
	// SectionDelay 相邻章节之间的固定等待，出错后同样等待。
	SectionDelay time.Duration
	// SettleDelay 重新诊断前的等待。
	SettleDelay time.Duration

	// SectionContentBudget 诊断提示中每个章节内容的字符上限。
	SectionContentBudget int
	// ReferenceBudget 参考材料摘录的字符上限。
	ReferenceBudget int
	// ContextSectionBudget 重写提示中其他章节内容的字符上限。
	ContextSectionBudget int
	// MinRewriteLength 清理后重写结果的最短字符数。
	MinRewriteLength int

	DiagnosisTemperature float64
	DiagnosisMaxTokens   int
	RepairTemperature    float64
	RepairMaxTokens      int
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		SectionDelay:         3 * time.Second,
		SettleDelay:          2 * time.Second,
		SectionContentBudget: 3000,
		ReferenceBudget:      8000,
		ContextSectionBudget: 1500,
		MinRewriteLength:     100,
		DiagnosisTemperature: 0.3,
		DiagnosisMaxTokens:   8192,
		RepairTemperature:    0.4,
		RepairMaxTokens:      8192,
	}
}

// Service 组合存储、模型与参考材料，提供诊断和修复能力。
type Service struct {
	store      store.Factory
	model      Model
	resolver   matcher.Resolver
	references *ReferenceLoader
	metrics    *metrics.Metrics
	config     *Config
	sleep      resilience.SleepFunc
	now        func() time.Time
	tracer     trace.Tracer
}

// Option 配置 Service。
type Option func(*Service)

// WithResolver 替换章节引用解析器，默认模糊匹配。
func WithResolver(r matcher.Resolver) Option {
	return func(s *Service) { s.resolver = r }
}

// WithReferences 设置参考材料加载器。
func WithReferences(l *ReferenceLoader) Option {
	return func(s *Service) { s.references = l }
}

// WithMetrics 设置指标收集器。
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConfig 设置业务参数。
func WithConfig(c *Config) Option {
	return func(s *Service) { s.config = c }
}

// WithSleep 替换等待函数，测试中用于跳过延迟。
func WithSleep(f resilience.SleepFunc) Option {
	return func(s *Service) { s.sleep = f }
}

// WithClock 替换时钟。
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService 创建业务服务。model 为 nil 表示未配置模型凭证。
func NewService(factory store.Factory, model Model, opts ...Option) *Service {
	s := &Service{
		store:    factory,
		model:    model,
		resolver: matcher.FuzzyResolver{},
		metrics:  metrics.Global(),
		config:   DefaultConfig(),
		sleep:    resilience.Sleep,
		now:      time.Now,
		tracer:   otel.Tracer("github.com/kart-io/memoria/internal/memoria/biz"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// callModel 调用模型并记录指标。
func (s *Service) callModel(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	start := time.Now()
	text, err := s.model.Call(ctx, prompt, opts)
	s.metrics.RecordModelCall(time.Since(start), err)
	return text, err
}

// referenceExcerpt 返回参考材料摘录，失败时为空。
func (s *Service) referenceExcerpt(ctx context.Context, owner, projectID string) string {
	if s.references == nil {
		return ""
	}
	return s.references.Excerpt(ctx, owner, projectID, s.config.ReferenceBudget)
}
