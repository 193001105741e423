// Package memoria provides the diagnosis and repair pipeline options.
package memoria

import (
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/memoria/pkg/options"
	"github.com/kart-io/memoria/pkg/validator"
)

var _ options.IOptions = (*Options)(nil)

// Options 诊断与修复流程的可调参数。
type Options struct {
	// SectionDelay 相邻章节修复之间的固定等待。
	SectionDelay time.Duration `json:"section-delay" mapstructure:"section-delay" validate:"gte=0"`
	// SettleDelay 全部章节处理后、重新诊断前的等待。
	SettleDelay time.Duration `json:"settle-delay" mapstructure:"settle-delay" validate:"gte=0"`

	SectionContentBudget int `json:"section-content-budget" mapstructure:"section-content-budget" validate:"gte=100"`
	ReferenceBudget      int `json:"reference-budget" mapstructure:"reference-budget" validate:"gte=0"`
	ContextSectionBudget int `json:"context-section-budget" mapstructure:"context-section-budget" validate:"gte=0"`
	MinRewriteLength     int `json:"min-rewrite-length" mapstructure:"min-rewrite-length" validate:"gte=1"`

	DiagnosisTemperature float64 `json:"diagnosis-temperature" mapstructure:"diagnosis-temperature" validate:"gte=0,lte=2"`
	DiagnosisMaxTokens   int     `json:"diagnosis-max-tokens" mapstructure:"diagnosis-max-tokens" validate:"gt=0"`
	RepairTemperature    float64 `json:"repair-temperature" mapstructure:"repair-temperature" validate:"gte=0,lte=2"`
	RepairMaxTokens      int     `json:"repair-max-tokens" mapstructure:"repair-max-tokens" validate:"gt=0"`

	// RunPoolSize 同时执行的修复任务上限，超出时请求被拒绝。
	RunPoolSize int `json:"run-pool-size" mapstructure:"run-pool-size" validate:"gte=1,lte=1000"`
	// LockTTL 分布式项目锁的过期时间，只在启用 redis 时生效。运行期间每 1/3 周期续期，
	// 持有进程退出后最多 LockTTL 内释放。
	LockTTL time.Duration `json:"lock-ttl" mapstructure:"lock-ttl" validate:"gte=1m"`
	// ReferenceDir 参考文件对象存储的根目录，为空时不加载参考材料。
	ReferenceDir string `json:"reference-dir" mapstructure:"reference-dir" validate:"omitempty,dirpath"`
}

// NewOptions 创建默认配置。
func NewOptions() *Options {
	return &Options{
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
		RunPoolSize:          16,
		LockTTL:              30 * time.Minute,
	}
}

// AddFlags adds flags for memoria options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "memoria")...)
	fs.DurationVar(&o.SectionDelay, p+"section-delay", o.SectionDelay, "Pause between two section repairs.")
	fs.DurationVar(&o.SettleDelay, p+"settle-delay", o.SettleDelay, "Pause before the final re-diagnosis.")
	fs.IntVar(&o.SectionContentBudget, p+"section-content-budget", o.SectionContentBudget, "Characters of each section sent for diagnosis.")
	fs.IntVar(&o.ReferenceBudget, p+"reference-budget", o.ReferenceBudget, "Characters of reference material sent to the model.")
	fs.IntVar(&o.ContextSectionBudget, p+"context-section-budget", o.ContextSectionBudget, "Characters of each sibling section sent with a rewrite.")
	fs.IntVar(&o.MinRewriteLength, p+"min-rewrite-length", o.MinRewriteLength, "Shortest accepted rewrite after cleanup.")
	fs.Float64Var(&o.DiagnosisTemperature, p+"diagnosis-temperature", o.DiagnosisTemperature, "Sampling temperature for diagnosis.")
	fs.IntVar(&o.DiagnosisMaxTokens, p+"diagnosis-max-tokens", o.DiagnosisMaxTokens, "Output token cap for diagnosis.")
	fs.Float64Var(&o.RepairTemperature, p+"repair-temperature", o.RepairTemperature, "Sampling temperature for rewrites.")
	fs.IntVar(&o.RepairMaxTokens, p+"repair-max-tokens", o.RepairMaxTokens, "Output token cap for rewrites.")
	fs.IntVar(&o.RunPoolSize, p+"run-pool-size", o.RunPoolSize, "Maximum concurrent repair runs.")
	fs.DurationVar(&o.LockTTL, p+"lock-ttl", o.LockTTL, "Expiry of the distributed per-project lock; a run renews it every third of this period.")
	fs.StringVar(&o.ReferenceDir, p+"reference-dir", o.ReferenceDir, "Root directory of stored reference files.")
}

// Validate validates the memoria options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	return validator.Errors(o)
}

// Complete completes the memoria options.
func (o *Options) Complete() error {
	return nil
}
