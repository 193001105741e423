// Package metrics 提供诊断与修复流程的业务指标收集。
package metrics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics 业务指标。
type Metrics struct {
	// 诊断
	diagnosesTotal  uint64
	diagnosesErrors uint64

	// 修复运行
	runsStarted   uint64
	runsCompleted uint64
	runsFailed    uint64
	runsRejected  uint64 // 同一项目已有运行而被拒绝
	runsActive    int64

	// 章节
	sectionsImproved uint64
	sectionsFailed   uint64

	// 模型调用
	modelCallsTotal    uint64
	modelCallsErrors   uint64
	modelCallsRetries  uint64
	modelCallsDuration float64 // 秒

	durationMu sync.Mutex
	startTime  time.Time
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New 创建指标实例。
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// Global 获取全局指标实例。
func Global() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordDiagnosis 记录一次诊断。
func (m *Metrics) RecordDiagnosis(err error) {
	atomic.AddUint64(&m.diagnosesTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.diagnosesErrors, 1)
	}
}

// RunStarted 记录修复运行开始。
func (m *Metrics) RunStarted() {
	atomic.AddUint64(&m.runsStarted, 1)
	atomic.AddInt64(&m.runsActive, 1)
}

// RunFinished 记录修复运行结束，failed 表示以 error 事件终止。
func (m *Metrics) RunFinished(failed bool) {
	atomic.AddInt64(&m.runsActive, -1)
	if failed {
		atomic.AddUint64(&m.runsFailed, 1)
		return
	}
	atomic.AddUint64(&m.runsCompleted, 1)
}

// RunRejected 记录被单飞锁拒绝的运行。
func (m *Metrics) RunRejected() {
	atomic.AddUint64(&m.runsRejected, 1)
}

// RecordSection 记录单个章节的修复结果。
func (m *Metrics) RecordSection(err error) {
	if err != nil {
		atomic.AddUint64(&m.sectionsFailed, 1)
		return
	}
	atomic.AddUint64(&m.sectionsImproved, 1)
}

// RecordModelCall 记录一次模型调用（含内部重试）。
func (m *Metrics) RecordModelCall(duration time.Duration, err error) {
	atomic.AddUint64(&m.modelCallsTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.modelCallsErrors, 1)
	}
	m.durationMu.Lock()
	m.modelCallsDuration += duration.Seconds()
	m.durationMu.Unlock()
}

// RecordModelRetry 记录一次模型重试。
func (m *Metrics) RecordModelRetry() {
	atomic.AddUint64(&m.modelCallsRetries, 1)
}

// Export 导出 Prometheus 文本格式指标。
func (m *Metrics) Export(namespace string) string {
	var sb strings.Builder
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n# TYPE %s_%s counter\n%s_%s %d\n\n",
			namespace, name, help, namespace, name, namespace, name, v)
	}
	gauge := func(name, help string, v float64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n# TYPE %s_%s gauge\n%s_%s %g\n\n",
			namespace, name, help, namespace, name, namespace, name, v)
	}

	counter("diagnoses_total", "Total number of diagnoses.", atomic.LoadUint64(&m.diagnosesTotal))
	counter("diagnoses_errors_total", "Number of failed diagnoses.", atomic.LoadUint64(&m.diagnosesErrors))
	counter("runs_started_total", "Repair runs started.", atomic.LoadUint64(&m.runsStarted))
	counter("runs_completed_total", "Repair runs that emitted complete.", atomic.LoadUint64(&m.runsCompleted))
	counter("runs_failed_total", "Repair runs that emitted error.", atomic.LoadUint64(&m.runsFailed))
	counter("runs_rejected_total", "Repair runs rejected by the project lock.", atomic.LoadUint64(&m.runsRejected))
	gauge("runs_active", "Repair runs in progress.", float64(atomic.LoadInt64(&m.runsActive)))
	counter("sections_improved_total", "Sections rewritten and saved.", atomic.LoadUint64(&m.sectionsImproved))
	counter("sections_failed_total", "Sections that ended in error.", atomic.LoadUint64(&m.sectionsFailed))
	counter("model_calls_total", "Model calls.", atomic.LoadUint64(&m.modelCallsTotal))
	counter("model_calls_errors_total", "Failed model calls.", atomic.LoadUint64(&m.modelCallsErrors))
	counter("model_calls_retries_total", "Model call retries.", atomic.LoadUint64(&m.modelCallsRetries))

	m.durationMu.Lock()
	d := m.modelCallsDuration
	m.durationMu.Unlock()
	gauge("model_calls_duration_seconds_total", "Total model call duration.", d)
	gauge("uptime_seconds", "Service uptime in seconds.", time.Since(m.startTime).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *Metrics) Stats() map[string]any {
	m.durationMu.Lock()
	d := m.modelCallsDuration
	m.durationMu.Unlock()

	calls := atomic.LoadUint64(&m.modelCallsTotal)
	avg := 0.0
	if calls > 0 {
		avg = d / float64(calls)
	}

	return map[string]any{
		"diagnoses": map[string]any{
			"total":  atomic.LoadUint64(&m.diagnosesTotal),
			"errors": atomic.LoadUint64(&m.diagnosesErrors),
		},
		"runs": map[string]any{
			"started":   atomic.LoadUint64(&m.runsStarted),
			"completed": atomic.LoadUint64(&m.runsCompleted),
			"failed":    atomic.LoadUint64(&m.runsFailed),
			"rejected":  atomic.LoadUint64(&m.runsRejected),
			"active":    atomic.LoadInt64(&m.runsActive),
		},
		"sections": map[string]any{
			"improved": atomic.LoadUint64(&m.sectionsImproved),
			"failed":   atomic.LoadUint64(&m.sectionsFailed),
		},
		"model": map[string]any{
			"calls_total":         calls,
			"errors":              atomic.LoadUint64(&m.modelCallsErrors),
			"retries":             atomic.LoadUint64(&m.modelCallsRetries),
			"total_duration_secs": d,
			"avg_duration_secs":   avg,
		},
		"uptime_seconds": time.Since(m.startTime).Seconds(),
	}
}
