package biz

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/llm"
)

const unexpectedErrorMessage = "Unexpected error during auto-improve"

// Run 是一次已通过前置检查、尚未开始的修复运行。
type Run struct {
	svc        *Service
	owner      string
	project    *model.Project
	diagnostic *model.Diagnostic
	sections   []*model.Section
	ranked     []SectionAnalysis
}

// RunResult 一次运行的最终结果，NewScore 为 nil 表示未重新评分。
type RunResult struct {
	Improved int
	Errors   int
	OldScore int
	NewScore *int
}

// PrepareRun 加载最新诊断与章节并完成排名，前置条件不满足时返回错误，事件流尚未开始。
func (s *Service) PrepareRun(ctx context.Context, owner, projectID string) (*Run, error) {
	project, err := s.store.Projects().Get(ctx, owner, projectID)
	if err != nil {
		return nil, err
	}
	diagnostic, err := s.store.Diagnostics().Latest(ctx, owner, projectID)
	if err != nil {
		return nil, err
	}
	if diagnostic == nil {
		return nil, errors.ErrNoDiagnostic
	}
	sections, err := s.store.Sections().List(ctx, owner, projectID)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, errors.ErrNoSections
	}
	if s.model == nil {
		return nil, errors.ErrMissingCredential
	}

	return &Run{
		svc:        s,
		owner:      owner,
		project:    project,
		diagnostic: diagnostic,
		sections:   sections,
		ranked:     AnalyzeSections(s.resolver, sections, diagnostic),
	}, nil
}

// Ranked 返回按修复顺序排列的章节分析。
func (r *Run) Ranked() []SectionAnalysis {
	return r.ranked
}

// Execute 串行修复全部章节，把事件写入 events 并在返回前关闭它。
//
// 正常结束时最后一个事件是 complete，异常时是 error；ctx 取消时不再发出任何事件，
// 订阅方看到的是没有终止事件的流。
func (r *Run) Execute(ctx context.Context, events chan<- Event) {
	s := r.svc
	ctx, span := s.tracer.Start(ctx, "memoria.AutoImprove", trace.WithAttributes(
		attribute.String("project.id", r.project.ID),
		attribute.Int("sections", len(r.ranked)),
	))
	defer span.End()
	defer close(events)

	s.metrics.RunStarted()
	failed := false
	defer func() {
		if p := recover(); p != nil {
			logger.Errorw("auto-improve panicked",
				"project_id", r.project.ID,
				"panic", fmt.Sprint(p),
				"stack", string(debug.Stack()),
			)
			failed = true
			emit(ctx, events, Event{Type: EventError, Error: &ErrorData{Message: unexpectedErrorMessage}})
		}
		s.metrics.RunFinished(failed)
	}()

	result, ok := r.execute(ctx, events)
	if !ok {
		logger.Warnw("auto-improve aborted by subscriber",
			"project_id", r.project.ID,
			"improved", result.Improved,
			"errors", result.Errors,
		)
		failed = true
		return
	}
	span.SetAttributes(
		attribute.Int("improved", result.Improved),
		attribute.Int("errors", result.Errors),
	)
}

// execute 返回 false 表示 ctx 已取消，运行被放弃。
func (r *Run) execute(ctx context.Context, events chan<- Event) (RunResult, bool) {
	s := r.svc
	result := RunResult{OldScore: r.diagnostic.OverallScore}

	plan := make([]SectionPlan, 0, len(r.ranked))
	for _, a := range r.ranked {
		plan = append(plan, SectionPlan{
			ID:       a.Section.ID,
			Title:    a.Section.Title,
			Score:    a.Score,
			Feedback: a.Feedback,
			Problems: a.Problems,
		})
	}
	if !emit(ctx, events, Event{Type: EventStart, Start: &StartData{Total: len(plan), Sections: plan}}) {
		return result, false
	}

	reference := s.referenceExcerpt(ctx, r.owner, r.project.ID)
	acc := Improved{}
	for i, a := range r.ranked {
		if ctx.Err() != nil {
			return result, false
		}

		var (
			outcome sectionOutcome
			ok      bool
		)
		outcome, acc, ok = r.repairSection(ctx, events, a, acc, reference)
		if !ok {
			return result, false
		}
		if outcome.err != nil {
			result.Errors++
		} else {
			result.Improved++
		}

		if i < len(r.ranked)-1 {
			if err := s.sleep(ctx, s.config.SectionDelay); err != nil {
				return result, false
			}
		}
	}

	if result.Improved > 0 {
		if !emit(ctx, events, Event{Type: EventRediagnosing}) {
			return result, false
		}
		if err := s.sleep(ctx, s.config.SettleDelay); err != nil {
			return result, false
		}
		fresh, err := s.Diagnose(ctx, r.owner, r.project.ID)
		if ctx.Err() != nil {
			return result, false
		}
		if err != nil {
			logger.Warnw("re-diagnosis after auto-improve failed",
				"project_id", r.project.ID,
				"error", err.Error(),
			)
		} else {
			score := fresh.OverallScore
			result.NewScore = &score
		}
	}

	logger.Infow("auto-improve finished",
		"project_id", r.project.ID,
		"improved", result.Improved,
		"errors", result.Errors,
		"old_score", result.OldScore,
		"new_score", result.NewScore,
	)
	return result, emit(ctx, events, Event{Type: EventComplete, Complete: &CompleteData{
		Improved: result.Improved,
		Errors:   result.Errors,
		OldScore: result.OldScore,
		NewScore: result.NewScore,
		Summary:  Summarize(result, len(r.ranked)),
	}})
}

type sectionOutcome struct {
	content string
	err     error
}

// repairSection 处理单个章节：improving 之后必然跟随 done 或 error。
// 返回更新后的累加器；ok 为 false 表示 ctx 已取消。
func (r *Run) repairSection(ctx context.Context, events chan<- Event, a SectionAnalysis, acc Improved, reference string) (sectionOutcome, Improved, bool) {
	s := r.svc
	sec := a.Section
	if !emit(ctx, events, progress(sec, StatusImproving)) {
		return sectionOutcome{}, acc, false
	}

	fail := func(err error) (sectionOutcome, Improved, bool) {
		s.metrics.RecordSection(err)
		logger.Warnw("section improvement failed",
			"project_id", r.project.ID,
			"section_id", sec.ID,
			"section", sec.Title,
			"error", err.Error(),
		)
		ev := progress(sec, StatusError)
		ev.Progress.Error = err.Error()
		return sectionOutcome{err: err}, acc, emit(ctx, events, ev)
	}

	prompt := buildRewritePrompt(rewriteInput{
		Project:       r.project,
		Diagnostic:    r.diagnostic,
		Analysis:      a,
		Sections:      r.sections,
		Reference:     reference,
		Improved:      acc,
		ContextBudget: s.config.ContextSectionBudget,
	})
	raw, err := s.callModel(ctx, prompt, llm.GenerateOptions{
		Temperature: s.config.RepairTemperature,
		MaxTokens:   s.config.RepairMaxTokens,
	})
	if ctx.Err() != nil {
		return sectionOutcome{}, acc, false
	}
	if err != nil {
		return fail(err)
	}

	content := cleanRewrite(raw, sec.Title)
	if !longEnough(content, s.config.MinRewriteLength) {
		return fail(fmt.Errorf("rewritten content too short (%d chars)", len([]rune(content))))
	}

	if err := s.store.Sections().UpdateContent(ctx, sec.ID, content, s.now()); err != nil {
		if ctx.Err() != nil {
			return sectionOutcome{}, acc, false
		}
		return fail(err)
	}

	s.metrics.RecordSection(nil)
	logger.Infow("section improved",
		"project_id", r.project.ID,
		"section_id", sec.ID,
		"section", sec.Title,
		"old_score", a.Score,
		"chars", len([]rune(content)),
	)

	oldScore := a.Score
	ev := progress(sec, StatusDone)
	ev.Progress.NewContent = content
	ev.Progress.OldScore = &oldScore
	return sectionOutcome{content: content}, acc.With(sec.Title, content), emit(ctx, events, ev)
}

func progress(sec *model.Section, status SectionStatus) Event {
	return Event{Type: EventProgress, Progress: &ProgressData{
		SectionID: sec.ID,
		Title:     sec.Title,
		Status:    status,
	}}
}

// emit 发送事件，ctx 取消时放弃并返回 false。
func emit(ctx context.Context, events chan<- Event, ev Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Summarize 生成 complete 事件中的结果描述。
func Summarize(r RunResult, total int) string {
	if r.Improved == 0 {
		return fmt.Sprintf("No sections were improved (%d errors).", r.Errors)
	}
	if r.NewScore == nil {
		return fmt.Sprintf("Improved %d of %d sections (%d errors). Score could not be re-evaluated.", r.Improved, total, r.Errors)
	}
	return fmt.Sprintf("Improved %d of %d sections (%d errors). Score: %d → %d (%+d).",
		r.Improved, total, r.Errors, r.OldScore, *r.NewScore, *r.NewScore-r.OldScore)
}
