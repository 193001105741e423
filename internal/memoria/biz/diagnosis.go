package biz

import (
	"context"
	stderrors "errors"
	"math"
	"strings"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/llmjson"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/id"
	"github.com/kart-io/memoria/pkg/llm"
)

const defaultSummary = "No summary available."

// Diagnose 为项目文档评分并追加一条诊断记录。
func (s *Service) Diagnose(ctx context.Context, owner, projectID string) (d *model.Diagnostic, err error) {
	ctx, span := s.tracer.Start(ctx, "memoria.Diagnose", trace.WithAttributes(
		attribute.String("project.id", projectID),
	))
	defer func() {
		s.metrics.RecordDiagnosis(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	project, err := s.store.Projects().Get(ctx, owner, projectID)
	if err != nil {
		return nil, err
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

	prompt := buildDiagnosisPrompt(project, sections, s.referenceExcerpt(ctx, owner, projectID), s.config.SectionContentBudget)
	raw, err := s.callModel(ctx, prompt, llm.GenerateOptions{
		Temperature: s.config.DiagnosisTemperature,
		MaxTokens:   s.config.DiagnosisMaxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return nil, modelCallError(err)
	}

	parsed, ok := llmjson.Parse[map[string]any](raw)
	if !ok {
		logger.Warnw("could not parse diagnosis response",
			"project_id", projectID,
			"response_chars", len(raw),
		)
		return nil, errors.ErrModelResponse
	}

	d = normalizeDiagnostic(parsed)
	d.ID = id.New()
	d.ProjectID = projectID
	d.GeneratedAt = s.now()
	d.ModelUsed = s.model.Model()

	if err := s.store.Diagnostics().Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Infow("diagnosis stored",
		"project_id", projectID,
		"diagnostic_id", d.ID,
		"overall_score", d.OverallScore,
		"sections", len(sections),
	)
	return d, nil
}

// Latest 返回项目最新的诊断，没有时返回 nil。
func (s *Service) Latest(ctx context.Context, owner, projectID string) (*model.Diagnostic, error) {
	if _, err := s.store.Projects().Get(ctx, owner, projectID); err != nil {
		return nil, err
	}
	return s.store.Diagnostics().Latest(ctx, owner, projectID)
}

// modelCallError 将模型调用错误转换为 502，取消错误原样返回。
func modelCallError(err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if stderrors.Is(err, llm.ErrEmptyContent) {
		return errors.ErrModelCall.WithMessage("Model returned empty content").WithCause(err)
	}
	var apiErr *llm.APIError
	if stderrors.As(err, &apiErr) {
		return errors.ErrModelCall.
			WithMessagef("Model call failed (upstream status %d): %s", apiErr.StatusCode, apiErr.Message).
			WithCause(err)
	}
	return errors.ErrModelCall.WithCause(err)
}

// normalizeDiagnostic 将模型返回的任意 JSON 对象规范化为诊断记录。
func normalizeDiagnostic(raw map[string]any) *model.Diagnostic {
	d := &model.Diagnostic{
		OverallScore: clampScore(number(raw["overall_score"])),
		Summary:      defaultSummary,
	}
	if s, ok := raw["summary"].(string); ok && strings.TrimSpace(s) != "" {
		d.Summary = strings.TrimSpace(s)
	}

	risks := []model.Risk{}
	for _, item := range array(raw["risks"]) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		risks = append(risks, model.Risk{
			Level:     normalizeLevel(str(obj["level"])),
			Message:   str(obj["message"]),
			SectionID: str(obj["section_id"]),
		})
	}
	d.Risks = model.NewJSON(risks)

	suggestions := []model.Suggestion{}
	for _, item := range array(raw["suggestions"]) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		suggestions = append(suggestions, model.Suggestion{
			Priority:     clampPriority(number(obj["priority"])),
			Action:       str(obj["action"]),
			SectionTitle: str(obj["section_title"]),
		})
	}
	d.Suggestions = model.NewJSON(suggestions)

	scores := map[string]model.SectionScore{}
	if obj, ok := raw["section_scores"].(map[string]any); ok {
		for title, v := range obj {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			scores[title] = model.SectionScore{
				Score:    clampScore(number(entry["score"])),
				Feedback: str(entry["feedback"]),
			}
		}
	}
	d.SectionScores = model.NewJSON(scores)

	requirements := []string{}
	for _, item := range array(raw["requirements_found"]) {
		if s, ok := item.(string); ok && s != "" {
			requirements = append(requirements, s)
		}
	}
	d.RequirementsFound = model.NewJSON(requirements)

	return d
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(0, math.Min(100, math.Round(v))))
}

func clampPriority(v float64) int {
	p := int(math.Round(v))
	switch {
	case p < 1:
		return 1
	case p > 3:
		return 3
	}
	return p
}

func normalizeLevel(level string) string {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case model.RiskHigh, model.RiskMedium, model.RiskLow:
		return l
	default:
		return model.RiskMedium
	}
}

func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func array(v any) []any {
	a, _ := v.([]any)
	return a
}
