package biz

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/matcher"
)

func diagnosticWith(scores map[string]model.SectionScore, risks []model.Risk, sugs []model.Suggestion) *model.Diagnostic {
	return &model.Diagnostic{
		SectionScores: model.NewJSON(scores),
		Risks:         model.NewJSON(risks),
		Suggestions:   model.NewJSON(sugs),
	}
}

func hasPrefix(list []string, prefix string) bool {
	for _, p := range list {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func TestBuildAnalysis(t *testing.T) {
	d := diagnosticWith(
		map[string]model.SectionScore{"PRESUPUESTO Y VIABILIDAD": {Score: 35, Feedback: "Faltan partidas"}},
		[]model.Risk{
			{Level: "high", Message: "Sin desglose de costes", SectionID: "presupuesto"},
			{Level: "low", Message: "Plan de marketing vago", SectionID: "Plan de Marketing"},
		},
		[]model.Suggestion{{Priority: 1, Action: "Añadir tabla de costes", SectionTitle: "Presupuesto"}},
	)
	sec := &model.Section{Title: "Presupuesto", Content: words(60)}

	a := BuildAnalysis(matcher.FuzzyResolver{}, sec, d)
	assert.Equal(t, 35, a.Score)
	assert.Equal(t, "Faltan partidas", a.Feedback)
	assert.Equal(t, []string{
		"FEEDBACK: Faltan partidas",
		"RISK [HIGH]: Sin desglose de costes",
		"SUGGESTION [P1]: Añadir tabla de costes",
		"NOTICE: 60 words, the section should be expanded",
	}, a.Problems)
}

func TestBuildAnalysisDefaults(t *testing.T) {
	d := diagnosticWith(map[string]model.SectionScore{}, nil, nil)

	tests := []struct {
		name      string
		content   string
		wantScore int
		wantProb  string
	}{
		{name: "empty", content: "", wantScore: 0, wantProb: "CRITICAL: section is completely empty"},
		{name: "whitespace only", content: " \n\t", wantScore: 0, wantProb: "CRITICAL"},
		{name: "short", content: words(10), wantScore: 30, wantProb: "WARNING: only 10 words, the section needs development"},
		{name: "medium", content: words(149), wantScore: 30, wantProb: "NOTICE: 149 words"},
		{name: "long", content: words(150), wantScore: 30, wantProb: "Improve overall quality."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := BuildAnalysis(matcher.FuzzyResolver{}, &model.Section{Title: "Cronograma", Content: tt.content}, d)
			assert.Equal(t, tt.wantScore, a.Score)
			assert.NotEmpty(t, a.Problems)
			assert.True(t, hasPrefix(a.Problems, tt.wantProb), "%v", a.Problems)
		})
	}
}

func TestBuildAnalysisLongHighScoreHasNoLengthWarning(t *testing.T) {
	d := diagnosticWith(map[string]model.SectionScore{"Impacto": {Score: 92}}, nil, nil)
	a := BuildAnalysis(matcher.FuzzyResolver{}, &model.Section{Title: "Impacto", Content: words(400)}, d)

	assert.Equal(t, 92, a.Score)
	assert.False(t, hasPrefix(a.Problems, "WARNING"))
	assert.False(t, hasPrefix(a.Problems, "NOTICE"))
	assert.False(t, hasPrefix(a.Problems, "CRITICAL"))
	assert.Equal(t, []string{"Improve overall quality."}, a.Problems)
}

func TestBuildAnalysisExactResolver(t *testing.T) {
	d := diagnosticWith(map[string]model.SectionScore{"presupuesto": {Score: 80}}, nil, nil)
	a := BuildAnalysis(matcher.ExactResolver{}, &model.Section{Title: "Presupuesto", Content: words(200)}, d)
	assert.Equal(t, 30, a.Score, "exact resolver must not fuzzy-match keys")
}

func TestRankSectionsStable(t *testing.T) {
	list := []SectionAnalysis{
		{Section: &model.Section{Title: "A"}, Score: 60},
		{Section: &model.Section{Title: "B"}, Score: 10},
		{Section: &model.Section{Title: "C"}, Score: 60},
		{Section: &model.Section{Title: "D"}, Score: 0},
	}
	RankSections(list)

	var got []string
	for _, a := range list {
		got = append(got, a.Section.Title)
	}
	assert.Equal(t, []string{"D", "B", "A", "C"}, got)
}
