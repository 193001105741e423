package biz

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/internal/memoria/metrics"
	"github.com/kart-io/memoria/internal/memoria/store"
	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/component/database"
	"github.com/kart-io/memoria/pkg/llm"
)

// fakeModel 记录提示并按 fn 返回结果。
type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	opts    []llm.GenerateOptions
	fn      func(prompt string, opts llm.GenerateOptions) (string, error)
}

func (m *fakeModel) Call(_ context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	m.mu.Unlock()
	return m.fn(prompt, opts)
}

func (m *fakeModel) Model() string { return "fake-model" }

func (m *fakeModel) rewriteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, o := range m.opts {
		if !o.JSONMode {
			n++
		}
	}
	return n
}

// sleepRecorder 记录等待时长但不真正等待。
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type fixture struct {
	factory  store.Factory
	project  *model.Project
	sections map[string]*model.Section
}

type sectionSeed struct {
	title   string
	content string
	score   int
}

func newFixture(t *testing.T, seeds ...sectionSeed) *fixture {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	f := store.NewFactory(db)
	require.NoError(t, f.AutoMigrate())
	t.Cleanup(func() { _ = f.Close() })

	ctx := context.Background()
	p := &model.Project{OwnerID: "alice", Title: "Plataforma IoT", ClientName: "Agro SL", GrantName: "PERTE Agro"}
	require.NoError(t, f.Projects().Create(ctx, p))

	fx := &fixture{factory: f, project: p, sections: map[string]*model.Section{}}
	scores := map[string]model.SectionScore{}
	for i, s := range seeds {
		sec := &model.Section{ProjectID: p.ID, Title: s.title, Content: s.content, SortOrder: i}
		require.NoError(t, f.Sections().Create(ctx, sec))
		fx.sections[s.title] = sec
		scores[s.title] = model.SectionScore{Score: s.score, Feedback: "feedback " + s.title}
	}
	return fx.withDiagnostic(t, 50, scores)
}

func (fx *fixture) withDiagnostic(t *testing.T, overall int, scores map[string]model.SectionScore) *fixture {
	t.Helper()
	if scores == nil {
		return fx
	}
	require.NoError(t, fx.factory.Diagnostics().Create(context.Background(), &model.Diagnostic{
		ProjectID:         fx.project.ID,
		OverallScore:      overall,
		Summary:           "Documento incompleto.",
		Risks:             model.NewJSON([]model.Risk{}),
		Suggestions:       model.NewJSON([]model.Suggestion{}),
		SectionScores:     model.NewJSON(scores),
		RequirementsFound: model.NewJSON([]string{}),
		GeneratedAt:       time.Now().Add(-time.Hour),
	}))
	return fx
}

func (fx *fixture) service(m Model, sleep *sleepRecorder) *Service {
	opts := []Option{WithMetrics(metrics.New())}
	if sleep != nil {
		opts = append(opts, WithSleep(sleep.Sleep))
	}
	return NewService(fx.factory, m, opts...)
}

func (fx *fixture) content(t *testing.T, title string) *model.Section {
	t.Helper()
	list, err := fx.factory.Sections().List(context.Background(), store.Unscoped, fx.project.ID)
	require.NoError(t, err)
	for _, s := range list {
		if s.Title == title {
			return s
		}
	}
	t.Fatalf("section %q not found", title)
	return nil
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("palabra ", n))
}

// collect 执行运行并收集全部事件。
func collect(ctx context.Context, run *Run) []Event {
	ch := make(chan Event, 64)
	go run.Execute(ctx, ch)
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}
