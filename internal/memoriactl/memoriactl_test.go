package memoriactl

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/memoria/handler"
	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/sse"
	pkgerrors "github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/response"
	"github.com/kart-io/memoria/pkg/utils/json"
)

func init() {
	color.NoColor = true
}

func intPtr(v int) *int { return &v }

func sampleDiagnostic() *model.Diagnostic {
	return &model.Diagnostic{
		ID:           "d1",
		ProjectID:    "p1",
		OverallScore: 55,
		Summary:      "Memoria incompleta",
		Risks:        model.NewJSON([]model.Risk{{Level: model.RiskHigh, Message: "Sin presupuesto", SectionID: "Presupuesto"}}),
		Suggestions:  model.NewJSON([]model.Suggestion{{Priority: 1, Action: "Añadir cronograma"}}),
		SectionScores: model.NewJSON(map[string]model.SectionScore{
			"Objetivos":   {Score: 40, Feedback: "vago"},
			"Presupuesto": {Score: 70},
		}),
		RequirementsFound: model.NewJSON([]string{"TRL"}),
		GeneratedAt:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		ModelUsed:         "gemini-2.0-flash",
	}
}

func fullRun() []biz.Event {
	return []biz.Event{
		{Type: biz.EventStart, Start: &biz.StartData{Total: 2, Sections: []biz.SectionPlan{
			{ID: "s1", Title: "Objetivos", Score: 40, Problems: []string{"vago"}},
			{ID: "s2", Title: "Presupuesto", Score: 70},
		}}},
		{Type: biz.EventProgress, Progress: &biz.ProgressData{SectionID: "s1", Title: "Objetivos", Status: biz.StatusImproving, OldScore: intPtr(40)}},
		{Type: biz.EventProgress, Progress: &biz.ProgressData{SectionID: "s1", Title: "Objetivos", Status: biz.StatusDone, NewContent: "nuevo"}},
		{Type: biz.EventProgress, Progress: &biz.ProgressData{SectionID: "s2", Title: "Presupuesto", Status: biz.StatusImproving}},
		{Type: biz.EventProgress, Progress: &biz.ProgressData{SectionID: "s2", Title: "Presupuesto", Status: biz.StatusError, Error: "modelo caído"}},
		{Type: biz.EventRediagnosing},
		{Type: biz.EventComplete, Complete: &biz.CompleteData{Improved: 1, Errors: 1, OldScore: 55, NewScore: intPtr(68), Summary: "mejor"}},
	}
}

// newServer 模拟 memoria 服务：诊断接口返回固定记录，修复接口按 events 输出进度流。
func newServer(t *testing.T, events []biz.Event) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/projects/p1/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		b, _ := json.Marshal(handler.DiagnosticResponse{Diagnostic: sampleDiagnostic()})
		_, _ = w.Write(b)
	})
	mux.HandleFunc("/api/v1/projects/p1/auto-improve", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			b, err := json.Marshal(ev)
			require.NoError(t, err)
			require.NoError(t, sse.WriteData(w, b))
			w.(http.Flusher).Flush()
		}
	})
	mux.HandleFunc("/api/v1/projects/busy/auto-improve", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		b, _ := json.Marshal(response.ErrorBody{Code: pkgerrors.ErrRunInProgress.Code, Error: pkgerrors.ErrRunInProgress.MessageEN})
		_, _ = w.Write(b)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientImprove(t *testing.T) {
	srv := newServer(t, fullRun())
	c := NewClient(srv.URL+"/", "tok", 0)

	var got []biz.EventType
	err := c.Improve(context.Background(), "p1", func(ev biz.Event) error {
		got = append(got, ev.Type)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, biz.EventStart, got[0])
	assert.Equal(t, biz.EventComplete, got[len(got)-1])
	assert.Len(t, got, 7)
}

func TestClientImproveIncomplete(t *testing.T) {
	events := fullRun()
	srv := newServer(t, events[:3])

	err := NewClient(srv.URL, "tok", 0).Improve(context.Background(), "p1", func(biz.Event) error { return nil })
	assert.ErrorIs(t, err, ErrIncompleteStream)
}

func TestClientImproveErrorEvent(t *testing.T) {
	srv := newServer(t, []biz.Event{{Type: biz.EventError, Error: &biz.ErrorData{Message: "No hay secciones"}}})

	var seen int
	err := NewClient(srv.URL, "tok", 0).Improve(context.Background(), "p1", func(biz.Event) error {
		seen++
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No hay secciones")
	assert.Equal(t, 1, seen)
}

func TestClientImproveConflict(t *testing.T) {
	srv := newServer(t, nil)
	err := NewClient(srv.URL, "tok", 0).Improve(context.Background(), "busy", func(biz.Event) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in progress")
	assert.Contains(t, err.Error(), "HTTP 409")
}

func TestClientCallbackError(t *testing.T) {
	srv := newServer(t, fullRun())
	stop := errors.New("stop")
	err := NewClient(srv.URL, "tok", 0).Improve(context.Background(), "p1", func(biz.Event) error { return stop })
	assert.ErrorIs(t, err, stop)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDiagnoseCommandFormats(t *testing.T) {
	srv := newServer(t, nil)
	base := []string{"diagnose", "--project", "p1", "--server", srv.URL, "--token", "tok", "--no-spinner"}

	out, err := runCommand(t, append(base, "-o", "human")...)
	require.NoError(t, err)
	assert.Contains(t, out, "OVERALL SCORE: 55/100")
	assert.Contains(t, out, "[HIGH] Sin presupuesto")
	assert.Contains(t, out, "P1 Añadir cronograma")
	assert.Less(t, bytes.Index([]byte(out), []byte("Objetivos")), bytes.Index([]byte(out), []byte(" 70 Presupuesto")))

	out, err = runCommand(t, append(base, "-o", "json")...)
	require.NoError(t, err)
	assert.Contains(t, out, `"overall_score": 55`)

	out, err = runCommand(t, append(base, "-o", "yaml", "--latest")...)
	require.NoError(t, err)
	assert.Contains(t, out, "overall_score: 55")
	assert.Contains(t, out, "model_used: gemini-2.0-flash")
}

func TestImproveCommand(t *testing.T) {
	srv := newServer(t, fullRun())

	out, err := runCommand(t, "improve", "--project", "p1", "--server", srv.URL, "--token", "tok", "--no-spinner")
	require.NoError(t, err)
	assert.Contains(t, out, "Improving 2 section(s)")
	assert.Contains(t, out, "[1/2] Objetivos ... done")
	assert.Contains(t, out, "[2/2] Presupuesto ... error: modelo caído")
	assert.Contains(t, out, "Score: 55 -> 68")

	out, err = runCommand(t, "improve", "--project", "p1", "--server", srv.URL, "--token", "tok", "-o", "json")
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace([]byte(out)), []byte("\n"))
	require.Len(t, lines, 7)
	assert.JSONEq(t, `{"type":"rediagnosing"}`, string(lines[5]))
}

func TestImproveCommandIncomplete(t *testing.T) {
	srv := newServer(t, fullRun()[:2])
	_, err := runCommand(t, "improve", "--project", "p1", "--server", srv.URL, "--token", "tok", "--no-spinner")
	assert.ErrorIs(t, err, ErrIncompleteStream)
}

func TestTokenFromEnv(t *testing.T) {
	srv := newServer(t, nil)
	t.Setenv("MEMORIACTL_TOKEN", "tok")
	t.Setenv("MEMORIACTL_SERVER", srv.URL)
	out, err := runCommand(t, "diagnose", "--project", "p1", "--no-spinner")
	require.NoError(t, err)
	assert.Contains(t, out, "OVERALL SCORE")
}

func TestRenderNilDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderDiagnostic(&buf, nil, OutputHuman))
	assert.Contains(t, buf.String(), "No diagnostic yet")
	assert.Error(t, RenderDiagnostic(&buf, nil, "xml"))
}
