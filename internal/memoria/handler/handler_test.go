package handler_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/memoria/handler"
	"github.com/kart-io/memoria/internal/memoria/metrics"
	"github.com/kart-io/memoria/internal/memoria/router"
	"github.com/kart-io/memoria/internal/memoria/store"
	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/internal/pkg/sse"
	"github.com/kart-io/memoria/pkg/component/database"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/infra/pool"
	"github.com/kart-io/memoria/pkg/llm"
	"github.com/kart-io/memoria/pkg/response"
	"github.com/kart-io/memoria/pkg/security/auth"
	"github.com/kart-io/memoria/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const diagnosisJSON = `{"overall_score":40,"summary":"Faltan datos.","risks":[],"suggestions":[],
"section_scores":{"Objetivos":{"score":20,"feedback":"vago"},"Presupuesto":{"score":70,"feedback":"ok"}},
"requirements_found":["TRL"]}`

type fakeModel struct {
	calls atomic.Int32
}

func (m *fakeModel) Call(_ context.Context, _ string, opts llm.GenerateOptions) (string, error) {
	m.calls.Add(1)
	if opts.JSONMode {
		return diagnosisJSON, nil
	}
	return strings.Repeat("Texto mejorado del apartado. ", 10), nil
}

func (m *fakeModel) Model() string { return "fake-model" }

type tokens map[string]string

func (t tokens) Verify(_ context.Context, token string) (*auth.Claims, error) {
	if sub, ok := t[token]; ok {
		return &auth.Claims{Subject: sub}, nil
	}
	return nil, errors.ErrInvalidToken
}

type env struct {
	server  *httptest.Server
	factory store.Factory
	project *model.Project
	locker  *biz.LocalRunLocker
	metrics *metrics.Metrics
}

func newEnv(t *testing.T, m biz.Model) *env {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	f := store.NewFactory(db)
	require.NoError(t, f.AutoMigrate())

	ctx := context.Background()
	p := &model.Project{OwnerID: "alice", Title: "Plataforma IoT"}
	require.NoError(t, f.Projects().Create(ctx, p))
	for i, title := range []string{"Objetivos", "Presupuesto"} {
		require.NoError(t, f.Sections().Create(ctx, &model.Section{
			ProjectID: p.ID, Title: title, Content: "Contenido inicial de " + title, SortOrder: i,
		}))
	}

	met := metrics.New()
	svc := biz.NewService(f, m,
		biz.WithMetrics(met),
		biz.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
	)
	runs, err := pool.NewPool("runs", pool.RunPoolConfig(4))
	require.NoError(t, err)

	locker := biz.NewLocalRunLocker()
	h := handler.NewHandler(svc, locker, runs, met)
	h.AddHealthCheck("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})

	srv := httptest.NewServer(router.New(h, tokens{"tok-alice": "alice", "tok-bob": "bob"}))
	t.Cleanup(func() {
		srv.Close()
		_ = runs.Release(time.Second)
		_ = f.Close()
	})
	return &env{server: srv, factory: f, project: p, locker: locker, metrics: met}
}

func (e *env) do(t *testing.T, method, path, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &v), string(b))
	return v
}

func TestDiagnostics(t *testing.T) {
	e := newEnv(t, &fakeModel{})
	path := "/api/v1/projects/" + e.project.ID + "/diagnostics"

	resp := e.do(t, http.MethodGet, path, "tok-alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	empty := decode[handler.DiagnosticResponse](t, resp)
	assert.Nil(t, empty.Diagnostic)

	resp = e.do(t, http.MethodPost, path, "tok-alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decode[handler.DiagnosticResponse](t, resp)
	require.NotNil(t, created.Diagnostic)
	assert.Equal(t, 40, created.Diagnostic.OverallScore)
	assert.Equal(t, "fake-model", created.Diagnostic.ModelUsed)

	resp = e.do(t, http.MethodGet, path, "tok-alice")
	latest := decode[handler.DiagnosticResponse](t, resp)
	require.NotNil(t, latest.Diagnostic)
	assert.Equal(t, created.Diagnostic.ID, latest.Diagnostic.ID)
}

func TestDiagnosticsErrors(t *testing.T) {
	e := newEnv(t, &fakeModel{})
	path := "/api/v1/projects/" + e.project.ID + "/diagnostics"

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   int
	}{
		{"缺少令牌", http.MethodGet, path, "", http.StatusUnauthorized, errors.ErrUnauthorized.Code},
		{"他人项目", http.MethodPost, path, "tok-bob", http.StatusNotFound, errors.ErrProjectNotFound.Code},
		{"项目不存在", http.MethodGet, "/api/v1/projects/nope/diagnostics", "tok-alice", http.StatusNotFound, errors.ErrProjectNotFound.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.do(t, tt.method, tt.path, tt.token)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[response.ErrorBody](t, resp)
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestDiagnoseWithoutCredential(t *testing.T) {
	e := newEnv(t, nil)
	resp := e.do(t, http.MethodPost, "/api/v1/projects/"+e.project.ID+"/diagnostics", "tok-alice")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := decode[response.ErrorBody](t, resp)
	assert.Equal(t, errors.ErrMissingCredential.Code, body.Code)
}

func readEvents(t *testing.T, body io.Reader) []biz.Event {
	t.Helper()
	var events []biz.Event
	r := sse.NewReader(body)
	for {
		data, err := r.Next()
		if err == io.EOF {
			return events
		}
		require.NoError(t, err)
		var ev biz.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		events = append(events, ev)
	}
}

func TestAutoImproveStream(t *testing.T) {
	m := &fakeModel{}
	e := newEnv(t, m)
	base := "/api/v1/projects/" + e.project.ID

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, base+"/diagnostics", "tok-alice").StatusCode)

	resp := e.do(t, http.MethodPost, base+"/auto-improve", "tok-alice")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	events := readEvents(t, resp.Body)
	require.NotEmpty(t, events)

	first := events[0]
	require.Equal(t, biz.EventStart, first.Type)
	assert.Equal(t, 2, first.Start.Total)
	assert.Equal(t, "Objetivos", first.Start.Sections[0].Title)

	last := events[len(events)-1]
	require.Equal(t, biz.EventComplete, last.Type)
	assert.Equal(t, 2, last.Complete.Improved)
	assert.Equal(t, 0, last.Complete.Errors)
	assert.Equal(t, 40, last.Complete.OldScore)
	require.NotNil(t, last.Complete.NewScore)
	assert.Contains(t, last.Complete.Summary, "Improved 2 of 2 sections")

	var rediagnosing int
	for _, ev := range events {
		if ev.Type == biz.EventRediagnosing {
			rediagnosing++
		}
	}
	assert.Equal(t, 1, rediagnosing)

	// 运行结束后锁已释放。
	release, err := e.locker.Acquire(context.Background(), e.project.ID)
	require.NoError(t, err)
	release()

	list, err := e.factory.Sections().List(context.Background(), store.Unscoped, e.project.ID)
	require.NoError(t, err)
	for _, s := range list {
		assert.True(t, s.IsCompleted)
		assert.Contains(t, s.Content, "Texto mejorado")
	}
}

func TestAutoImprovePreconditions(t *testing.T) {
	e := newEnv(t, &fakeModel{})
	path := "/api/v1/projects/" + e.project.ID + "/auto-improve"

	resp := e.do(t, http.MethodPost, path, "tok-alice")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrNoDiagnostic.Code, decode[response.ErrorBody](t, resp).Code)

	require.NoError(t, e.factory.Diagnostics().Create(context.Background(), &model.Diagnostic{
		ProjectID:     e.project.ID,
		OverallScore:  50,
		SectionScores: model.NewJSON(map[string]model.SectionScore{}),
		GeneratedAt:   time.Now(),
	}))

	release, err := e.locker.Acquire(context.Background(), e.project.ID)
	require.NoError(t, err)
	resp = e.do(t, http.MethodPost, path, "tok-alice")
	release()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, errors.ErrRunInProgress.Code, decode[response.ErrorBody](t, resp).Code)
	assert.EqualValues(t, 1, e.metrics.Stats()["runs"].(map[string]any)["rejected"])
}

func TestSystemEndpoints(t *testing.T) {
	e := newEnv(t, &fakeModel{})

	resp := e.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health := decode[map[string]any](t, resp)
	assert.Equal(t, "UP", health["status"])

	resp = e.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), "memoria_")

	resp = e.do(t, http.MethodGet, "/api/v1/stats", "tok-alice")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decode[map[string]any](t, resp)
	assert.Contains(t, stats, "runs")
	assert.Contains(t, stats, "pool")

	resp = e.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
