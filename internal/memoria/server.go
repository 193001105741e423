// Package memoria 组装诊断与自动修复服务。
package memoria

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	"github.com/kart-io/version"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/memoria/handler"
	"github.com/kart-io/memoria/internal/memoria/metrics"
	"github.com/kart-io/memoria/internal/memoria/router"
	"github.com/kart-io/memoria/internal/memoria/store"
	"github.com/kart-io/memoria/pkg/component/database"
	"github.com/kart-io/memoria/pkg/component/redis"
	"github.com/kart-io/memoria/pkg/infra/pool"
	"github.com/kart-io/memoria/pkg/infra/tracing"
	"github.com/kart-io/memoria/pkg/llm"
	"github.com/kart-io/memoria/pkg/llm/resilience"
	dbopts "github.com/kart-io/memoria/pkg/options/database"
	jwtopts "github.com/kart-io/memoria/pkg/options/jwt"
	llmopts "github.com/kart-io/memoria/pkg/options/llm"
	logopts "github.com/kart-io/memoria/pkg/options/logger"
	memoriaopts "github.com/kart-io/memoria/pkg/options/memoria"
	redisopts "github.com/kart-io/memoria/pkg/options/redis"
	httpopts "github.com/kart-io/memoria/pkg/options/server/http"
	tracingopts "github.com/kart-io/memoria/pkg/options/tracing"
	"github.com/kart-io/memoria/pkg/security/auth"
	"github.com/kart-io/memoria/pkg/security/auth/jwt"
)

// Name is the name of the application.
const Name = "memoria"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions     *httpopts.Options
	LogOptions      *logopts.Options
	DatabaseOptions *dbopts.Options
	RedisOptions    *redisopts.Options
	LLMOptions      *llmopts.ProviderOptions
	JWTOptions      *jwtopts.Options
	TracingOptions  *tracingopts.Options
	MemoriaOptions  *memoriaopts.Options
}

// Server represents the memoria server.
type Server struct {
	http            *http.Server
	shutdownTimeout time.Duration
	closers         []func(context.Context) error
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	s := &Server{shutdownTimeout: cfg.HTTPOptions.ShutdownTimeout}
	ok := false
	defer func() {
		if !ok {
			s.close(context.Background())
		}
	}()

	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.name", Name)
	cfg.LogOptions.AddInitialField("service.version", version.Get().GitVersion)
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting memoria service...")

	// 2. 链路追踪，未启用时安装空 provider
	cfg.TracingOptions.ServiceVersion = version.Get().GitVersion
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	s.closers = append(s.closers, tp.Shutdown)

	// 3. 数据库
	db, err := database.Open(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	factory := store.NewFactory(db)
	s.closers = append(s.closers, func(context.Context) error { return factory.Close() })
	if cfg.DatabaseOptions.AutoMigrate {
		if err := factory.AutoMigrate(); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	logger.Infow("Database initialized", "driver", cfg.DatabaseOptions.Driver)

	// 4. 项目运行锁：redis 不可用时退回进程内锁
	var (
		locker      biz.RunLocker = biz.NewLocalRunLocker()
		redisClient *goredis.Client
	)
	if cfg.RedisOptions.Enabled {
		redisClient, err = redis.NewClient(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("failed to connect to redis, run lock is process local", "error", err.Error())
		} else {
			locker = biz.NewRedisRunLocker(redisClient, cfg.MemoriaOptions.LockTTL)
			s.closers = append(s.closers, func(context.Context) error { return redisClient.Close() })
			logger.Infow("Redis run lock initialized", "host", cfg.RedisOptions.Host, "port", cfg.RedisOptions.Port)
		}
	}

	// 5. 模型客户端
	m := metrics.Global()
	model, err := newModel(cfg.LLMOptions, m)
	if err != nil {
		return nil, err
	}

	// 6. Biz 层
	opts := []biz.Option{
		biz.WithMetrics(m),
		biz.WithConfig(bizConfig(cfg.MemoriaOptions)),
	}
	if cfg.MemoriaOptions.ReferenceDir != "" {
		loader := biz.NewReferenceLoader(factory, biz.NewLocalObjectStore(cfg.MemoriaOptions.ReferenceDir),
			biz.PlainTextExtractor{}, biz.NewMarkdownExtractor())
		opts = append(opts, biz.WithReferences(loader))
	}
	var bizModel biz.Model
	if model != nil {
		bizModel = model
	}
	svc := biz.NewService(factory, bizModel, opts...)

	// 7. 修复任务池
	runs, err := pool.NewPool("memoria-runs", pool.RunPoolConfig(cfg.MemoriaOptions.RunPoolSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create run pool: %w", err)
	}
	s.closers = append(s.closers, func(context.Context) error { return runs.Release(cfg.HTTPOptions.ShutdownTimeout) })

	// 8. 鉴权
	var verifier auth.Verifier
	if !cfg.JWTOptions.Disabled {
		j, err := jwt.New(cfg.JWTOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize jwt: %w", err)
		}
		verifier = j
	} else {
		logger.Warn("Authentication is disabled, all requests are anonymous")
	}

	// 9. Handler 与路由
	h := handler.NewHandler(svc, locker, runs, m)
	h.AddHealthCheck("database", pingDB(db))
	if redisClient != nil {
		h.AddHealthCheck("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	gin.SetMode(cfg.HTTPOptions.Mode)
	engine := router.New(h, verifier)

	s.http = &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Infow("memoria service is ready", "addr", cfg.HTTPOptions.Addr)
	ok = true
	return s, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down memoria service...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("http shutdown failed", "error", err.Error())
	}
	s.close(shutdownCtx)
	_ = logger.Flush()
	return serveErr
}

// close 逆序释放资源。
func (s *Server) close(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			logger.Warnw("failed to release resource", "error", err.Error())
		}
	}
	s.closers = nil
}

// newModel 创建带重试、限流和熔断的模型客户端。缺少凭证时返回 nil，
// 诊断请求随后以 ErrMissingCredential 失败。
func newModel(opts *llmopts.ProviderOptions, m *metrics.Metrics) (*resilience.Client, error) {
	provider, err := llm.NewProvider(opts.Provider, opts.ToConfigMap())
	if errors.Is(err, llm.ErrMissingAPIKey) {
		logger.Warnw("model credential is not configured, diagnosis is unavailable", "provider", opts.Provider)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model provider: %w", err)
	}

	rc := resilience.Config{
		Schedule: opts.RetrySchedule,
		Limiter:  resilience.NewLimiter(opts.RequestsPerMinute, opts.Burst),
		OnRetry: func(int, time.Duration, error) {
			m.RecordModelRetry()
		},
	}
	if opts.BreakerEnabled {
		rc.Breaker = resilience.NewCircuitBreaker(&resilience.CircuitBreakerConfig{
			MaxFailures:      opts.BreakerMaxFailures,
			Timeout:          opts.BreakerTimeout,
			HalfOpenMaxCalls: 1,
		})
	}

	client := resilience.NewClient(provider, rc)
	logger.Infow("Model client initialized",
		"provider", opts.Provider,
		"model", client.Model(),
		"requests_per_minute", opts.RequestsPerMinute,
		"breaker", opts.BreakerEnabled,
	)
	return client, nil
}

func bizConfig(o *memoriaopts.Options) *biz.Config {
	return &biz.Config{
		SectionDelay:         o.SectionDelay,
		SettleDelay:          o.SettleDelay,
		SectionContentBudget: o.SectionContentBudget,
		ReferenceBudget:      o.ReferenceBudget,
		ContextSectionBudget: o.ContextSectionBudget,
		MinRewriteLength:     o.MinRewriteLength,
		DiagnosisTemperature: o.DiagnosisTemperature,
		DiagnosisMaxTokens:   o.DiagnosisMaxTokens,
		RepairTemperature:    o.RepairTemperature,
		RepairMaxTokens:      o.RepairMaxTokens,
	}
}

func pingDB(db *gorm.DB) handler.HealthCheck {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
