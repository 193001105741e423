// Package handler 提供 memoria 的 HTTP 处理器。
package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/memoria/internal/memoria/biz"
	"github.com/kart-io/memoria/internal/memoria/metrics"
	"github.com/kart-io/memoria/internal/memoria/store"
	"github.com/kart-io/memoria/pkg/infra/pool"
	"github.com/kart-io/memoria/pkg/security/auth"
)

// HealthCheck 返回依赖组件的健康状态。
type HealthCheck func(ctx context.Context) error

// Handler 处理诊断与修复请求。
type Handler struct {
	svc     *biz.Service
	locker  biz.RunLocker
	runs    *pool.Pool
	metrics *metrics.Metrics
	checks  map[string]HealthCheck
}

// NewHandler creates a Handler.
func NewHandler(svc *biz.Service, locker biz.RunLocker, runs *pool.Pool, m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.Global()
	}
	return &Handler{
		svc:     svc,
		locker:  locker,
		runs:    runs,
		metrics: m,
		checks:  map[string]HealthCheck{},
	}
}

// AddHealthCheck 注册 /healthz 使用的检查。
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// owner 返回请求者身份；关闭鉴权时读取不按所有者过滤。
func owner(c *gin.Context) string {
	sub := auth.SubjectFromContext(c.Request.Context())
	if sub == "" || sub == auth.Anonymous {
		return store.Unscoped
	}
	return sub
}
