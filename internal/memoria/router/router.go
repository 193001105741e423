// Package router provides memoria service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/memoria/internal/memoria/handler"
	"github.com/kart-io/memoria/pkg/errors"
	"github.com/kart-io/memoria/pkg/infra/middleware"
	"github.com/kart-io/memoria/pkg/response"
	"github.com/kart-io/memoria/pkg/security/auth"
)

var unauthenticated = []string{"/healthz", "/metrics"}

// New 创建挂好中间件与路由的 gin 引擎。verifier 为 nil 表示关闭鉴权。
func New(h *handler.Handler, verifier auth.Verifier) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Tracing(unauthenticated...),
		middleware.Logger(unauthenticated...),
	)
	r.NoRoute(func(c *gin.Context) { response.Fail(c, errors.ErrRouteNotFound) })
	Register(r, h, verifier)
	return r
}

// Register registers the memoria routes.
func Register(r gin.IRouter, h *handler.Handler, verifier auth.Verifier) {
	logger.Info("Registering memoria routes...")

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", h.Metrics)

	v1 := r.Group("/api/v1", middleware.Auth(verifier))
	{
		v1.GET("/stats", h.Stats)

		projects := v1.Group("/projects/:id")
		{
			projects.POST("/diagnostics", h.Diagnose)
			projects.GET("/diagnostics", h.LatestDiagnostic)
			projects.POST("/auto-improve", h.AutoImprove)
		}
	}

	logger.Info("HTTP routes registered")
}
