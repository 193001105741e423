package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/version"
)

// Healthz reports UP when every registered check passes.
// GET /healthz
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "UP"
	}

	state := "UP"
	if status != http.StatusOK {
		state = "DOWN"
	}
	c.JSON(status, gin.H{
		"status":  state,
		"checks":  checks,
		"version": version.Get().GitVersion,
	})
}

// Stats returns run and model counters.
// GET /api/v1/stats
func (h *Handler) Stats(c *gin.Context) {
	stats := h.metrics.Stats()
	if h.runs != nil {
		stats["pool"] = h.runs.Stats()
	}
	c.JSON(http.StatusOK, stats)
}

// Metrics exports the counters in Prometheus text format.
// GET /metrics
func (h *Handler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.metrics.Export("memoria")))
}
