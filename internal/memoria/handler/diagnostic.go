package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/memoria/internal/model"
	"github.com/kart-io/memoria/pkg/response"
)

// DiagnosticResponse wraps a diagnostic record. Diagnostic is null when none exists.
type DiagnosticResponse struct {
	Diagnostic *model.Diagnostic `json:"diagnostic"`
}

// Diagnose runs the diagnosis stage for a project.
// POST /api/v1/projects/:id/diagnostics
func (h *Handler) Diagnose(c *gin.Context) {
	d, err := h.svc.Diagnose(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, DiagnosticResponse{Diagnostic: d})
}

// LatestDiagnostic returns the newest diagnostic of a project.
// GET /api/v1/projects/:id/diagnostics
func (h *Handler) LatestDiagnostic(c *gin.Context) {
	d, err := h.svc.Latest(c.Request.Context(), owner(c), c.Param("id"))
	if err != nil {
		response.FailWithError(c, err)
		return
	}
	response.OK(c, DiagnosticResponse{Diagnostic: d})
}
