package handlers

import (
	"net/http"

	"busline/internal/clock"
	"busline/internal/http/middleware"
	"busline/internal/services"
	"busline/internal/utils"

	"github.com/gin-gonic/gin"
)

// ReconcileHandler exposes the sweep for operators. The same sweep also runs
// on a timer; running both is harmless, the sweep is idempotent.
type ReconcileHandler struct {
	Service services.ReconcileService
	Clock   clock.Clock
}

// POST /api/admin/reconcile
func (h ReconcileHandler) Run(c *gin.Context) {
	utils.LogEvent(middleware.GetRequestID(c), "reconcile", "manual", "sweep requested")
	report := h.Service.RunSweep(c.Request.Context(), h.Clock.Now())
	c.JSON(http.StatusOK, gin.H{"report": report})
}
