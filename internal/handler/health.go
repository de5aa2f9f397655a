package handler

import (
	"net/http"

	"github.com/toolbridge/toolbridge/internal/mcp"
	"github.com/toolbridge/toolbridge/internal/models"
)

const version = "1.0.0"

// HealthHandler handles GET /health
type HealthHandler struct {
	manager *mcp.Manager
}

func NewHealthHandler(manager *mcp.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Health handles GET /health. The server is healthy when it is up; the
// worker connection state is reported as a check and degrades the status
// when calls would fail.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	overallStatus := "healthy"

	state := h.manager.State()
	checks["worker"] = state.String()
	if state != mcp.Ready {
		overallStatus = "degraded"
	}

	statusCode := http.StatusOK
	if overallStatus == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	models.WriteJSON(w, statusCode, models.HealthResponse{
		Status:  overallStatus,
		Version: version,
		Checks:  checks,
	})
}
