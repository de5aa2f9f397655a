package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toolbridge/toolbridge/internal/mcp"
	"github.com/toolbridge/toolbridge/internal/models"
	"github.com/toolbridge/toolbridge/internal/orchestrator"
	"github.com/toolbridge/toolbridge/internal/store"
)

// StatsHandler handles GET /api/v1/stats and GET /api/v1/capabilities
type StatsHandler struct {
	store   *store.Store
	orch    *orchestrator.Orchestrator
	manager *mcp.Manager
}

func NewStatsHandler(st *store.Store, orch *orchestrator.Orchestrator, manager *mcp.Manager) *StatsHandler {
	return &StatsHandler{store: st, orch: orch, manager: manager}
}

// Stats handles GET /api/v1/stats
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	info := h.manager.Server()
	models.WriteJSON(w, http.StatusOK, models.StatsResponse{
		Status:        "success",
		Store:         h.store.Stats(),
		Turns:         h.orch.Stats(),
		WorkerState:   h.manager.State().String(),
		WorkerName:    info.Name,
		WorkerVersion: info.Version,
	})
}

// Capabilities handles GET /api/v1/capabilities: the worker's advertised
// tools, resources and prompts.
func (h *StatsHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	tools, err := h.manager.ListTools(r.Context())
	if err != nil {
		models.WriteError(w, models.StatusForError(err), err.Error())
		return
	}
	resources, err := h.manager.ListResources(r.Context())
	if err != nil {
		models.WriteError(w, models.StatusForError(err), err.Error())
		return
	}
	prompts, err := h.manager.ListPrompts(r.Context())
	if err != nil {
		models.WriteError(w, models.StatusForError(err), err.Error())
		return
	}

	models.WriteJSON(w, http.StatusOK, models.CapabilitiesResponse{
		Status:    "success",
		Tools:     tools,
		Resources: resources,
		Prompts:   prompts,
	})
}

// ReadResource handles GET /api/v1/resources/read?uri=...
func (h *StatsHandler) ReadResource(w http.ResponseWriter, r *http.Request) {
	uri := r.URL.Query().Get("uri")
	if uri == "" {
		models.WriteError(w, http.StatusBadRequest, "query parameter uri is required")
		return
	}
	result, err := h.manager.ReadResource(r.Context(), uri)
	if err != nil {
		models.WriteError(w, models.StatusForError(err), err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "success",
		"resource": result,
	})
}

// GetPrompt handles GET /api/v1/prompts/{name}. Remaining query parameters
// are passed through as prompt arguments.
func (h *StatsHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	args := make(map[string]string)
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			args[k] = v[0]
		}
	}
	result, err := h.manager.GetPrompt(r.Context(), name, args)
	if err != nil {
		models.WriteError(w, models.StatusForError(err), err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"prompt": result,
	})
}
