package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/toolbridge/toolbridge/internal/models"
	"github.com/toolbridge/toolbridge/internal/orchestrator"
	"github.com/toolbridge/toolbridge/internal/security"
)

// ChatHandler handles POST /api/v1/chat
type ChatHandler struct {
	orch      *orchestrator.Orchestrator
	validator *security.PromptValidator
	pii       *security.PIIDetector
	audit     *security.AuditLogger
}

func NewChatHandler(
	orch *orchestrator.Orchestrator,
	validator *security.PromptValidator,
	pii *security.PIIDetector,
	audit *security.AuditLogger,
) *ChatHandler {
	return &ChatHandler{orch: orch, validator: validator, pii: pii, audit: audit}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if msg := req.Validate(); msg != "" {
		models.WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if result := h.validator.Validate(req.Message); !result.Valid {
		h.audit.LogTurn(req.Message, req.ConversationID, false, 0, 0, false)
		models.WriteError(w, http.StatusBadRequest, result.Message)
		return
	}
	if h.pii != nil {
		if found, keyword := h.pii.Detect(req.Message); found {
			h.audit.LogTurn(req.Message, req.ConversationID, false, 0, 0, false)
			models.WriteError(w, http.StatusBadRequest, "message contains sensitive data: "+keyword)
			return
		}
	}

	started := time.Now()
	result, err := h.orch.ProcessTurn(r.Context(), req.Message, req.ConversationID)
	if err != nil {
		models.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	elapsed := time.Since(started).Milliseconds()
	h.audit.LogTurn(req.Message, result.ConversationID, true, len(result.Actions), elapsed, true)
	for _, a := range result.Actions {
		h.audit.LogToolCall(a.Name, result.ConversationID, elapsed, a.Error == "", a.Error)
	}

	actions := result.Actions
	if actions == nil {
		actions = []orchestrator.MCPAction{}
	}
	models.WriteJSON(w, http.StatusOK, models.ChatResponse{
		Status:         "success",
		Message:        result.Message,
		ConversationID: result.ConversationID,
		MCPActions:     actions,
	})
}
