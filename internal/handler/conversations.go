package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/toolbridge/toolbridge/internal/models"
	"github.com/toolbridge/toolbridge/internal/store"
)

// ConversationsHandler handles the /api/v1/conversations endpoints
type ConversationsHandler struct {
	store *store.Store
}

func NewConversationsHandler(st *store.Store) *ConversationsHandler {
	return &ConversationsHandler{store: st}
}

// List handles GET /api/v1/conversations
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.List()
	models.WriteJSON(w, http.StatusOK, models.ConversationListResponse{
		Status:        "success",
		Conversations: summaries,
		Count:         len(summaries),
	})
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := h.store.Get(id)
	if !ok {
		models.WriteError(w, http.StatusNotFound, "conversation not found: "+id)
		return
	}
	models.WriteJSON(w, http.StatusOK, models.ConversationResponse{
		Status:       "success",
		Conversation: c,
	})
}

// Delete handles DELETE /api/v1/conversations/{id}
func (h *ConversationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.store.Delete(id) {
		models.WriteError(w, http.StatusNotFound, "conversation not found: "+id)
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "success",
		"id":     id,
	})
}

// Search handles GET /api/v1/conversations/search?q=...
func (h *ConversationsHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		models.WriteError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	summaries := h.store.Search(q)
	models.WriteJSON(w, http.StatusOK, models.ConversationListResponse{
		Status:        "success",
		Conversations: summaries,
		Count:         len(summaries),
	})
}
