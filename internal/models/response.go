package models

import (
	"github.com/toolbridge/toolbridge/internal/orchestrator"
	"github.com/toolbridge/toolbridge/internal/store"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ChatResponse is returned by POST /api/v1/chat
type ChatResponse struct {
	Status         string                   `json:"status"`
	Message        store.Message            `json:"message"`
	ConversationID string                   `json:"conversation_id"`
	MCPActions     []orchestrator.MCPAction `json:"mcp_actions"`
}

// ConversationListResponse is returned by GET /api/v1/conversations and by
// the search endpoint
type ConversationListResponse struct {
	Status        string          `json:"status"`
	Conversations []store.Summary `json:"conversations"`
	Count         int             `json:"count"`
}

// ConversationResponse is returned by GET /api/v1/conversations/{id}
type ConversationResponse struct {
	Status       string             `json:"status"`
	Conversation store.Conversation `json:"conversation"`
}

// StatsResponse is returned by GET /api/v1/stats
type StatsResponse struct {
	Status        string             `json:"status"`
	Store         store.Stats        `json:"store"`
	Turns         orchestrator.Stats `json:"turns"`
	WorkerState   string             `json:"worker_state"`
	WorkerName    string             `json:"worker_name,omitempty"`
	WorkerVersion string             `json:"worker_version,omitempty"`
}

// CapabilitiesResponse is returned by GET /api/v1/capabilities
type CapabilitiesResponse struct {
	Status    string      `json:"status"`
	Tools     interface{} `json:"tools"`
	Resources interface{} `json:"resources"`
	Prompts   interface{} `json:"prompts"`
}
