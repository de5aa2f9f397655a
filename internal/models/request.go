package models

import "strings"

// ChatRequest for POST /api/v1/chat
type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Validate returns an error message for bad input, or empty string if OK
func (r *ChatRequest) Validate() string {
	if strings.TrimSpace(r.Message) == "" {
		return "message is required"
	}
	return ""
}
