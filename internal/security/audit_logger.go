package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogTurn records one chat turn: who asked (by conversation), whether the
// input passed validation, and how the turn went.
func (a *AuditLogger) LogTurn(
	utterance, conversationID string,
	validationPassed bool,
	toolCalls int,
	executionTimeMs int64,
	success bool,
) {
	if !a.enabled {
		return
	}
	utteranceHash := hashStr(utterance)[:16]

	log.Info().
		Str("event", "turn_audit").
		Str("utterance_hash", utteranceHash).
		Str("conversation_id", conversationID).
		Bool("validation_passed", validationPassed).
		Int("tool_calls", toolCalls).
		Int64("execution_time_ms", executionTimeMs).
		Bool("success", success).
		Msg("audit")
}

// LogToolCall records a tool invocation issued on behalf of a conversation.
func (a *AuditLogger) LogToolCall(
	tool, conversationID string,
	executionTimeMs int64,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}

	evt := log.Info().
		Str("event", "tool_audit").
		Str("tool", tool).
		Str("conversation_id", conversationID).
		Int64("execution_time_ms", executionTimeMs).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

func hashStr(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)
}
