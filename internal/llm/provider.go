// Package llm abstracts the chat model behind a small completion interface
// so the orchestrator does not care which vendor serves a turn.
package llm

import "context"

// Request is a single completion request. The orchestrator issues two per
// turn: intent classification and response synthesis.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Provider produces a text completion for a request.
type Provider interface {
	Complete(ctx context.Context, req Request) (string, error)
	Name() string
}

// ModelCallError wraps a failed provider call.
type ModelCallError struct {
	Provider string
	Cause    error
}

func (e *ModelCallError) Error() string {
	if e.Cause != nil {
		return "model call failed (" + e.Provider + "): " + e.Cause.Error()
	}
	return "model call failed (" + e.Provider + ")"
}

func (e *ModelCallError) Unwrap() error { return e.Cause }
