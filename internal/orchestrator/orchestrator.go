// Package orchestrator runs the per-turn pipeline: classify intent with the
// model, execute proposed tool calls through the worker connection, then ask
// the model to synthesize the reply from the tool results.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolbridge/toolbridge/internal/llm"
	"github.com/toolbridge/toolbridge/internal/mcp"
	"github.com/toolbridge/toolbridge/internal/store"
)

// ToolBroker is the slice of the connection manager the orchestrator needs.
type ToolBroker interface {
	IsReady() bool
	ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, error)
}

// MCPAction records one attempted tool call within a turn.
type MCPAction struct {
	Type      string                 `json:"type"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Result    string                 `json:"result,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// TurnResult is what a completed turn returns to the HTTP layer.
type TurnResult struct {
	Message        store.Message `json:"message"`
	ConversationID string        `json:"conversation_id"`
	Actions        []MCPAction   `json:"mcp_actions"`
}

// Stats aggregates turn counters. Response times are averaged over a bounded
// sample window.
type Stats struct {
	Turns             int64   `json:"turns"`
	ToolCalls         int64   `json:"tool_calls"`
	FailedToolCalls   int64   `json:"failed_tool_calls"`
	ModelFailures     int64   `json:"model_failures"`
	AvgResponseMillis float64 `json:"avg_response_ms"`
}

// Config bounds a turn. Zero values fall back to defaults.
type Config struct {
	ToolCallTimeout     time.Duration
	ModelCallTimeout    time.Duration
	MaxCallsPerTurn     int
	MaxToolResultBytes  int
	MaxToolContextBytes int
}

func (c *Config) setDefaults() {
	if c.ToolCallTimeout <= 0 {
		c.ToolCallTimeout = 30 * time.Second
	}
	if c.ModelCallTimeout <= 0 {
		c.ModelCallTimeout = 60 * time.Second
	}
	if c.MaxCallsPerTurn <= 0 {
		c.MaxCallsPerTurn = 5
	}
	if c.MaxToolResultBytes <= 0 {
		c.MaxToolResultBytes = 4096
	}
	if c.MaxToolContextBytes <= 0 {
		c.MaxToolContextBytes = 16384
	}
}

const errorReply = "I'm sorry, I ran into a problem while generating a response. Please try again."

// Orchestrator is stateless between turns apart from its statistics counters.
type Orchestrator struct {
	provider llm.Provider
	broker   ToolBroker
	store    *store.Store
	cfg      Config

	turns           atomic.Int64
	toolCalls       atomic.Int64
	failedToolCalls atomic.Int64
	modelFailures   atomic.Int64

	sampleMu sync.Mutex
	samples  []time.Duration
}

const maxSamples = 256

// New creates an orchestrator over the given model provider, tool broker and
// conversation store.
func New(provider llm.Provider, broker ToolBroker, st *store.Store, cfg Config) *Orchestrator {
	cfg.setDefaults()
	return &Orchestrator{provider: provider, broker: broker, store: st, cfg: cfg}
}

// ProcessTurn runs one full turn. Tool and model failures degrade into the
// returned message; the only error returned is for an empty utterance.
func (o *Orchestrator) ProcessTurn(ctx context.Context, utterance, conversationID string) (*TurnResult, error) {
	if strings.TrimSpace(utterance) == "" {
		return nil, fmt.Errorf("empty utterance")
	}

	started := time.Now()
	o.turns.Add(1)

	_, conversationID = o.store.Append(conversationID, store.Message{
		Role:    store.RoleUser,
		Content: utterance,
	})

	catalog := o.catalog(ctx)
	o.store.SetCapabilitySnapshot(conversationID, toolNames(catalog))
	decision := o.classify(ctx, utterance, catalog)
	actions := o.executeCalls(ctx, decision, catalog)
	reply, failed := o.synthesize(ctx, utterance, catalog, actions)

	msg := store.Message{Role: store.RoleAssistant, Content: reply}
	metadata := make(map[string]interface{})
	if used := executedTools(actions); len(used) > 0 {
		metadata["toolUsed"] = used
	}
	if failed {
		metadata["isError"] = true
	}
	if len(metadata) > 0 {
		msg.Metadata = metadata
	}
	msg, conversationID = o.store.Append(conversationID, msg)

	o.recordSample(time.Since(started))
	log.Info().
		Str("conversation_id", conversationID).
		Str("category", decision.Category).
		Int("tool_calls", len(actions)).
		Dur("elapsed", time.Since(started)).
		Msg("turn completed")

	return &TurnResult{Message: msg, ConversationID: conversationID, Actions: actions}, nil
}

// catalog fetches the current tool catalog, tolerating a disconnected worker.
func (o *Orchestrator) catalog(ctx context.Context) []mcp.ToolDescriptor {
	if !o.broker.IsReady() {
		return nil
	}
	tools, err := o.broker.ListTools(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("tool catalog unavailable for this turn")
		return nil
	}
	return tools
}

// executeCalls runs the proposed calls strictly in order, capped per turn.
// A failed call is recorded and does not stop later calls.
func (o *Orchestrator) executeCalls(ctx context.Context, decision Decision, catalog []mcp.ToolDescriptor) []MCPAction {
	if !decision.NeedsTools || len(decision.ProposedCalls) == 0 || len(catalog) == 0 {
		return nil
	}

	calls := decision.ProposedCalls
	if len(calls) > o.cfg.MaxCallsPerTurn {
		log.Warn().Int("proposed", len(calls)).Int("cap", o.cfg.MaxCallsPerTurn).Msg("tool call cap applied")
		calls = calls[:o.cfg.MaxCallsPerTurn]
	}

	actions := make([]MCPAction, 0, len(calls))
	for _, call := range calls {
		action := MCPAction{Type: "tool_call", Name: call.Name, Arguments: call.Arguments}
		o.toolCalls.Add(1)

		callCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolCallTimeout)
		res, err := o.broker.CallTool(callCtx, call.Name, call.Arguments)
		cancel()

		switch {
		case err != nil:
			action.Error = err.Error()
			o.failedToolCalls.Add(1)
			log.Warn().Err(err).Str("tool", call.Name).Msg("tool call failed")
		case res.IsError:
			action.Error = truncate(res.Text(), o.cfg.MaxToolResultBytes)
			o.failedToolCalls.Add(1)
		default:
			action.Result = truncate(res.Text(), o.cfg.MaxToolResultBytes)
		}
		actions = append(actions, action)
	}
	return actions
}

// synthesize asks the model for the final reply. On failure it returns the
// canned error reply and true.
func (o *Orchestrator) synthesize(ctx context.Context, utterance string, catalog []mcp.ToolDescriptor, actions []MCPAction) (string, bool) {
	system := o.synthesisInstruction(catalog, actions)

	mctx, cancel := context.WithTimeout(ctx, o.cfg.ModelCallTimeout)
	defer cancel()

	reply, err := o.provider.Complete(mctx, llm.Request{System: system, Prompt: utterance})
	if err != nil {
		o.modelFailures.Add(1)
		log.Error().Err(err).Msg("response synthesis failed")
		return errorReply, true
	}
	return reply, false
}

func (o *Orchestrator) synthesisInstruction(catalog []mcp.ToolDescriptor, actions []MCPAction) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant.")

	if len(catalog) > 0 {
		b.WriteString(" You have access to these tools: ")
		names := make([]string, len(catalog))
		for i, t := range catalog {
			names[i] = t.Name
		}
		b.WriteString(strings.Join(names, ", "))
		b.WriteString(".")
	}

	if len(actions) > 0 {
		b.WriteString("\n\nTool results for this request:\n")
		budget := o.cfg.MaxToolContextBytes
		for _, a := range actions {
			var line string
			if a.Error != "" {
				line = fmt.Sprintf("- %s: error: %s\n", a.Name, a.Error)
			} else {
				line = fmt.Sprintf("- %s: %s\n", a.Name, a.Result)
			}
			if len(line) > budget {
				line = truncate(line, budget)
			}
			budget -= len(line)
			b.WriteString(line)
			if budget <= 0 {
				break
			}
		}
		b.WriteString("\nAnswer the user's request using these results. Mention failures honestly.")
	}
	return b.String()
}

func (o *Orchestrator) recordSample(d time.Duration) {
	o.sampleMu.Lock()
	defer o.sampleMu.Unlock()
	if len(o.samples) >= maxSamples {
		copy(o.samples, o.samples[1:])
		o.samples = o.samples[:maxSamples-1]
	}
	o.samples = append(o.samples, d)
}

// Stats returns a snapshot of the turn counters.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Turns:           o.turns.Load(),
		ToolCalls:       o.toolCalls.Load(),
		FailedToolCalls: o.failedToolCalls.Load(),
		ModelFailures:   o.modelFailures.Load(),
	}
	o.sampleMu.Lock()
	defer o.sampleMu.Unlock()
	if len(o.samples) > 0 {
		var total time.Duration
		for _, d := range o.samples {
			total += d
		}
		s.AvgResponseMillis = float64(total.Milliseconds()) / float64(len(o.samples))
	}
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... [truncated]"
}

func toolNames(catalog []mcp.ToolDescriptor) []string {
	if len(catalog) == 0 {
		return nil
	}
	names := make([]string, len(catalog))
	for i, t := range catalog {
		names[i] = t.Name
	}
	return names
}

// executedTools returns the distinct tool names invoked this turn, in order.
func executedTools(actions []MCPAction) []string {
	var names []string
	seen := make(map[string]bool)
	for _, a := range actions {
		if !seen[a.Name] {
			seen[a.Name] = true
			names = append(names, a.Name)
		}
	}
	return names
}
