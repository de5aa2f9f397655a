package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/toolbridge/toolbridge/internal/llm"
	"github.com/toolbridge/toolbridge/internal/mcp"
)

// ProposedCall is a tool invocation the model asked for.
type ProposedCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Decision is the classification result for a turn.
type Decision struct {
	NeedsTools    bool           `json:"needsTools"`
	ProposedCalls []ProposedCall `json:"proposedCalls"`
	Category      string         `json:"category"`
}

func defaultDecision() Decision {
	return Decision{NeedsTools: false, Category: "general"}
}

// classify asks the model whether the utterance needs tools. Any failure,
// parse or transport, degrades to the no-tools default.
func (o *Orchestrator) classify(ctx context.Context, utterance string, catalog []mcp.ToolDescriptor) Decision {
	if len(catalog) == 0 {
		return defaultDecision()
	}

	mctx, cancel := context.WithTimeout(ctx, o.cfg.ModelCallTimeout)
	defer cancel()

	raw, err := o.provider.Complete(mctx, llm.Request{
		System: classifyInstruction(catalog),
		Prompt: utterance,
	})
	if err != nil {
		log.Warn().Err(err).Msg("intent classification failed, assuming no tools")
		return defaultDecision()
	}

	decision, ok := parseDecision(raw)
	if !ok {
		log.Warn().Str("raw", truncate(raw, 200)).Msg("unparseable classification, assuming no tools")
		return defaultDecision()
	}
	return decision
}

func classifyInstruction(catalog []mcp.ToolDescriptor) string {
	var b strings.Builder
	b.WriteString("Decide whether the user's message requires tool calls. Available tools:\n")
	for _, t := range catalog {
		schema, _ := json.Marshal(t.InputSchema)
		fmt.Fprintf(&b, "- %s: %s (input schema: %s)\n", t.Name, t.Description, schema)
	}
	b.WriteString("\nRespond with ONLY a JSON object, no prose: ")
	b.WriteString(`{"needsTools": bool, "proposedCalls": [{"name": string, "arguments": object}], "category": string}`)
	return b.String()
}

// parseDecision tries a strict parse first, then falls back to extracting the
// first balanced JSON object embedded in surrounding text.
func parseDecision(raw string) (Decision, bool) {
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err == nil {
		return d, true
	}
	fragment, ok := extractJSONObject(raw)
	if !ok {
		return Decision{}, false
	}
	if err := json.Unmarshal([]byte(fragment), &d); err != nil {
		return Decision{}, false
	}
	return d, true
}

// extractJSONObject returns the first balanced {...} span in s, skipping
// braces inside string literals.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
