// Package tools implements the operations the tool worker exposes to the
// agent: arithmetic, weather lookup, note storage, sandboxed file access,
// read-only database queries and document search.
package tools

import "context"

// Tool represents a callable operation the agent can invoke
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema map[string]interface{}
	Execute     func(ctx context.Context, input map[string]interface{}) (string, error)
}
