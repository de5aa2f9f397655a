// Package worker implements the tool worker process: the other end of the
// bridge protocol. It serves the tool, resource and prompt catalogs over
// stdin/stdout and executes invocations against local backends.
package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolbridge/toolbridge/internal/mcp"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// Registry holds everything the worker advertises: tools by name, resource
// backends and prompt templates.
type Registry struct {
	order []string
	tools map[string]tools.Tool

	notes   *tools.NotesStore
	sandbox *tools.FileSandbox
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tools.Tool)}
}

// Register adds a tool. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(t tools.Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// WithNotes enables note:// resources and the note prompts.
func (r *Registry) WithNotes(store *tools.NotesStore) {
	r.notes = store
}

// WithSandbox enables file:// resources.
func (r *Registry) WithSandbox(sandbox *tools.FileSandbox) {
	r.sandbox = sandbox
}

// Tools lists the registered tools in registration order.
func (r *Registry) Tools() []mcp.ToolDescriptor {
	out := make([]mcp.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, mcp.ToolDescriptor{
			Name:        t.Name,
			Title:       t.Title,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// Call executes a tool. Unknown names return false; execution failures are
// reported inside the result with IsError set, never as protocol errors.
func (r *Registry) Call(ctx context.Context, name string, arguments map[string]interface{}) (*mcp.CallToolResult, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	out, err := t.Execute(ctx, arguments)
	if err != nil {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent(err.Error())},
		}, true
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent(out)},
	}, true
}

// Resources lists the readable resources: one note://{id} entry per stored
// note plus one file://{name} entry per top-level sandbox file.
func (r *Registry) Resources(ctx context.Context) ([]mcp.ResourceDescriptor, error) {
	var out []mcp.ResourceDescriptor

	if r.notes != nil {
		notes, err := r.notes.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, n := range notes {
			out = append(out, mcp.ResourceDescriptor{
				URI:      "note://" + n.ID,
				Name:     n.Title,
				MimeType: "text/plain",
			})
		}
	}

	if r.sandbox != nil {
		entries, err := r.sandbox.ListDirectory("")
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if dir, _ := e["dir"].(bool); dir {
				continue
			}
			name, _ := e["name"].(string)
			out = append(out, mcp.ResourceDescriptor{
				URI:      "file://" + name,
				Name:     name,
				MimeType: "text/plain",
			})
		}
	}
	return out, nil
}

// ReadResource resolves a note:// or file:// URI. Unknown schemes or missing
// entities return false.
func (r *Registry) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, bool) {
	switch {
	case strings.HasPrefix(uri, "note://") && r.notes != nil:
		id := strings.TrimPrefix(uri, "note://")
		n, err := r.notes.Get(ctx, id)
		if err != nil {
			return nil, false
		}
		return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{{
			URI:      uri,
			MimeType: "text/plain",
			Text:     fmt.Sprintf("%s\n\n%s", n.Title, n.Content),
		}}}, true

	case strings.HasPrefix(uri, "file://") && r.sandbox != nil:
		path := strings.TrimPrefix(uri, "file://")
		text, err := r.sandbox.ReadFile(path)
		if err != nil {
			return nil, false
		}
		return &mcp.ReadResourceResult{Contents: []mcp.ResourceContents{{
			URI:      uri,
			MimeType: "text/plain",
			Text:     text,
		}}}, true
	}
	return nil, false
}

// Prompts lists the reusable prompt templates.
func (r *Registry) Prompts() []mcp.PromptDescriptor {
	return []mcp.PromptDescriptor{
		{
			Name:        "summarize_notes",
			Title:       "Summarize Notes",
			Description: "Summarize all currently saved notes.",
		},
		{
			Name:        "troubleshoot",
			Title:       "Troubleshoot",
			Description: "Walk through a structured troubleshooting session for a topic.",
			Arguments: []mcp.PromptArgument{
				{Name: "topic", Description: "What to troubleshoot", Required: true},
			},
		},
	}
}

// GetPrompt renders a prompt template. Unknown names return false.
func (r *Registry) GetPrompt(ctx context.Context, name string, arguments map[string]string) (*mcp.GetPromptResult, bool, error) {
	switch name {
	case "summarize_notes":
		var body strings.Builder
		body.WriteString("Summarize the following notes, grouping related ones:\n")
		if r.notes != nil {
			notes, err := r.notes.List(ctx)
			if err != nil {
				return nil, true, err
			}
			for _, n := range notes {
				fmt.Fprintf(&body, "\n## %s\n%s\n", n.Title, n.Content)
			}
		}
		return &mcp.GetPromptResult{
			Description: "Summarize saved notes",
			Messages: []mcp.PromptMessage{
				{Role: "user", Content: mcp.TextContent(body.String())},
			},
		}, true, nil

	case "troubleshoot":
		topic := arguments["topic"]
		if topic == "" {
			topic = "the problem"
		}
		text := fmt.Sprintf(
			"Help me troubleshoot %s. Ask clarifying questions first, then propose the most likely causes in order and how to test each one.",
			topic)
		return &mcp.GetPromptResult{
			Description: "Structured troubleshooting session",
			Messages: []mcp.PromptMessage{
				{Role: "user", Content: mcp.TextContent(text)},
			},
		}, true, nil
	}
	return nil, false, nil
}
