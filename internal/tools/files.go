package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const maxFileReadBytes = 64 * 1024

// FileSandbox confines file tools to a single root directory. Paths are
// resolved relative to the root and may not escape it.
type FileSandbox struct {
	root string
}

// NewFileSandbox creates a sandbox rooted at dir.
func NewFileSandbox(dir string) (*FileSandbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root is not a directory: %s", abs)
	}
	return &FileSandbox{root: abs}, nil
}

// resolve maps a user-supplied path into the sandbox, rejecting escapes.
func (s *FileSandbox) resolve(p string) (string, error) {
	clean := filepath.Clean("/" + p)
	full := filepath.Join(s.root, clean)
	if full != s.root && !strings.HasPrefix(full, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes sandbox: %s", p)
	}
	return full, nil
}

// ReadFile returns the contents of a file inside the sandbox.
func (s *FileSandbox) ReadFile(path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > maxFileReadBytes {
		return "", fmt.Errorf("%s is too large (%d bytes, limit %d)", path, info.Size(), maxFileReadBytes)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(b), nil
}

// ListDirectory returns the entries of a directory inside the sandbox.
func (s *FileSandbox) ListDirectory(path string) ([]map[string]interface{}, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	out := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		item := map[string]interface{}{
			"name": e.Name(),
			"dir":  e.IsDir(),
		}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			item["size"] = info.Size()
		}
		out = append(out, item)
	}
	return out, nil
}

// ReadFileTool reads a file from the sandboxed directory
func ReadFileTool(sandbox *FileSandbox) Tool {
	return Tool{
		Name:        "read_file",
		Title:       "Read File",
		Description: "Read a text file from the shared files directory.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the files directory",
				},
			},
			"required": []string{"path"},
		},
		Execute: func(_ context.Context, input map[string]interface{}) (string, error) {
			path, _ := input["path"].(string)
			if path == "" {
				return "", fmt.Errorf("path is required")
			}
			return sandbox.ReadFile(path)
		},
	}
}

// ListDirectoryTool lists a directory in the sandboxed directory
func ListDirectoryTool(sandbox *FileSandbox) Tool {
	return Tool{
		Name:        "list_directory",
		Title:       "List Directory",
		Description: "List files and subdirectories in the shared files directory.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Directory path relative to the files directory, empty for the root",
				},
			},
		},
		Execute: func(_ context.Context, input map[string]interface{}) (string, error) {
			path, _ := input["path"].(string)
			entries, err := sandbox.ListDirectory(path)
			if err != nil {
				return "", err
			}
			b, _ := json.Marshal(entries)
			return string(b), nil
		},
	}
}
