package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codewright/codewright/internal/chat"
)

// WriteFileTool writes content to a file within the sandbox using atomic
// write (temp + rename) so a crash mid-write never corrupts the target.
type WriteFileTool struct {
	sandbox *Sandbox
}

// NewWriteFileTool creates a write_file tool sandboxed to the given root.
func NewWriteFileTool(sandbox *Sandbox) *WriteFileTool {
	return &WriteFileTool{sandbox: sandbox}
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteFileTool) Name() string { return "write_file" }
func (t *WriteFileTool) Description() string {
	return "Write content to a file, creating or overwriting it"
}
func (t *WriteFileTool) Classification() Classification { return Protected }

func (t *WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file to write"
			},
			"content": {
				"type": "string",
				"description": "Content to write"
			}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args writeFileArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errResult(call, "invalid arguments: %v", err), nil
	}
	if args.Path == "" {
		return errResult(call, "path is required"), nil
	}

	safePath, err := t.sandbox.ValidatePath(args.Path)
	if err != nil {
		return errResult(call, "%v", err), nil
	}

	dir := filepath.Dir(safePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errResult(call, "failed to create directory: %v", err), nil
	}

	tmpFile, err := os.CreateTemp(dir, ".codewright-write-*")
	if err != nil {
		return errResult(call, "failed to create temp file: %v", err), nil
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.WriteString(args.Content); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return errResult(call, "failed to write: %v", err), nil
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return errResult(call, "failed to close temp file: %v", err), nil
	}
	if err := os.Rename(tmpPath, safePath); err != nil {
		os.Remove(tmpPath)
		return errResult(call, "failed to rename: %v", err), nil
	}

	return okResult(call, fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path)), nil
}
