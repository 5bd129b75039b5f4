package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/codewright/codewright/internal/chat"
)

const maxListEntries = 200

// ListDirectoryTool lists directory entries within the sandbox.
type ListDirectoryTool struct {
	sandbox *Sandbox
}

// NewListDirectoryTool creates a list_directory tool sandboxed to the
// given root.
func NewListDirectoryTool(sandbox *Sandbox) *ListDirectoryTool {
	return &ListDirectoryTool{sandbox: sandbox}
}

type listDirectoryArgs struct {
	Path string `json:"path"`
}

func (t *ListDirectoryTool) Name() string { return "list_directory" }
func (t *ListDirectoryTool) Description() string {
	return "List the entries of a directory (defaults to the working directory)"
}
func (t *ListDirectoryTool) Classification() Classification { return Safe }

func (t *ListDirectoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Directory to list (default \".\")"
			}
		}
	}`)
}

func (t *ListDirectoryTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args listDirectoryArgs
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errResult(call, "invalid arguments: %v", err), nil
		}
	}
	if args.Path == "" {
		args.Path = "."
	}

	safePath, err := t.sandbox.ValidatePath(args.Path)
	if err != nil {
		return errResult(call, "%v", err), nil
	}

	entries, err := os.ReadDir(safePath)
	if err != nil {
		return errResult(call, "cannot list %s: %v", args.Path, err), nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var buf strings.Builder
	for i, entry := range entries {
		if i >= maxListEntries {
			fmt.Fprintf(&buf, "... (%d more entries)\n", len(entries)-maxListEntries)
			break
		}
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		buf.WriteString(name)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return okResult(call, "(empty directory)"), nil
	}

	return okResult(call, buf.String()), nil
}
