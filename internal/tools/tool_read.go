package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/codewright/codewright/internal/chat"
)

// ReadFileTool reads file contents within the sandbox.
type ReadFileTool struct {
	sandbox *Sandbox
}

// NewReadFileTool creates a read_file tool sandboxed to the given root.
func NewReadFileTool(sandbox *Sandbox) *ReadFileTool {
	return &ReadFileTool{sandbox: sandbox}
}

type readFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

func (t *ReadFileTool) Name() string { return "read_file" }
func (t *ReadFileTool) Description() string {
	return "Read the contents of a file (relative to the working directory)"
}
func (t *ReadFileTool) Classification() Classification { return Safe }

func (t *ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {
				"type": "string",
				"description": "Path to the file to read"
			},
			"offset": {
				"type": "integer",
				"description": "1-based line to start from (default 1)"
			},
			"limit": {
				"type": "integer",
				"description": "Maximum lines to return (default 500)"
			}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args readFileArgs
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

	f, err := os.Open(safePath)
	if err != nil {
		return errResult(call, "cannot open %s: %v", args.Path, err), nil
	}
	defer f.Close()

	limit := args.Limit
	if limit <= 0 || limit > maxOutputLines {
		limit = maxOutputLines
	}
	offset := args.Offset
	if offset < 1 {
		offset = 1
	}

	var buf strings.Builder
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	written := 0

	for scanner.Scan() {
		lineNum++
		if lineNum < offset {
			continue
		}
		if written >= limit {
			// Count what remains so truncation is explicit.
			remaining := 1
			for scanner.Scan() {
				remaining++
			}
			fmt.Fprintf(&buf, "... (%d more lines)\n", remaining)
			break
		}
		line := scanner.Text()
		if len(line) > maxLineLength {
			line = line[:maxLineLength] + "…"
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		written++
	}
	if err := scanner.Err(); err != nil {
		return errResult(call, "read error: %v", err), nil
	}

	return chat.ToolResult{ToolCallID: call.ID, Content: buf.String()}, nil
}
