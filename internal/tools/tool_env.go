package tools

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"

	"github.com/codewright/codewright/internal/chat"
)

// CurrentDirectoryTool reports the working directory the session runs in.
type CurrentDirectoryTool struct {
	sandbox *Sandbox
}

// NewCurrentDirectoryTool creates a get_current_directory tool.
func NewCurrentDirectoryTool(sandbox *Sandbox) *CurrentDirectoryTool {
	return &CurrentDirectoryTool{sandbox: sandbox}
}

func (t *CurrentDirectoryTool) Name() string                   { return "get_current_directory" }
func (t *CurrentDirectoryTool) Description() string            { return "Get the absolute working directory" }
func (t *CurrentDirectoryTool) Classification() Classification { return Safe }

func (t *CurrentDirectoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *CurrentDirectoryTool) Execute(_ context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	return okResult(call, t.sandbox.Root), nil
}

// WhichTool locates an executable on PATH.
type WhichTool struct{}

// NewWhichTool creates a which tool.
func NewWhichTool() *WhichTool { return &WhichTool{} }

type whichArgs struct {
	Command string `json:"command"`
}

func (t *WhichTool) Name() string                   { return "which" }
func (t *WhichTool) Description() string            { return "Locate an executable on the PATH" }
func (t *WhichTool) Classification() Classification { return Safe }

func (t *WhichTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "Name of the executable to locate"
			}
		},
		"required": ["command"]
	}`)
}

func (t *WhichTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args whichArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errResult(call, "invalid arguments: %v", err), nil
	}
	if args.Command == "" {
		return errResult(call, "command is required"), nil
	}

	path, err := exec.LookPath(args.Command)
	if err != nil {
		return errResult(call, "%s not found on PATH", args.Command), nil
	}
	return okResult(call, path), nil
}

// EchoTool echoes its message back, useful for wiring checks.
type EchoTool struct{}

// NewEchoTool creates an echo tool.
func NewEchoTool() *EchoTool { return &EchoTool{} }

type echoArgs struct {
	Message string `json:"message"`
}

func (t *EchoTool) Name() string                   { return "echo" }
func (t *EchoTool) Description() string            { return "Echo a message back" }
func (t *EchoTool) Classification() Classification { return Safe }

func (t *EchoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {
				"type": "string",
				"description": "Message to echo"
			}
		}
	}`)
}

func (t *EchoTool) Execute(_ context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args echoArgs
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errResult(call, "invalid arguments: %v", err), nil
		}
	}
	return okResult(call, strings.TrimRight(args.Message, "\n")), nil
}
