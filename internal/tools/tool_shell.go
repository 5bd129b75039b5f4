package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"time"

	"github.com/codewright/codewright/internal/chat"
)

const (
	defaultShellTimeout = 60 * time.Second
	maxShellTimeout     = 300 * time.Second
)

// ShellTool executes shell commands in the sandbox root via sh -c. The
// process is killed on timeout or cancellation; stdout and stderr are both
// captured and bounded.
type ShellTool struct {
	sandbox *Sandbox
	timeout time.Duration
}

// NewShellTool creates a run_shell_command tool running in the sandbox root.
func NewShellTool(sandbox *Sandbox) *ShellTool {
	return &ShellTool{sandbox: sandbox, timeout: defaultShellTimeout}
}

type shellArgs struct {
	Command string `json:"command"`
	Timeout *int   `json:"timeout,omitempty"` // seconds
}

func (t *ShellTool) Name() string { return "run_shell_command" }
func (t *ShellTool) Description() string {
	return "Execute a shell command in the working directory"
}
func (t *ShellTool) Classification() Classification { return Protected }

func (t *ShellTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {
				"type": "string",
				"description": "The shell command to execute"
			},
			"timeout": {
				"type": "integer",
				"description": "Optional timeout in seconds (default 60, max 300)"
			}
		},
		"required": ["command"]
	}`)
}

func (t *ShellTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args shellArgs
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return errResult(call, "invalid arguments: %v", err), nil
	}
	if args.Command == "" {
		return errResult(call, "command is required"), nil
	}

	timeout := t.timeout
	if args.Timeout != nil && *args.Timeout > 0 {
		timeout = time.Duration(*args.Timeout) * time.Second
		if timeout > maxShellTimeout {
			timeout = maxShellTimeout
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", args.Command)
	cmd.Dir = t.sandbox.Root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	output := stdout.String()
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += stderr.String()
	}
	output = boundOutput(output)

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return errResult(call, "command timed out after %s\n%s", timeout, output), nil
		}
		if ctx.Err() == context.Canceled {
			return chat.ToolResult{}, ctx.Err()
		}
		return errResult(call, "exit status: %v\n%s", err, output), nil
	}

	return chat.ToolResult{ToolCallID: call.ID, Content: output}, nil
}
