package tools

import (
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"

	"github.com/codewright/codewright/internal/chat"
)

const maxGitLogEntries = 50

// GitStatusTool reports the porcelain status of the repository in the
// working directory.
type GitStatusTool struct {
	sandbox *Sandbox
}

// NewGitStatusTool creates a git_status tool bound to the sandbox root.
func NewGitStatusTool(sandbox *Sandbox) *GitStatusTool {
	return &GitStatusTool{sandbox: sandbox}
}

func (t *GitStatusTool) Name() string                   { return "git_status" }
func (t *GitStatusTool) Description() string            { return "Show the git working tree status" }
func (t *GitStatusTool) Classification() Classification { return Safe }

func (t *GitStatusTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GitStatusTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	cmd := exec.CommandContext(ctx, "git", "status", "--porcelain")
	cmd.Dir = t.sandbox.Root
	out, err := cmd.Output()
	if err != nil {
		return errResult(call, "git status failed: %v", err), nil
	}
	result := strings.TrimSpace(string(out))
	if result == "" {
		return okResult(call, "working tree clean"), nil
	}
	return okResult(call, result), nil
}

// GitLogTool shows recent commits, one line each.
type GitLogTool struct {
	sandbox *Sandbox
}

// NewGitLogTool creates a git_log tool bound to the sandbox root.
func NewGitLogTool(sandbox *Sandbox) *GitLogTool {
	return &GitLogTool{sandbox: sandbox}
}

type gitLogArgs struct {
	Limit int `json:"limit"`
}

func (t *GitLogTool) Name() string                   { return "git_log" }
func (t *GitLogTool) Description() string            { return "Show recent git commits, one line each" }
func (t *GitLogTool) Classification() Classification { return Safe }

func (t *GitLogTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"limit": {
				"type": "integer",
				"description": "Number of commits to show (default 10, max 50)"
			}
		}
	}`)
}

func (t *GitLogTool) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	var args gitLogArgs
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return errResult(call, "invalid arguments: %v", err), nil
		}
	}
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > maxGitLogEntries {
		limit = maxGitLogEntries
	}

	cmd := exec.CommandContext(ctx, "git", "log", "--oneline", "--no-decorate", "-n", strconv.Itoa(limit))
	cmd.Dir = t.sandbox.Root
	out, err := cmd.Output()
	if err != nil {
		return errResult(call, "git log failed: %v", err), nil
	}
	result := strings.TrimSpace(string(out))
	if result == "" {
		return okResult(call, "no commits found"), nil
	}
	return okResult(call, result), nil
}
