// Package tools implements the built-in tool set exposed to the model:
// filesystem inspection, file writes, shell execution, and git helpers, all
// confined to a sandbox root. Tools are classified Safe or Protected; the
// registry surfaces the classification so the permission layer can decide
// whether a confirmation is required before execution.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codewright/codewright/internal/chat"
)

// Classification partitions tools by blast radius.
type Classification int

const (
	// Safe tools only read state and run without confirmation.
	Safe Classification = iota
	// Protected tools mutate state and require an authorization decision.
	Protected
)

func (c Classification) String() string {
	switch c {
	case Safe:
		return "safe"
	case Protected:
		return "protected"
	default:
		return "unknown"
	}
}

// Tool is a single callable capability. Execute returns a ToolResult for
// anything the model should see, including failures; a non-nil error is
// reserved for conditions that must abort the turn (context cancellation).
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Classification() Classification
	Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error)
}

// Output bounds keep a single tool result from flooding the model context.
const (
	maxOutputLines = 500
	maxOutputBytes = 64 * 1024
	maxLineLength  = 500
)

// boundOutput truncates tool output to the line and byte limits, appending
// an explicit marker so the model knows content was dropped.
func boundOutput(s string) string {
	if len(s) <= maxOutputBytes && strings.Count(s, "\n") <= maxOutputLines {
		return s
	}

	lines := strings.Split(s, "\n")
	total := len(lines)
	if total > maxOutputLines {
		lines = lines[:maxOutputLines]
	}
	out := strings.Join(lines, "\n")
	bytesCut := false
	if len(out) > maxOutputBytes {
		out = out[:maxOutputBytes]
		if i := strings.LastIndexByte(out, '\n'); i > 0 {
			out = out[:i]
		}
		bytesCut = true
	}
	kept := strings.Count(out, "\n") + 1
	switch {
	case total > kept:
		out += fmt.Sprintf("\n... (%d more lines)", total-kept)
	case bytesCut:
		// The byte cap fired inside a single line; still say so.
		out += "\n... (output truncated)"
	}
	return out
}

func errResult(call chat.ToolCall, format string, args ...any) chat.ToolResult {
	return chat.ToolResult{
		ToolCallID: call.ID,
		Content:    fmt.Sprintf(format, args...),
		IsError:    true,
	}
}

func okResult(call chat.ToolCall, content string) chat.ToolResult {
	return chat.ToolResult{ToolCallID: call.ID, Content: content}
}
