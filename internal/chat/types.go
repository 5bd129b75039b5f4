// Package chat implements the conversation loop: user input → provider →
// tool calls → permission gate → execute → repeat. It is provider-agnostic
// and communicates through interfaces (Provider, Authorizer, Executor,
// Store), making it independently testable.
package chat

import "encoding/json"

// Message roles. Order in a history slice is conversation order and is
// never rewritten.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents one conversation message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object string
}

// ToolResult is the outcome of executing one tool call.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error,omitempty"`
}

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatRequest is one provider call: the full history so far plus the tool
// declarations. Model, token, and sampling parameters travel with the
// provider configuration, not the request.
type ChatRequest struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// ChatResponse is the assembled result of one provider call.
type ChatResponse struct {
	Message      Message    `json:"message"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption for one provider call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u *TokenUsage) add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// TurnResult is the outcome of one completed user turn.
type TurnResult struct {
	Response  string     // final assistant text
	Rounds    int        // provider calls made
	Usage     TokenUsage // cumulative usage across the turn
	ToolCalls int        // tool invocations resolved (including denials)
}
