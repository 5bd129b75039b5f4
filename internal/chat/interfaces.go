package chat

import "context"

// Provider makes one chat completion call. The provider.Client satisfies
// this interface; the loop never sees vendor wire formats.
type Provider interface {
	Send(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Executor runs tool calls and lists the available tools. The tools.Registry
// satisfies this interface. Unknown tools and execution failures come back
// as error ToolResults; a non-nil error means the turn must abort.
type Executor interface {
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
	Definitions() []ToolDefinition
}

// Authorizer decides whether a tool invocation may run. The permission.Gate
// satisfies this interface. A false result is an ordinary denial, not an
// error.
type Authorizer interface {
	Authorize(ctx context.Context, call ToolCall) (bool, error)
}

// Store persists one turn batch atomically. The session.Store satisfies
// this interface.
type Store interface {
	Append(sessionID string, msgs ...Message) error
}

// UsageRecorder accumulates token usage per session.
type UsageRecorder interface {
	Record(session string, usage TokenUsage)
}
