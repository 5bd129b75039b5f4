package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/codewright/codewright/internal/chat"
)

// Registry holds the fixed tool table. It is populated at startup and
// read-only afterwards, so concurrent sessions can share one instance.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string // registration order, kept stable for Definitions
	log   *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools: make(map[string]Tool),
		log:   logger,
	}
}

// NewDefaultRegistry creates a registry with the full native tool set,
// sandboxed to the given working directory.
func NewDefaultRegistry(sandbox *Sandbox, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(logger)
	all := []Tool{
		NewListDirectoryTool(sandbox),
		NewReadFileTool(sandbox),
		NewCurrentDirectoryTool(sandbox),
		NewGitStatusTool(sandbox),
		NewGitLogTool(sandbox),
		NewWhichTool(),
		NewEchoTool(),
		NewWriteFileTool(sandbox),
		NewShellTool(sandbox),
	}
	for _, t := range all {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	r.log.Debug("tool registered", "tool", name, "classification", t.Classification().String())
	return nil
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Classify returns the classification of a tool name. The second return is
// false for unknown tools.
func (r *Registry) Classify(name string) (Classification, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return Protected, false
	}
	return t.Classification(), true
}

// Definitions exports the tool declarations sent with every provider
// request, in registration order.
func (r *Registry) Definitions() []chat.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]chat.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, chat.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute runs an approved tool call. Unknown tools come back as an error
// result so the conversation can continue; a non-nil error means the call
// was aborted (context cancellation).
func (r *Registry) Execute(ctx context.Context, call chat.ToolCall) (chat.ToolResult, error) {
	t := r.Get(call.Name)
	if t == nil {
		return errResult(call, "unknown tool %q: this tool is unavailable", call.Name), nil
	}
	if err := ctx.Err(); err != nil {
		return chat.ToolResult{}, err
	}

	result, err := t.Execute(ctx, call)
	result.ToolCallID = call.ID
	return result, err
}
