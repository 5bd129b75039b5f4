package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// maxToolRounds bounds how many tool-call rounds one user turn may consume
// before the turn fails. The session stays usable afterwards.
const maxToolRounds = 5

// ErrToolLoopExceeded is returned when the model keeps requesting tools past
// the round limit within a single user turn.
var ErrToolLoopExceeded = errors.New("tool loop limit exceeded")

// deniedResultText is what the model sees for a denied tool invocation. It
// may ask again in a later turn.
const deniedResultText = "Tool execution denied by user"

// Loop drives one conversation: user input → provider → tool calls →
// permission gate → execute → repeat. Strictly sequential; not safe for
// concurrent use.
type Loop struct {
	sessionID string
	provider  Provider
	executor  Executor
	gate      Authorizer
	store     Store
	usage     UsageRecorder
	log       *slog.Logger
	history   []Message
	persisted int // messages [0:persisted) are known to be in the store
}

// LoopOption configures optional Loop parameters.
type LoopOption func(*Loop)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) LoopOption {
	return func(lp *Loop) { lp.log = l }
}

// WithUsageRecorder wires per-session token accounting.
func WithUsageRecorder(u UsageRecorder) LoopOption {
	return func(lp *Loop) { lp.usage = u }
}

// WithHistory seeds the loop with already-persisted messages (session
// resume). The messages are treated as stored; Turn never re-appends them.
func WithHistory(msgs []Message) LoopOption {
	return func(lp *Loop) {
		lp.history = append([]Message(nil), msgs...)
		lp.persisted = len(lp.history)
	}
}

// NewLoop creates a conversation loop bound to one session.
func NewLoop(sessionID string, provider Provider, executor Executor, gate Authorizer, store Store, opts ...LoopOption) *Loop {
	l := &Loop{
		sessionID: sessionID,
		provider:  provider,
		executor:  executor,
		gate:      gate,
		store:     store,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// History returns a copy of the conversation so far.
func (l *Loop) History() []Message {
	return append([]Message(nil), l.history...)
}

// Turn runs one user turn to completion: provider calls and tool rounds
// until the model answers with text, then persists the whole batch. A failed
// turn (provider error, cancellation, loop limit with failed persist) rolls
// the in-memory history back to the last persisted point, so the session
// never diverges from the store.
func (l *Loop) Turn(ctx context.Context, userText string) (*TurnResult, error) {
	log := l.log.With("session", l.sessionID)

	l.history = append(l.history, Message{Role: RoleUser, Content: userText})

	defs := l.executor.Definitions()
	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[def.Name] = true
	}

	var (
		usage      TokenUsage
		toolCalls  int
		toolRounds int
		rounds     int
	)

	for {
		// Check context before each provider call, never after.
		if err := ctx.Err(); err != nil {
			l.rollback()
			return nil, err
		}

		log.Debug("provider call", "round", rounds+1, "messages", len(l.history))
		resp, err := l.provider.Send(ctx, ChatRequest{Messages: l.history, Tools: defs})
		if err != nil {
			l.rollback()
			return nil, fmt.Errorf("provider call failed on round %d: %w", rounds+1, err)
		}
		rounds++
		usage.add(resp.Usage)

		l.history = append(l.history, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			if err := l.persist(); err != nil {
				l.rollback()
				return nil, err
			}
			l.recordUsage(usage)
			log.Debug("turn complete", "rounds", rounds, "toolCalls", toolCalls)
			return &TurnResult{
				Response:  resp.Message.Content,
				Rounds:    rounds,
				Usage:     usage,
				ToolCalls: toolCalls,
			}, nil
		}

		if toolRounds >= maxToolRounds {
			// Persist what happened so the transcript stays honest, then
			// fail the turn. Nothing from this round executed.
			log.Warn("tool loop limit reached", "rounds", rounds)
			if err := l.persist(); err != nil {
				l.rollback()
				return nil, err
			}
			l.recordUsage(usage)
			return nil, ErrToolLoopExceeded
		}
		toolRounds++

		// Resolve invocations sequentially in model order.
		for _, call := range resp.Message.ToolCalls {
			result, err := l.resolve(ctx, call, known)
			if err != nil {
				l.rollback()
				return nil, err
			}
			toolCalls++
			l.history = append(l.history, Message{
				Role:       RoleTool,
				Content:    result.Content,
				ToolCallID: result.ToolCallID,
			})
		}
	}
}

// resolve runs one tool call through the gate and executor. Denials and tool
// failures are ordinary results; a non-nil error aborts the turn. Names the
// executor never declared skip the gate entirely: there is nothing to
// authorize, and the executor synthesizes the unavailable-tool result.
func (l *Loop) resolve(ctx context.Context, call ToolCall, known map[string]bool) (ToolResult, error) {
	if known[call.Name] {
		allowed, err := l.gate.Authorize(ctx, call)
		if err != nil {
			return ToolResult{}, fmt.Errorf("authorize %s: %w", call.Name, err)
		}
		if !allowed {
			l.log.Info("tool denied", "tool", call.Name)
			return ToolResult{ToolCallID: call.ID, Content: deniedResultText, IsError: true}, nil
		}
	} else {
		l.log.Info("model requested unknown tool", "tool", call.Name)
	}

	result, err := l.executor.Execute(ctx, call)
	if err != nil {
		return ToolResult{}, fmt.Errorf("execute %s: %w", call.Name, err)
	}
	if result.ToolCallID == "" {
		result.ToolCallID = call.ID
	}
	return result, nil
}

// persist appends everything added since the last successful persist as one
// atomic batch.
func (l *Loop) persist() error {
	batch := l.history[l.persisted:]
	if len(batch) == 0 {
		return nil
	}
	if err := l.store.Append(l.sessionID, batch...); err != nil {
		return fmt.Errorf("persist turn: %w", err)
	}
	l.persisted = len(l.history)
	return nil
}

// rollback discards unpersisted in-memory messages after a failed turn.
func (l *Loop) rollback() {
	l.history = l.history[:l.persisted]
}

func (l *Loop) recordUsage(usage TokenUsage) {
	if l.usage != nil {
		l.usage.Record(l.sessionID, usage)
	}
}
