// Package permission decides whether a tool invocation may run. Safe tools
// pass without interaction; Protected tools require an explicit decision from
// the collaborator unless the session runs with yolo or the tool was already
// approved for the session. Every decision lands in an append-only audit log.
package permission

import (
	"context"
	"log/slog"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/tools"
)

// Decision is the collaborator's answer to a confirmation prompt.
type Decision int

const (
	Deny Decision = iota
	Allow
	// AllowAndRemember allows this invocation and every later invocation of
	// the same tool within the session.
	AllowAndRemember
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case AllowAndRemember:
		return "allow_and_remember"
	default:
		return "deny"
	}
}

// ConfirmRequest carries everything the prompter needs to render a
// confirmation.
type ConfirmRequest struct {
	Tool      string
	Arguments string
	// Hint is a destructive-pattern warning for shell commands, or "".
	Hint string
}

// Prompter blocks until the collaborator answers a confirmation. There is no
// timeout; cancellation of ctx resolves the pending prompt.
type Prompter interface {
	Confirm(ctx context.Context, req ConfirmRequest) (Decision, error)
}

// Classifier reports the static classification of a tool name. Satisfied by
// *tools.Registry.
type Classifier interface {
	Classify(name string) (tools.Classification, bool)
}

// Gate is the per-session permission state machine. Not safe for concurrent
// use; a session's turns are strictly sequential.
type Gate struct {
	session         string
	classifier      Classifier
	prompter        Prompter
	audit           *AuditLog
	log             *slog.Logger
	yolo            bool
	autoApproveSafe bool
	remembered      map[string]bool
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithYolo skips confirmation for Protected tools. Decisions are still
// audited.
func WithYolo(yolo bool) GateOption {
	return func(g *Gate) { g.yolo = yolo }
}

// WithAutoApproveSafe controls whether Safe tools run without confirmation
// (default true). When disabled, Safe tools prompt like Protected ones.
func WithAutoApproveSafe(auto bool) GateOption {
	return func(g *Gate) { g.autoApproveSafe = auto }
}

// WithAudit records every decision to the given audit log.
func WithAudit(audit *AuditLog) GateOption {
	return func(g *Gate) { g.audit = audit }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) GateOption {
	return func(g *Gate) { g.log = log }
}

// NewGate creates a permission gate scoped to one session.
func NewGate(session string, classifier Classifier, prompter Prompter, opts ...GateOption) *Gate {
	g := &Gate{
		session:         session,
		classifier:      classifier,
		prompter:        prompter,
		autoApproveSafe: true,
		remembered:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g
}

// Authorize decides whether the invocation may run. It returns true only for
// Allow and AllowAndRemember; a Deny returns false with a nil error. Context
// cancellation while a prompt is pending resolves to Deny.
func (g *Gate) Authorize(ctx context.Context, call chat.ToolCall) (bool, error) {
	decision, err := g.decide(ctx, call)
	g.record(call, decision)
	if err != nil {
		return false, err
	}
	return decision != Deny, nil
}

func (g *Gate) decide(ctx context.Context, call chat.ToolCall) (Decision, error) {
	class, known := g.classifier.Classify(call.Name)
	if !known {
		// The chat loop resolves unknown names against the registry before
		// consulting the gate, so this is only reachable for direct callers.
		// A name the classifier cannot place is never approved.
		return Deny, nil
	}

	if class == tools.Safe && g.autoApproveSafe {
		return Allow, nil
	}
	if g.yolo {
		return Allow, nil
	}
	if g.remembered[call.Name] {
		return Allow, nil
	}

	decision, err := g.prompter.Confirm(ctx, ConfirmRequest{
		Tool:      call.Name,
		Arguments: call.Arguments,
		Hint:      tools.DangerHint(call.Name, call.Arguments),
	})
	if err != nil {
		if ctx.Err() != nil {
			return Deny, nil
		}
		return Deny, err
	}
	if decision == AllowAndRemember {
		g.remembered[call.Name] = true
	}
	return decision, nil
}

func (g *Gate) record(call chat.ToolCall, decision Decision) {
	g.log.Debug("permission decision",
		"session", g.session,
		"tool", call.Name,
		"decision", decision.String())
	if g.audit == nil {
		return
	}
	if err := g.audit.Record(Entry{
		Session:  g.session,
		Tool:     call.Name,
		Decision: decision.String(),
	}); err != nil {
		g.log.Warn("audit write failed", "error", err)
	}
}
