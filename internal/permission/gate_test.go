package permission

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/tools"
)

// scriptedPrompter returns queued decisions and records every prompt it saw.
type scriptedPrompter struct {
	answers  []Decision
	requests []ConfirmRequest
	err      error
}

func (p *scriptedPrompter) Confirm(ctx context.Context, req ConfirmRequest) (Decision, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return Deny, p.err
	}
	if len(p.answers) == 0 {
		return Deny, errors.New("prompter exhausted")
	}
	d := p.answers[0]
	p.answers = p.answers[1:]
	return d, nil
}

// blockingPrompter blocks until its context is cancelled.
type blockingPrompter struct{}

func (blockingPrompter) Confirm(ctx context.Context, req ConfirmRequest) (Decision, error) {
	<-ctx.Done()
	return Deny, ctx.Err()
}

func newTestClassifier(t *testing.T) *tools.Registry {
	t.Helper()
	sb, err := tools.NewSandbox(t.TempDir())
	if err != nil {
		t.Fatalf("NewSandbox: %v", err)
	}
	reg, err := tools.NewDefaultRegistry(sb, nil)
	if err != nil {
		t.Fatalf("NewDefaultRegistry: %v", err)
	}
	return reg
}

func TestGate_SafeToolNeverPrompts(t *testing.T) {
	prompter := &scriptedPrompter{}
	gate := NewGate("s1", newTestClassifier(t), prompter)

	ok, err := gate.Authorize(context.Background(), chat.ToolCall{Name: "read_file"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !ok {
		t.Error("safe tool must be allowed")
	}
	if len(prompter.requests) != 0 {
		t.Errorf("safe tool prompted %d times", len(prompter.requests))
	}
}

func TestGate_SafePromptsWhenAutoApproveDisabled(t *testing.T) {
	prompter := &scriptedPrompter{answers: []Decision{Allow}}
	gate := NewGate("s1", newTestClassifier(t), prompter, WithAutoApproveSafe(false))

	ok, err := gate.Authorize(context.Background(), chat.ToolCall{Name: "read_file"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !ok || len(prompter.requests) != 1 {
		t.Errorf("expected one prompt and allow, got ok=%v prompts=%d", ok, len(prompter.requests))
	}
}

func TestGate_ProtectedBlocksUntilAnswer(t *testing.T) {
	prompter := &scriptedPrompter{answers: []Decision{Deny, Allow}}
	gate := NewGate("s1", newTestClassifier(t), prompter)
	call := chat.ToolCall{Name: "write_file", Arguments: `{"path": "x"}`}

	ok, err := gate.Authorize(context.Background(), call)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if ok {
		t.Error("deny must block execution")
	}

	// A deny does not poison later invocations.
	ok, err = gate.Authorize(context.Background(), call)
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !ok {
		t.Error("later invocation must be re-prompted and allowed")
	}
	if len(prompter.requests) != 2 {
		t.Errorf("prompts = %d, want 2", len(prompter.requests))
	}
}

func TestGate_AllowAndRememberSkipsLaterPrompts(t *testing.T) {
	prompter := &scriptedPrompter{answers: []Decision{AllowAndRemember}}
	gate := NewGate("s1", newTestClassifier(t), prompter)
	call := chat.ToolCall{Name: "run_shell_command", Arguments: `{"command": "ls"}`}

	for i := 0; i < 3; i++ {
		ok, err := gate.Authorize(context.Background(), call)
		if err != nil {
			t.Fatalf("Authorize #%d: %v", i, err)
		}
		if !ok {
			t.Fatalf("invocation #%d denied", i)
		}
	}
	if len(prompter.requests) != 1 {
		t.Errorf("prompts = %d, want 1 (remembered)", len(prompter.requests))
	}
}

func TestGate_YoloSkipsPrompts(t *testing.T) {
	prompter := &scriptedPrompter{}
	gate := NewGate("s1", newTestClassifier(t), prompter, WithYolo(true))

	ok, err := gate.Authorize(context.Background(), chat.ToolCall{Name: "write_file"})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if !ok || len(prompter.requests) != 0 {
		t.Errorf("yolo must allow without prompting, got ok=%v prompts=%d", ok, len(prompter.requests))
	}
}

func TestGate_CancellationResolvesDeny(t *testing.T) {
	gate := NewGate("s1", newTestClassifier(t), blockingPrompter{})

	ctx, cancel := context.WithCancel(context.Background())
	go cancel()

	ok, err := gate.Authorize(ctx, chat.ToolCall{Name: "write_file"})
	if err != nil {
		t.Fatalf("cancellation must resolve to deny, not error: %v", err)
	}
	if ok {
		t.Error("cancelled prompt must deny")
	}
}

func TestGate_PromptCarriesDangerHint(t *testing.T) {
	prompter := &scriptedPrompter{answers: []Decision{Deny}}
	gate := NewGate("s1", newTestClassifier(t), prompter)

	if _, err := gate.Authorize(context.Background(), chat.ToolCall{
		Name:      "run_shell_command",
		Arguments: `{"command": "rm -rf build"}`,
	}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if len(prompter.requests) != 1 || prompter.requests[0].Hint == "" {
		t.Error("destructive shell command must carry a danger hint")
	}
}

func TestGate_DecisionsAreAudited(t *testing.T) {
	var buf bytes.Buffer
	audit := NewAuditLog(&buf)
	prompter := &scriptedPrompter{answers: []Decision{Deny}}
	gate := NewGate("s1", newTestClassifier(t), prompter, WithAudit(audit))

	gate.Authorize(context.Background(), chat.ToolCall{Name: "read_file"})
	gate.Authorize(context.Background(), chat.ToolCall{Name: "write_file"})

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	if lines != 2 {
		t.Errorf("audit lines = %d, want 2", lines)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"decision":"deny"`)) {
		t.Error("denied decision not audited")
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"decision":"allow"`)) {
		t.Error("allowed decision not audited")
	}
}
