package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/codewright/codewright/internal/permission"
)

const maxPromptArgs = 200

// TerminalPrompter asks the collaborator to approve a tool invocation on the
// terminal. It blocks with no timeout; the gate resolves a cancelled prompt
// to a denial.
type TerminalPrompter struct {
	in  *Input
	out io.Writer
}

// NewTerminalPrompter creates a prompter reading answers from the shared
// input source.
func NewTerminalPrompter(in *Input, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out}
}

// Confirm renders the confirmation and maps the answer: y → Allow,
// a → AllowAndRemember, anything else → Deny.
func (p *TerminalPrompter) Confirm(ctx context.Context, req permission.ConfirmRequest) (permission.Decision, error) {
	args := req.Arguments
	if len(args) > maxPromptArgs {
		args = args[:maxPromptArgs] + "…"
	}

	fmt.Fprintf(p.out, "\ntool %s wants to run:\n  %s\n", req.Tool, args)
	if req.Hint != "" {
		fmt.Fprintf(p.out, "  warning: %s\n", req.Hint)
	}
	fmt.Fprint(p.out, "allow? [y]es / [n]o / [a]lways this session: ")

	line, err := p.in.ReadLine(ctx)
	if err != nil {
		return permission.Deny, err
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return permission.Allow, nil
	case "a", "always":
		return permission.AllowAndRemember, nil
	default:
		return permission.Deny, nil
	}
}
