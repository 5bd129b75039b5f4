// Package cli implements the interactive surface of the assistant: slash
// command routing, the REPL, and the terminal confirmation prompter.
package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/codewright/codewright/internal/config"
	"github.com/codewright/codewright/internal/permission"
	"github.com/codewright/codewright/internal/provider"
	"github.com/codewright/codewright/internal/session"
	"github.com/codewright/codewright/internal/usage"
)

// ErrQuit signals that the collaborator asked to leave the REPL.
var ErrQuit = errors.New("quit")

// Command represents one slash command.
type Command struct {
	Name        string
	Description string
	Run         func(ctx context.Context, args []string) (string, error)
}

// Deps is what the built-in commands need from the rest of the program.
type Deps struct {
	SessionName string
	SessionID   string
	ProviderID  string
	Model       string
	Yolo        bool
	Store       *session.Store
	Usage       *usage.Tracker
	// Client is the active provider; /status reads its configuration.
	Client *provider.Client
	// Clients are probed by /doctor; usually one per configured provider.
	Clients []*provider.Client
	// AuditPath is the JSONL permission log read by /audit.
	AuditPath string
}

// Router dispatches slash commands.
type Router struct {
	deps     Deps
	commands map[string]*Command
	order    []string
}

// NewRouter creates a router with the built-in commands registered.
func NewRouter(deps Deps) *Router {
	r := &Router{deps: deps, commands: make(map[string]*Command)}
	r.register(&Command{Name: "help", Description: "show available commands", Run: r.runHelp})
	r.register(&Command{Name: "status", Description: "show provider, session and usage", Run: r.runStatus})
	r.register(&Command{Name: "sessions", Description: "list stored sessions", Run: r.runSessions})
	r.register(&Command{Name: "export", Description: "export the transcript: /export <path>", Run: r.runExport})
	r.register(&Command{Name: "doctor", Description: "check provider reachability", Run: r.runDoctor})
	r.register(&Command{Name: "audit", Description: "show recent permission decisions", Run: r.runAudit})
	r.register(&Command{Name: "quit", Description: "leave", Run: r.runQuit})
	return r
}

func (r *Router) register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	r.order = append(r.order, cmd.Name)
}

// Dispatch routes a "/name args..." line to its command. The output is what
// the REPL prints.
func (r *Router) Dispatch(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(strings.TrimPrefix(line, "/"))
	if len(fields) == 0 {
		return "", fmt.Errorf("empty command; try /help")
	}
	cmd, ok := r.commands[fields[0]]
	if !ok {
		return "", fmt.Errorf("unknown command /%s; try /help", fields[0])
	}
	return cmd.Run(ctx, fields[1:])
}

func (r *Router) runHelp(ctx context.Context, args []string) (string, error) {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range r.order {
		fmt.Fprintf(&b, "  /%-10s %s\n", name, r.commands[name].Description)
	}
	return b.String(), nil
}

func (r *Router) runStatus(ctx context.Context, args []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "provider:  %s (%s)\n", r.deps.ProviderID, r.deps.Model)
	if r.deps.Client != nil {
		fmt.Fprintf(&b, "key:       %s\n", config.MaskKey(r.deps.Client.Config().APIKey))
	}
	fmt.Fprintf(&b, "session:   %s\n", r.deps.SessionName)
	fmt.Fprintf(&b, "yolo:      %v\n", r.deps.Yolo)
	if r.deps.Usage != nil {
		s := r.deps.Usage.Session(r.deps.SessionID)
		fmt.Fprintf(&b, "usage:     %d prompt + %d completion = %d tokens over %d calls\n",
			s.PromptTokens, s.CompletionTokens, s.TotalTokens, s.Calls)
	}
	return b.String(), nil
}

func (r *Router) runSessions(ctx context.Context, args []string) (string, error) {
	if r.deps.Store == nil {
		return "", errors.New("no session store")
	}
	summaries, err := r.deps.Store.List()
	if err != nil {
		return "", fmt.Errorf("list sessions: %w", err)
	}
	if len(summaries) == 0 {
		return "no sessions yet\n", nil
	}
	var b strings.Builder
	for _, s := range summaries {
		fmt.Fprintf(&b, "  %-20s %4d messages  %-22s %s\n",
			s.Name, s.Messages, s.Model, s.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return b.String(), nil
}

func (r *Router) runExport(ctx context.Context, args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: /export <path>")
	}
	if r.deps.Store == nil {
		return "", errors.New("no session store")
	}
	sess, err := r.deps.Store.Load(r.deps.SessionName)
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	if err := session.Export(args[0], sess); err != nil {
		return "", err
	}
	return fmt.Sprintf("exported %d messages to %s\n", len(sess.Messages), args[0]), nil
}

func (r *Router) runDoctor(ctx context.Context, args []string) (string, error) {
	if len(r.deps.Clients) == 0 {
		return "no providers configured\n", nil
	}
	results := provider.CheckAll(ctx, r.deps.Clients)

	var b strings.Builder
	for _, res := range results {
		if res.OK {
			fmt.Fprintf(&b, "  %-12s ok      %s (%s)\n", res.Provider, res.Model, res.Latency)
			continue
		}
		fmt.Fprintf(&b, "  %-12s failed  %v\n", res.Provider, res.Err)
	}
	return b.String(), nil
}

// auditTail bounds how many decisions /audit shows.
const auditTail = 20

func (r *Router) runAudit(ctx context.Context, args []string) (string, error) {
	if r.deps.AuditPath == "" {
		return "", errors.New("no audit log configured")
	}
	entries, err := permission.ReadAuditLog(r.deps.AuditPath)
	if err != nil {
		return "", fmt.Errorf("read audit log: %w", err)
	}
	if len(entries) == 0 {
		return "no decisions recorded yet\n", nil
	}
	if len(entries) > auditTail {
		entries = entries[len(entries)-auditTail:]
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "  %s  %-20s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), e.Tool, e.Decision)
	}
	return b.String(), nil
}

func (r *Router) runQuit(ctx context.Context, args []string) (string, error) {
	return "", ErrQuit
}
