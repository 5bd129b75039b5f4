package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/provider"
)

// Turner runs one user turn. The chat.Loop satisfies this interface.
type Turner interface {
	Turn(ctx context.Context, userText string) (*chat.TurnResult, error)
}

// REPL is the read-eval-print loop: plain lines become chat turns, lines
// starting with "/" are slash commands.
type REPL struct {
	in          *Input
	out         io.Writer
	router      *Router
	loop        Turner
	log         *slog.Logger
	interactive bool
	streamed    bool
}

// REPLOption configures the REPL.
type REPLOption func(*REPL)

// WithREPLLogger sets the structured logger.
func WithREPLLogger(l *slog.Logger) REPLOption {
	return func(r *REPL) { r.log = l }
}

// WithInteractive controls whether prompts and banners are printed (true for
// a terminal, false for piped input).
func WithInteractive(interactive bool) REPLOption {
	return func(r *REPL) { r.interactive = interactive }
}

// WithStreaming marks responses as already written live by a provider delta
// callback; the REPL then closes the line instead of reprinting the text.
func WithStreaming(streamed bool) REPLOption {
	return func(r *REPL) { r.streamed = streamed }
}

// NewREPL creates the loop surface.
func NewREPL(in *Input, out io.Writer, router *Router, loop Turner, opts ...REPLOption) *REPL {
	r := &REPL{
		in:          in,
		out:         out,
		router:      router,
		loop:        loop,
		log:         slog.Default(),
		interactive: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until /quit, end of input, or context cancellation. Turn
// failures are printed and the loop continues; only cancellation and input
// errors end it.
func (r *REPL) Run(ctx context.Context) error {
	if r.interactive {
		fmt.Fprintln(r.out, "Codewright ready. /help for commands, /quit to leave.")
	}

	for {
		if r.interactive {
			fmt.Fprint(r.out, "> ")
		}
		line, err := r.in.ReadLine(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			out, err := r.router.Dispatch(ctx, line)
			if errors.Is(err, ErrQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(r.out, "error: %v\n", err)
				continue
			}
			fmt.Fprint(r.out, out)
			continue
		}

		r.runTurn(ctx, line)
	}
}

func (r *REPL) runTurn(ctx context.Context, line string) {
	result, err := r.loop.Turn(ctx, line)
	if err != nil {
		r.printTurnError(err)
		return
	}
	if r.streamed {
		fmt.Fprintln(r.out)
	} else {
		fmt.Fprintln(r.out, result.Response)
	}
	r.log.Debug("turn finished",
		"rounds", result.Rounds,
		"toolCalls", result.ToolCalls,
		"tokens", result.Usage.TotalTokens)
}

// printTurnError renders turn failures without killing the session.
func (r *REPL) printTurnError(err error) {
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.out, "interrupted")
	case errors.Is(err, chat.ErrToolLoopExceeded):
		fmt.Fprintln(r.out, "the model kept calling tools past the round limit; try a narrower request")
	default:
		var classified *provider.ClassifiedError
		if errors.As(err, &classified) {
			fmt.Fprintf(r.out, "provider error: %s\n", classified.Message)
			if g := classified.Guidance(""); g != "" {
				fmt.Fprintf(r.out, "  %s\n", g)
			}
			return
		}
		fmt.Fprintf(r.out, "error: %v\n", err)
	}
}
