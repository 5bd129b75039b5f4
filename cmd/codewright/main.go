// Command codewright is a terminal AI coding assistant: a chat loop over
// OpenAI-compatible and Anthropic providers with sandboxed tools, a
// permission gate for destructive actions, and SQLite session persistence.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/codewright/codewright/internal/chat"
	"github.com/codewright/codewright/internal/cli"
	"github.com/codewright/codewright/internal/config"
	"github.com/codewright/codewright/internal/lifecycle"
	"github.com/codewright/codewright/internal/permission"
	"github.com/codewright/codewright/internal/provider"
	"github.com/codewright/codewright/internal/session"
	"github.com/codewright/codewright/internal/tools"
	"github.com/codewright/codewright/internal/usage"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "init" {
		if err := runInit(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	providerFlag := flag.String("provider", "", "provider to use (default: config default_provider)")
	sessionFlag := flag.String("session", "default", "session name to create or resume")
	yoloFlag := flag.Bool("yolo", false, "skip confirmation for protected tools")
	debugFlag := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	level := slog.LevelWarn
	if *debugFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	mgr := lifecycle.NewManager(10*time.Second, logger)
	os.Exit(mgr.Run(func(ctx context.Context) error {
		return run(ctx, mgr, logger, *providerFlag, *sessionFlag, *yoloFlag)
	}))
}

func run(ctx context.Context, mgr *lifecycle.Manager, logger *slog.Logger, providerName, sessionName string, yolo bool) error {
	cfgPath, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrCreate(cfgPath)
	if err != nil {
		return err
	}

	if providerName == "" {
		providerName = cfg.DefaultProvider
	}
	pc, ok := cfg.Providers[providerName]
	if !ok {
		return fmt.Errorf("provider %q not in %s", providerName, cfgPath)
	}

	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	clientOpts := []provider.Option{provider.WithLogger(logger)}
	if interactive {
		// Print response text live as the provider streams it; the REPL
		// then only closes the line.
		clientOpts = append(clientOpts, provider.WithStreamFunc(func(delta string) {
			fmt.Print(delta)
		}))
	}
	client, err := provider.NewClient(providerConfig(providerName, pc, cfg.Settings), clientOpts...)
	if err != nil {
		return err
	}

	dataDir, err := config.Dir()
	if err != nil {
		return err
	}

	store, err := session.Open(filepath.Join(dataDir, "sessions.db"), logger)
	if err != nil {
		return err
	}
	mgr.OnShutdown("session store", func(context.Context) error { return store.Close() })

	auditPath := filepath.Join(dataDir, "audit.jsonl")
	audit, err := permission.NewFileAuditLog(auditPath)
	if err != nil {
		return err
	}
	mgr.OnShutdown("audit log", func(context.Context) error { return audit.Close() })

	workdir, err := os.Getwd()
	if err != nil {
		return err
	}
	sandbox, err := tools.NewSandbox(workdir)
	if err != nil {
		return err
	}
	registry, err := tools.NewDefaultRegistry(sandbox, logger)
	if err != nil {
		return err
	}

	sess, err := loadOrCreateSession(store, sessionName, providerName, pc, workdir)
	if err != nil {
		return err
	}

	input := cli.NewInput(os.Stdin)
	prompter := cli.NewTerminalPrompter(input, os.Stdout)
	gate := permission.NewGate(sess.ID, registry, prompter,
		permission.WithYolo(yolo),
		permission.WithAutoApproveSafe(cfg.Settings.AutoApproveSafeTools),
		permission.WithAudit(audit),
		permission.WithLogger(logger))

	tracker := usage.NewTracker()
	loop := chat.NewLoop(sess.ID, client, registry, gate, store,
		chat.WithLogger(logger),
		chat.WithUsageRecorder(tracker),
		chat.WithHistory(sess.Messages))

	router := cli.NewRouter(cli.Deps{
		SessionName: sessionName,
		SessionID:   sess.ID,
		ProviderID:  providerName,
		Model:       pc.Model,
		Yolo:        yolo,
		Store:       store,
		Usage:       tracker,
		Client:      client,
		Clients:     allClients(cfg, logger),
		AuditPath:   auditPath,
	})

	repl := cli.NewREPL(input, os.Stdout, router, loop,
		cli.WithREPLLogger(logger),
		cli.WithInteractive(interactive),
		cli.WithStreaming(interactive))

	return repl.Run(ctx)
}

func providerConfig(name string, pc config.Provider, settings config.Settings) provider.Config {
	return provider.Config{
		ID:          name,
		Dialect:     pc.Dialect,
		BaseURL:     pc.BaseURL,
		APIKey:      config.ResolveKey(pc),
		KeyEnv:      pc.KeyEnv,
		Model:       pc.Model,
		MaxTokens:   settings.MaxTokens,
		Temperature: settings.Temperature,
	}
}

// loadOrCreateSession resumes a named session or creates it with the system
// prompt as its first persisted message.
func loadOrCreateSession(store *session.Store, name, providerName string, pc config.Provider, workdir string) (*session.Session, error) {
	sess, err := store.Load(name)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return nil, err
	}

	sess, err = store.Create(name, session.ProviderInfo{
		ID:      providerName,
		Dialect: pc.Dialect,
		BaseURL: pc.BaseURL,
		Model:   pc.Model,
	})
	if err != nil {
		return nil, err
	}

	system := chat.Message{Role: chat.RoleSystem, Content: chat.BuildSystemPrompt(workdir)}
	if err := store.Append(sess.ID, system); err != nil {
		return nil, err
	}
	sess.Messages = append(sess.Messages, system)
	return sess, nil
}

// allClients builds one client per configured provider for /doctor.
// Providers that fail to construct are skipped with a log line.
func allClients(cfg *config.Config, logger *slog.Logger) []*provider.Client {
	var clients []*provider.Client
	for name, pc := range cfg.Providers {
		client, err := provider.NewClient(providerConfig(name, pc, cfg.Settings),
			provider.WithLogger(logger))
		if err != nil {
			logger.Warn("skipping provider", "provider", name, "error", err)
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

// runInit writes the default configuration and optionally captures an API
// key for one provider with no-echo input: codewright init [provider].
func runInit(args []string) error {
	path, err := config.Path()
	if err != nil {
		return err
	}
	cfg, err := config.LoadOrCreate(path)
	if err != nil {
		return err
	}
	fmt.Printf("configuration at %s\n", path)

	if len(args) == 0 {
		return nil
	}

	name := args[0]
	pc, ok := cfg.Providers[name]
	if !ok {
		return fmt.Errorf("provider %q not in config", name)
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return fmt.Errorf("refusing to read an API key from a non-terminal")
	}

	fmt.Printf("API key for %s (input hidden): ", name)
	key, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	if len(key) == 0 {
		return fmt.Errorf("empty key, nothing saved")
	}

	pc.APIKey = string(key)
	cfg.Providers[name] = pc
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("saved key for %s\n", name)
	return nil
}
