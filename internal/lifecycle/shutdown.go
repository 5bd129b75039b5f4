// Package lifecycle manages graceful shutdown of the assistant process. It
// handles signal interception, root-context cancellation (aborting any
// in-flight turn), and ordered shutdown hooks with a grace period.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Hook is called during shutdown. Name is for logging.
type Hook struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Manager coordinates the process lifecycle: it runs the main function under
// a cancellable root context and winds everything down on SIGINT/SIGTERM or
// main completion.
type Manager struct {
	grace   time.Duration
	logger  *slog.Logger
	started time.Time

	mu    sync.Mutex
	hooks []Hook
	done  bool
}

// NewManager creates a lifecycle manager. The grace period bounds how long
// shutdown hooks may run.
func NewManager(grace time.Duration, logger *slog.Logger) *Manager {
	if grace <= 0 {
		grace = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{grace: grace, logger: logger, started: time.Now()}
}

// OnShutdown registers a hook to run during shutdown. Hooks run in
// registration order (audit log before store, so the last decision lands).
func (m *Manager) OnShutdown(name string, fn func(ctx context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Run executes mainFn under a root context that is cancelled on SIGINT or
// SIGTERM, then runs the shutdown hooks. Returns the process exit code.
func (m *Manager) Run(mainFn func(ctx context.Context) error) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- mainFn(ctx)
	}()

	select {
	case sig := <-sigCh:
		m.logger.Info("signal received, shutting down",
			"signal", sig.String(),
			"uptime", time.Since(m.started).String())
		cancel()
		// Give the main function a chance to notice the cancellation.
		select {
		case <-errCh:
		case <-time.After(m.grace):
			m.logger.Warn("main did not stop within grace period")
		}
		m.runHooks()
		return 0

	case err := <-errCh:
		m.runHooks()
		if err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("exited with error", "error", err)
			return 1
		}
		return 0
	}
}

// runHooks executes registered hooks once, in order, under the grace period.
func (m *Manager) runHooks() {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return
	}
	m.done = true
	hooks := make([]Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.grace)
	defer cancel()

	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			m.logger.Error("shutdown hook failed", "name", hook.Name, "error", err)
		} else {
			m.logger.Debug("shutdown hook done", "name", hook.Name)
		}
	}
}
