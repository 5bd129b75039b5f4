// Package usage implements per-session token accounting. It provides
// thread-safe accumulation of prompt and completion tokens across turns,
// surfaced by the /status command and the per-turn debug log.
package usage

import (
	"sync"
	"time"

	"github.com/codewright/codewright/internal/chat"
)

// Clock allows injecting time for testing.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Snapshot is the accumulated usage of one session.
type Snapshot struct {
	Session          string    `json:"session"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	Calls            int       `json:"calls"`
	FirstCall        time.Time `json:"first_call"`
	LastCall         time.Time `json:"last_call"`
}

// Tracker accumulates token usage per session. Thread-safe.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Snapshot
	clock    Clock
}

// NewTracker creates a usage tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*Snapshot),
		clock:    realClock{},
	}
}

// WithClock replaces the clock. For tests.
func (t *Tracker) WithClock(clock Clock) *Tracker {
	t.clock = clock
	return t
}

// Record adds one turn's usage to the session's running totals.
func (t *Tracker) Record(session string, usage chat.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	s, ok := t.sessions[session]
	if !ok {
		s = &Snapshot{Session: session, FirstCall: now}
		t.sessions[session] = s
	}
	s.PromptTokens += usage.PromptTokens
	s.CompletionTokens += usage.CompletionTokens
	s.TotalTokens += usage.TotalTokens
	s.Calls++
	s.LastCall = now
}

// Session returns a copy of one session's totals. The zero Snapshot is
// returned for sessions that never recorded usage.
func (t *Tracker) Session(session string) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	if s, ok := t.sessions[session]; ok {
		return *s
	}
	return Snapshot{Session: session}
}
