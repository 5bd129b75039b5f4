// Package session persists conversations in SQLite. Sessions are append-only:
// the core never rewrites or deletes history, and the persistence unit is one
// completed turn batch (all messages land or none).
package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/codewright/codewright/internal/chat"
)

// ErrNotFound is returned when a named session does not exist.
var ErrNotFound = errors.New("session not found")

// ProviderInfo is the provider snapshot persisted with a session. API keys
// are never part of it; the collaborator resolves keys at bind time.
type ProviderInfo struct {
	ID          string  `json:"id"`
	Dialect     string  `json:"dialect"`
	BaseURL     string  `json:"base_url"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Session is a persisted conversation.
type Session struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Provider  ProviderInfo   `json:"provider"`
	Messages  []chat.Message `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Summary is one row of the session list.
type Summary struct {
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Messages  int       `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the SQLite-backed session store. Same-session appends are
// serialized; different sessions do not block each other.
type Store struct {
	db  *sql.DB
	log *slog.Logger
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open opens (or creates) a session store at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			provider   TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			session_id   TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq          INTEGER NOT NULL,
			role         TEXT NOT NULL,
			content      TEXT NOT NULL DEFAULT '',
			tool_calls   TEXT NOT NULL DEFAULT '',
			tool_call_id TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (session_id, seq)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create messages table: %w", err)
	}

	return &Store{
		db:    db,
		log:   logger,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (s *Store) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Create creates a new named session with a provider snapshot.
func (s *Store) Create(name string, provider ProviderInfo) (*Session, error) {
	snapshot, err := json.Marshal(provider)
	if err != nil {
		return nil, fmt.Errorf("marshal provider snapshot: %w", err)
	}

	now := s.now().UTC()
	sess := &Session{
		ID:        uuid.NewString(),
		Name:      name,
		Provider:  provider,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.Exec(
		`INSERT INTO sessions (id, name, provider, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, string(snapshot),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("create session %q: %w", name, err)
	}

	s.log.Debug("session created", "name", name, "id", sess.ID)
	return sess, nil
}

// Load retrieves a session by name, replaying its messages in order.
func (s *Store) Load(name string) (*Session, error) {
	var (
		sess               Session
		snapshot           string
		createdAt, updated string
	)
	err := s.db.QueryRow(
		`SELECT id, name, provider, created_at, updated_at FROM sessions WHERE name = ?`, name,
	).Scan(&sess.ID, &sess.Name, &snapshot, &createdAt, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load session %q: %w", name, err)
	}

	if err := json.Unmarshal([]byte(snapshot), &sess.Provider); err != nil {
		return nil, fmt.Errorf("decode provider snapshot: %w", err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)

	rows, err := s.db.Query(
		`SELECT role, content, tool_calls, tool_call_id FROM messages WHERE session_id = ? ORDER BY seq ASC`,
		sess.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg       chat.Message
			toolCalls string
		)
		if err := rows.Scan(&msg.Role, &msg.Content, &toolCalls, &msg.ToolCallID); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls != "" {
			if err := json.Unmarshal([]byte(toolCalls), &msg.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		sess.Messages = append(sess.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	return &sess, nil
}

// Append persists one turn batch in a single transaction: all messages land
// or none. Same-session appends are serialized.
func (s *Store) Append(sessionID string, msgs ...chat.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	var lastSeq int
	if err := tx.QueryRow(
		`SELECT COALESCE(MAX(seq), -1) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&lastSeq); err != nil {
		return fmt.Errorf("read last seq: %w", err)
	}

	for i, msg := range msgs {
		var toolCalls string
		if len(msg.ToolCalls) > 0 {
			data, err := json.Marshal(msg.ToolCalls)
			if err != nil {
				return fmt.Errorf("marshal tool calls: %w", err)
			}
			toolCalls = string(data)
		}
		if _, err := tx.Exec(
			`INSERT INTO messages (session_id, seq, role, content, tool_calls, tool_call_id) VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, lastSeq+1+i, msg.Role, msg.Content, toolCalls, msg.ToolCallID,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	if _, err := tx.Exec(
		`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		s.now().UTC().Format(time.RFC3339Nano), sessionID,
	); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit append: %w", err)
	}
	return nil
}

// List returns summaries of all sessions, most recently updated first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT s.name, s.provider, s.updated_at, COUNT(m.seq)
		FROM sessions s LEFT JOIN messages m ON m.session_id = s.id
		GROUP BY s.id
		ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum      Summary
			snapshot string
			updated  string
		)
		if err := rows.Scan(&sum.Name, &snapshot, &updated, &sum.Messages); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		var info ProviderInfo
		if json.Unmarshal([]byte(snapshot), &info) == nil {
			sum.Model = info.Model
		}
		sum.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
