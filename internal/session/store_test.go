package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codewright/codewright/internal/chat"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

var testProvider = ProviderInfo{
	ID:      "openai",
	Dialect: "openai",
	BaseURL: "https://api.openai.com/v1",
	Model:   "gpt-4o",
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Create("work", testProvider)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	turn := []chat.Message{
		{Role: chat.RoleSystem, Content: "You are Codewright."},
		{Role: chat.RoleUser, Content: "list the files here"},
		{Role: chat.RoleAssistant, ToolCalls: []chat.ToolCall{
			{ID: "call_1", Name: "list_directory", Arguments: `{"path": "."}`},
		}},
		{Role: chat.RoleTool, Content: "main.go\ngo.mod\n", ToolCallID: "call_1"},
		{Role: chat.RoleAssistant, Content: "Two files: main.go and go.mod."},
	}
	if err := store.Append(sess.ID, turn...); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := store.Load("work")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != sess.ID {
		t.Errorf("ID = %q, want %q", loaded.ID, sess.ID)
	}
	if loaded.Provider != testProvider {
		t.Errorf("Provider = %+v", loaded.Provider)
	}
	if len(loaded.Messages) != len(turn) {
		t.Fatalf("messages = %d, want %d", len(loaded.Messages), len(turn))
	}
	for i, msg := range loaded.Messages {
		if msg.Role != turn[i].Role || msg.Content != turn[i].Content || msg.ToolCallID != turn[i].ToolCallID {
			t.Errorf("message %d = %+v, want %+v", i, msg, turn[i])
		}
	}
	tc := loaded.Messages[2].ToolCalls
	if len(tc) != 1 || tc[0].ID != "call_1" || tc[0].Arguments != `{"path": "."}` {
		t.Errorf("tool calls = %+v", tc)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStore_DuplicateNameRejected(t *testing.T) {
	store := newTestStore(t)

	if _, err := store.Create("dup", testProvider); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create("dup", testProvider); err == nil {
		t.Error("duplicate session name must be rejected")
	}
}

func TestStore_AppendToMissingSessionIsAtomic(t *testing.T) {
	store := newTestStore(t)

	err := store.Append("no-such-id", chat.Message{Role: chat.RoleUser, Content: "hi"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// Nothing may have landed.
	var count int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("orphan messages persisted: %d", count)
	}
}

func TestStore_AppendPreservesOrderAcrossBatches(t *testing.T) {
	store := newTestStore(t)
	sess, _ := store.Create("ordered", testProvider)

	if err := store.Append(sess.ID,
		chat.Message{Role: chat.RoleUser, Content: "first"},
		chat.Message{Role: chat.RoleAssistant, Content: "one"},
	); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Append(sess.ID,
		chat.Message{Role: chat.RoleUser, Content: "second"},
		chat.Message{Role: chat.RoleAssistant, Content: "two"},
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, err := store.Load("ordered")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := []string{"first", "one", "second", "two"}
	if len(loaded.Messages) != len(want) {
		t.Fatalf("messages = %d, want %d", len(loaded.Messages), len(want))
	}
	for i, content := range want {
		if loaded.Messages[i].Content != content {
			t.Errorf("message %d = %q, want %q", i, loaded.Messages[i].Content, content)
		}
	}
}

func TestStore_List(t *testing.T) {
	store := newTestStore(t)

	times := []time.Time{
		time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC),
	}
	i := 0
	store.now = func() time.Time { t := times[i%len(times)]; i++; return t }

	older, _ := store.Create("older", testProvider)
	newer, _ := store.Create("newer", ProviderInfo{ID: "anthropic", Dialect: "anthropic", Model: "claude-3-5-sonnet"})
	_ = older

	store.now = func() time.Time { return times[1].Add(time.Hour) }
	if err := store.Append(newer.ID, chat.Message{Role: chat.RoleUser, Content: "hi"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	summaries, err := store.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want 2", len(summaries))
	}
	if summaries[0].Name != "newer" {
		t.Errorf("most recently updated first, got %q", summaries[0].Name)
	}
	if summaries[0].Messages != 1 || summaries[1].Messages != 0 {
		t.Errorf("message counts = %d/%d", summaries[0].Messages, summaries[1].Messages)
	}
	if summaries[0].Model != "claude-3-5-sonnet" {
		t.Errorf("model = %q", summaries[0].Model)
	}
}

func TestExport_WritesTranscriptAtomically(t *testing.T) {
	store := newTestStore(t)
	sess, _ := store.Create("exported", testProvider)
	if err := store.Append(sess.ID,
		chat.Message{Role: chat.RoleUser, Content: "hello"},
		chat.Message{Role: chat.RoleAssistant, Content: "hi there"},
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	loaded, _ := store.Load("exported")
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.json")
	if err := Export(path, loaded); err != nil {
		t.Fatalf("Export: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("transcript is not valid JSON: %v", err)
	}
	if out.Name != "exported" || len(out.Messages) != 2 {
		t.Errorf("transcript = %+v", out)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".codewright-export-") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
