package permission

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one audited permission decision.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Session   string    `json:"session"`
	Tool      string    `json:"tool"`
	Decision  string    `json:"decision"`
}

// AuditLog writes decisions to an append-only JSONL stream.
// Thread-safe: multiple goroutines can record concurrently.
type AuditLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	now    func() time.Time // injectable clock for testing
}

// NewAuditLog creates an audit log appending to the provided writer.
func NewAuditLog(w io.Writer) *AuditLog {
	return &AuditLog{w: w, now: time.Now}
}

// NewFileAuditLog creates an audit log that appends to a JSONL file,
// creating the file and parent directories if they don't exist.
func NewFileAuditLog(path string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	l := NewAuditLog(f)
	l.closer = f
	return l, nil
}

// Record appends one entry. The timestamp is stamped here.
func (l *AuditLog) Record(e Entry) error {
	e.Timestamp = l.now()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.w.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}

// Close releases the underlying file, if any.
func (l *AuditLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	return err
}

// ReadAuditLog reads all entries from a JSONL file. A missing file yields an
// empty log, not an error.
func ReadAuditLog(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("read audit log: %w", err)
	}
	return entries, nil
}
