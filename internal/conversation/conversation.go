// Package conversation keeps the in-process chat history and flushes it to
// timestamped JSON records.
package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"agentx/internal/domain"
)

// Record is the persisted form of a conversation.
type Record struct {
	SessionID string        `json:"session_id"`
	Timestamp time.Time     `json:"timestamp"`
	Messages  []domain.Turn `json:"messages"`
}

// Log is the ordered turn sequence of the current session.
type Log struct {
	dir string
	now func() time.Time

	mu        sync.Mutex
	sessionID string
	turns     []domain.Turn
}

// NewLog creates an empty log persisting into dir.
func NewLog(dir string) *Log {
	return &Log{dir: dir, now: time.Now, sessionID: uuid.NewString()}
}

// Now returns the log's clock reading.
func (l *Log) Now() time.Time { return l.now() }

// Append adds turns in order.
func (l *Log) Append(turns ...domain.Turn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.turns = append(l.turns, turns...)
}

// Turns returns a copy of the current sequence.
func (l *Log) Turns() []domain.Turn {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Len returns the number of turns.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

// SessionID identifies the current session.
func (l *Log) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// Save writes the whole sequence to conversation-YYYYMMDD-HHMMSS-<session>.json
// and returns the file path. An empty log writes nothing.
func (l *Log) Save() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// Reset saves the current sequence, then starts a new session.
func (l *Log) Reset() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	path, err := l.saveLocked()
	l.turns = nil
	l.sessionID = uuid.NewString()
	return path, err
}

func (l *Log) saveLocked() (string, error) {
	if len(l.turns) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating conversation dir: %w", err)
	}
	now := l.now()
	rec := Record{SessionID: l.sessionID, Timestamp: now, Messages: l.turns}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding conversation: %w", err)
	}
	path := filepath.Join(l.dir, fileName(now, l.sessionID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing conversation: %w", err)
	}
	return path, nil
}

// fileName stamps the flush time and a short session prefix, so a new session
// never overwrites the previous one's record within the same second.
func fileName(at time.Time, sessionID string) string {
	short := strings.ReplaceAll(sessionID, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return "conversation-" + at.Format("20060102-150405") + "-" + short + ".json"
}
