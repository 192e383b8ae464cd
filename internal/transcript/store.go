// Package transcript provides best-effort archival of committed conversation
// turns. Sessions themselves are ephemeral — the archive exists for offline
// review and never feeds back into live conversations. Store failures are
// logged by callers and must never fail a session.
package transcript

import (
	"context"
	"sync"
	"time"
)

// Entry is one committed conversation turn.
type Entry struct {
	// SessionID identifies the voice session the turn belongs to.
	SessionID string

	// Role is "user" or "agent".
	Role string

	// Content is the committed message text.
	Content string

	// GenerationID is the agent response attempt that produced this entry.
	// Zero for user turns.
	GenerationID uint64

	// Timestamp is when the turn was committed.
	Timestamp time.Time
}

// Store archives committed conversation turns.
//
// Implementations must be safe for concurrent use across sessions.
type Store interface {
	// Append records one committed turn.
	Append(ctx context.Context, e Entry) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases resources. Append must not be called after Close.
	Close()
}

// MemStore is an in-memory Store used in tests and when no DSN is configured.
type MemStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Append implements Store.
func (s *MemStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Ping implements Store.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements Store.
func (s *MemStore) Close() {}

// Entries returns a snapshot of all appended entries, optionally filtered by
// session id ("" matches all).
func (s *MemStore) Entries(sessionID string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if sessionID == "" || e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

var _ Store = (*MemStore)(nil)
