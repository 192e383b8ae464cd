package transcript

import (
	"context"
	"testing"
	"time"
)

func TestMemStoreAppendAndFilter(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	ctx := context.Background()

	entries := []Entry{
		{SessionID: "a", Role: "user", Content: "Hello there", Timestamp: time.Now()},
		{SessionID: "a", Role: "agent", Content: "Hi! How can I help?", GenerationID: 1, Timestamp: time.Now()},
		{SessionID: "b", Role: "user", Content: "unrelated", Timestamp: time.Now()},
	}
	for _, e := range entries {
		if err := s.Append(ctx, e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got := s.Entries("a")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Role != "user" || got[1].Role != "agent" {
		t.Errorf("roles = %q, %q", got[0].Role, got[1].Role)
	}
	if got[1].GenerationID != 1 {
		t.Errorf("generation id = %d, want 1", got[1].GenerationID)
	}

	if all := s.Entries(""); len(all) != 3 {
		t.Errorf("unfiltered len = %d, want 3", len(all))
	}
}

func TestMemStorePing(t *testing.T) {
	t.Parallel()

	s := NewMemStore()
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
