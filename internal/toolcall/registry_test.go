package toolcall

import (
	"sync"
	"testing"
	"time"
)

func TestRegisterAndUnregister(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)

	id := r.Register("email_statement", func() {}, map[string]string{"email": "a@b.c"})
	if id == "" {
		t.Fatal("empty tool id")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}

	snaps := r.List()
	if len(snaps) != 1 || snaps[0].Name != "email_statement" {
		t.Fatalf("snapshot = %+v", snaps)
	}
	if snaps[0].Metadata["email"] != "a@b.c" {
		t.Errorf("metadata = %v", snaps[0].Metadata)
	}

	r.Unregister(id)
	if r.Len() != 0 {
		t.Errorf("len after unregister = %d, want 0", r.Len())
	}

	// Unregistering twice is a no-op.
	r.Unregister(id)
}

func TestCancelFiresCallbackOnce(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)

	fired := make(chan struct{}, 2)
	id := r.Register("check_account_balance", func() { fired <- struct{}{} }, nil)

	if !r.Cancel(id) {
		t.Fatal("first Cancel should return true")
	}
	if r.Cancel(id) {
		t.Error("second Cancel should return false")
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("cancel callback never fired")
	}
	select {
	case <-fired:
		t.Fatal("cancel callback fired twice")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCancelUnknownID(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)
	if r.Cancel("no-such-id") {
		t.Error("Cancel of unknown id should return false")
	}
}

func TestCancelAll(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)

	var mu sync.Mutex
	firedCount := map[string]int{}
	done := make(chan struct{}, 3)

	for _, name := range []string{"a", "b", "c"} {
		name := name
		r.Register(name, func() {
			mu.Lock()
			firedCount[name]++
			mu.Unlock()
			done <- struct{}{}
		}, nil)
	}

	if n := r.CancelAll(); n != 3 {
		t.Fatalf("CancelAll = %d, want 3", n)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("not all cancel callbacks fired")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for name, n := range firedCount {
		if n != 1 {
			t.Errorf("tool %q cancel fired %d times, want 1", name, n)
		}
	}

	// All entries were already cancelled; a second sweep fires nothing.
	if n := r.CancelAll(); n != 0 {
		t.Errorf("second CancelAll = %d, want 0", n)
	}
}

func TestCancelCallbackMayReenterRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)

	done := make(chan struct{})
	var id string
	id = r.Register("self_cleanup", func() {
		// Re-entering the registry from the callback must not deadlock.
		r.Unregister(id)
		close(done)
	}, nil)

	r.Cancel(id)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("re-entrant cancel callback deadlocked")
	}
}

func TestCancelAfterComplete(t *testing.T) {
	t.Parallel()

	r := NewRegistry(nil, nil)
	id := r.Register("fast_tool", func() { t.Error("cancel must not fire after unregister") }, nil)
	r.Unregister(id)
	if r.Cancel(id) {
		t.Error("Cancel after Unregister should return false")
	}
}
