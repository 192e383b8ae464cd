package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestJobQueueOrder(t *testing.T) {
	t.Parallel()

	q := newJobQueue()
	q.Push([]byte("a"))
	q.Push([]byte("b"))
	q.Push([]byte("c"))

	for _, want := range []string{"a", "b", "c"} {
		buf, ok := q.Pop(context.Background())
		if !ok || string(buf) != want {
			t.Fatalf("Pop = (%q, %v), want %q", buf, ok, want)
		}
	}
}

func TestJobQueuePopBlocksUntilPush(t *testing.T) {
	t.Parallel()

	q := newJobQueue()
	got := make(chan []byte, 1)
	go func() {
		buf, _ := q.Pop(context.Background())
		got <- buf
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push([]byte("late"))

	select {
	case buf := <-got:
		if string(buf) != "late" {
			t.Errorf("Pop = %q", buf)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned")
	}
}

func TestJobQueueDrain(t *testing.T) {
	t.Parallel()

	q := newJobQueue()
	q.Push([]byte("a"))
	q.Push([]byte("b"))

	if n := q.Drain(); n != 2 {
		t.Errorf("Drain = %d, want 2", n)
	}
	if n := q.Drain(); n != 0 {
		t.Errorf("second Drain = %d, want 0", n)
	}
}

func TestJobQueueCloseUnblocksPop(t *testing.T) {
	t.Parallel()

	q := newJobQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(context.Background())
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop after Close should report ok=false")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop never returned after Close")
	}

	// Push after Close is ignored.
	q.Push([]byte("x"))
	if _, ok := q.Pop(context.Background()); ok {
		t.Error("Pop returned an item pushed after Close")
	}
}

func TestJobQueuePopRespectsContext(t *testing.T) {
	t.Parallel()

	q := newJobQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Pop(ctx); ok {
		t.Error("Pop with cancelled context should report ok=false")
	}
}

func TestGatePauseAndResume(t *testing.T) {
	t.Parallel()

	g := newGate()
	if !g.Wait(context.Background()) {
		t.Fatal("new gate should be open")
	}

	g.Shut()
	passed := make(chan struct{})
	go func() {
		g.Wait(context.Background())
		close(passed)
	}()

	select {
	case <-passed:
		t.Fatal("waiter passed through a shut gate")
	case <-time.After(30 * time.Millisecond):
	}

	g.Open()
	select {
	case <-passed:
	case <-time.After(time.Second):
		t.Fatal("waiter stuck after gate reopened")
	}

	// Idempotent in both directions.
	g.Open()
	g.Shut()
	g.Shut()
	g.Open()
	if !g.Wait(context.Background()) {
		t.Error("gate should be open after final Open")
	}
}

func TestGateWaitRespectsContext(t *testing.T) {
	t.Parallel()

	g := newGate()
	g.Shut()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if g.Wait(ctx) {
		t.Error("Wait with cancelled context should return false")
	}
}

func TestDrainSentencesFreesBlockedProducer(t *testing.T) {
	t.Parallel()

	ch := make(chan sentence, 2)
	ch <- sentence{gen: 1, text: "a"}
	ch <- sentence{gen: 1, text: "b"}

	if n := drainSentences(ch); n != 2 {
		t.Errorf("drained %d, want 2", n)
	}
	if n := drainSentences(ch); n != 0 {
		t.Errorf("second drain = %d, want 0", n)
	}

	ch2 := make(chan frame, 1)
	ch2 <- frame{gen: 1}
	if n := drainFrames(ch2); n != 1 {
		t.Errorf("drainFrames = %d, want 1", n)
	}
}
