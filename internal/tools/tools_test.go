package tools

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/toolcall"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	sched := toolcall.NewScheduler(nil)
	t.Cleanup(sched.Close)
	return Deps{
		Registry:  toolcall.NewRegistry(nil, nil),
		Scheduler: sched,
		Log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		StepDelay: 10 * time.Millisecond,
	}
}

func TestCheckAccountBalanceReturnsTrackingID(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	result := make(chan string, 1)
	tool := &CheckAccountBalance{deps: deps, OnResult: func(r string) { result <- r }}

	summary, err := tool.Invoke(context.Background(), `{"account_id":"ACC-42"}`)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(summary, "tracking_id=") {
		t.Errorf("summary missing tracking id: %q", summary)
	}
	if !strings.Contains(summary, "ACC-42") {
		t.Errorf("summary missing account id: %q", summary)
	}

	// The summary returns before the lookup finishes.
	if deps.Registry.Len() != 1 {
		t.Errorf("registry len = %d, want 1 while lookup in flight", deps.Registry.Len())
	}

	select {
	case r := <-result:
		if !strings.Contains(r, "ACC-42") {
			t.Errorf("result = %q", r)
		}
	case <-time.After(time.Second):
		t.Fatal("lookup never completed")
	}
}

func TestCheckAccountBalanceRejectsBadArgs(t *testing.T) {
	t.Parallel()

	tool := &CheckAccountBalance{deps: testDeps(t)}
	if _, err := tool.Invoke(context.Background(), `not json`); err == nil {
		t.Error("expected error for malformed args")
	}
	if _, err := tool.Invoke(context.Background(), `{}`); err == nil {
		t.Error("expected error for missing account_id")
	}
}

func TestEmailStatementCancelCompensates(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	deps.StepDelay = 50 * time.Millisecond

	var delivered atomic.Bool
	compensated := make(chan struct{}, 1)
	tool := &EmailStatement{
		deps: deps,
		Deliver: func(ctx context.Context, email string) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			delivered.Store(true)
			return nil
		},
		OnCompensate: func() { compensated <- struct{}{} },
	}

	if _, err := tool.Invoke(context.Background(), `{"email":"user@example.com"}`); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	// Let the run pass the reservation step, then cancel it mid-flight.
	time.Sleep(60 * time.Millisecond)
	if n := deps.Registry.CancelAll(); n != 1 {
		t.Fatalf("CancelAll = %d, want 1", n)
	}

	select {
	case <-compensated:
	case <-time.After(time.Second):
		t.Fatal("cancelled run never released its reservation")
	}
	if delivered.Load() {
		t.Error("statement was delivered despite cancellation")
	}
}

func TestEmailStatementDeliversWhenUninterrupted(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	delivered := make(chan string, 1)
	tool := &EmailStatement{
		deps: deps,
		Deliver: func(ctx context.Context, email string) error {
			delivered <- email
			return nil
		},
		OnCompensate: func() { t.Error("compensation fired on a clean run") },
	}

	summary, err := tool.Invoke(context.Background(), `{"email":"user@example.com"}`)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(summary, "tracking_id=") {
		t.Errorf("summary missing tracking id: %q", summary)
	}

	select {
	case email := <-delivered:
		if email != "user@example.com" {
			t.Errorf("delivered to %q", email)
		}
	case <-time.After(time.Second):
		t.Fatal("statement never delivered")
	}
}

func TestEmailStatementUnregistersAfterRun(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	done := make(chan struct{}, 1)
	tool := &EmailStatement{
		deps: deps,
		Deliver: func(context.Context, string) error {
			done <- struct{}{}
			return nil
		},
	}

	if _, err := tool.Invoke(context.Background(), `{"email":"a@b.c"}`); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	<-done

	deadline := time.Now().Add(time.Second)
	for deps.Registry.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("registry len = %d, want 0 after completion", deps.Registry.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGetCurrentTime(t *testing.T) {
	t.Parallel()

	deps := testDeps(t)
	fixed := time.Date(2025, time.March, 14, 15, 9, 0, 0, time.UTC)
	tool := &GetCurrentTime{deps: deps, Now: func() time.Time { return fixed }}

	got, err := tool.Invoke(context.Background(), "{}")
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if !strings.Contains(got, "March 14, 2025") {
		t.Errorf("got %q", got)
	}
	if deps.Registry.Len() != 0 {
		t.Errorf("registry len = %d after synchronous tool, want 0", deps.Registry.Len())
	}
}

func TestRegisterAll(t *testing.T) {
	t.Parallel()

	c := toolcall.NewCatalog()
	RegisterAll(c, testDeps(t))

	defs := c.Definitions()
	if len(defs) != 3 {
		t.Fatalf("len = %d, want 3", len(defs))
	}
	want := []string{"check_account_balance", "email_statement", "get_current_time"}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("defs[%d] = %q, want %q", i, defs[i].Name, name)
		}
	}
}
