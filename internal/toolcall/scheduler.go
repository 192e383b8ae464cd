package toolcall

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Scheduler hosts long-running tool bodies that must outlive the synchronous
// LLM tool-call return. It is a single process-wide service shared by all
// sessions: tool bodies cannot run on a session's coordinator without
// blocking it, so they run here.
//
// Bodies receive a context derived from the scheduler's lifetime and must
// observe it between I/O steps. Close cancels that context and waits for all
// bodies to finish (bounded by the drain timeout).
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	log    *slog.Logger

	// drainTimeout bounds how long Close waits for running bodies.
	drainTimeout time.Duration
}

// NewScheduler creates a running Scheduler. log may be nil.
func NewScheduler(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)
	return &Scheduler{
		ctx:          ctx,
		cancel:       cancel,
		group:        g,
		log:          log,
		drainTimeout: 10 * time.Second,
	}
}

// Go launches body on the scheduler. The supplied context is cancelled when
// the scheduler shuts down; the body's own cancellation (via its registry
// entry) is layered on top by the caller. Errors are logged, not propagated —
// a failed tool body must not affect other sessions' tools.
func (s *Scheduler) Go(name string, body func(ctx context.Context) error) {
	s.group.Go(func() error {
		if err := body(s.ctx); err != nil && s.ctx.Err() == nil {
			s.log.Warn("background tool body failed", "tool", name, "error", err)
		}
		return nil
	})
}

// Close cancels all running bodies and waits for them to exit, up to the
// drain timeout.
func (s *Scheduler) Close() {
	s.cancel()

	done := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.drainTimeout):
		s.log.Warn("scheduler drain timed out; abandoning remaining tool bodies")
	}
}
