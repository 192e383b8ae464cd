// Package toolcall implements the tool execution layer: a process-wide
// registry of in-flight tool executions, a background scheduler that hosts
// tool bodies which outlive their synchronous LLM return, a catalog mapping
// tool names to implementations, and a bridge that imports external MCP
// servers into that catalog.
//
// The registry and scheduler are shared by all sessions; both are internally
// synchronised and expose narrow APIs.
package toolcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/observe"
)

// noCtx is used for gauge updates that have no request context.
var noCtx = context.Background()

// entry holds all metadata for a single registered in-flight tool.
type entry struct {
	name         string
	startedAt    time.Time
	cancelFn     func()
	metadata     map[string]string
	isComplete   bool
	wasCancelled bool
}

// Snapshot is a read-only copy of a registry entry.
type Snapshot struct {
	ID           string
	Name         string
	StartedAt    time.Time
	Metadata     map[string]string
	WasCancelled bool
}

// Registry tracks every in-flight tool execution across all sessions so that
// an interruption or disconnect can cancel them. Each live entry owns a
// cancellation callback that fires exactly once.
//
// All operations are serialised by an internal mutex; cancellation callbacks
// are scheduled onto their own goroutine so a callback that re-enters the
// registry cannot deadlock against the lock.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	log     *slog.Logger
	metrics *observe.Metrics
}

// NewRegistry creates an empty Registry. log and metrics may be nil.
func NewRegistry(log *slog.Logger, metrics *observe.Metrics) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		entries: make(map[string]*entry),
		log:     log,
		metrics: metrics,
	}
}

// Register inserts a new in-flight tool entry and returns its freshly
// generated id. cancelFn is invoked (at most once, on its own goroutine) if
// the entry is cancelled before Unregister.
func (r *Registry) Register(name string, cancelFn func(), metadata map[string]string) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.entries[id] = &entry{
		name:      name,
		startedAt: time.Now(),
		cancelFn:  cancelFn,
		metadata:  metadata,
	}
	n := len(r.entries)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.ActiveTools.Add(noCtx, 1)
	}
	r.log.Debug("tool registered", "tool", name, "tool_id", id, "active", n)
	return id
}

// Unregister marks the entry complete and removes it. Unknown ids are a
// no-op, so a tool body may unregister unconditionally in a defer.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		e.isComplete = true
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if ok && r.metrics != nil {
		r.metrics.ActiveTools.Add(noCtx, -1)
	}
}

// Cancel fires the entry's cancellation callback. It is idempotent: cancelling
// an already-cancelled, completed, or unknown entry returns false and has no
// effect.
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok || e.isComplete || e.wasCancelled {
		r.mu.Unlock()
		return false
	}
	e.wasCancelled = true
	fn := e.cancelFn
	name := e.name
	r.mu.Unlock()

	r.log.Debug("tool cancelled", "tool", name, "tool_id", id)
	if fn != nil {
		go fn()
	}
	return true
}

// CancelAll cancels every live entry and returns how many callbacks fired.
// Each entry's callback is invoked exactly once even when CancelAll races
// with Cancel.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	var fns []func()
	for id, e := range r.entries {
		if e.isComplete || e.wasCancelled {
			continue
		}
		e.wasCancelled = true
		if e.cancelFn != nil {
			fns = append(fns, e.cancelFn)
		}
		r.log.Debug("tool cancelled", "tool", e.name, "tool_id", id)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		go fn()
	}
	return len(fns)
}

// List returns a snapshot of all live entries.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Snapshot, 0, len(r.entries))
	for id, e := range r.entries {
		md := make(map[string]string, len(e.metadata))
		for k, v := range e.metadata {
			md[k] = v
		}
		out = append(out, Snapshot{
			ID:           id,
			Name:         e.name,
			StartedAt:    e.startedAt,
			Metadata:     md,
			WasCancelled: e.wasCancelled,
		})
	}
	return out
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
