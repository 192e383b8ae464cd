// Package tools provides the built-in conversational tools offered to the
// LLM: account-balance lookup, statement emailing, and a clock. The two
// banking tools demonstrate the async-tool pattern — they return a tracking
// summary immediately and keep working on the background scheduler, with
// compensating cleanup if an interruption cancels them mid-flight.
package tools

import (
	"context"
	"sync"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/toolcall"
)

// trackingIDLen is how many characters of the tool id are exposed to the
// user as a tracking handle.
const trackingIDLen = 8

// runAsync registers a background tool execution and launches body on the
// scheduler. It returns the registry id; the first 8 characters serve as the
// user-facing tracking handle.
//
// The body's context is cancelled when either the registry entry is
// cancelled (interruption, disconnect) or the scheduler shuts down. The body
// must observe ctx between steps and perform its compensating action before
// returning; runAsync unregisters the entry when the body exits.
func runAsync(reg *toolcall.Registry, sched *toolcall.Scheduler, name string, metadata map[string]string, body func(ctx context.Context) error) string {
	cancelled := make(chan struct{})
	var once sync.Once
	cancelFn := func() {
		once.Do(func() { close(cancelled) })
	}

	id := reg.Register(name, cancelFn, metadata)

	sched.Go(name, func(schedCtx context.Context) error {
		defer reg.Unregister(id)

		ctx, cancel := context.WithCancel(schedCtx)
		defer cancel()
		go func() {
			select {
			case <-cancelled:
				cancel()
			case <-ctx.Done():
			}
		}()

		return body(ctx)
	})

	return id
}

// trackingID shortens a registry id to its user-facing handle.
func trackingID(id string) string {
	if len(id) <= trackingIDLen {
		return id
	}
	return id[:trackingIDLen]
}
