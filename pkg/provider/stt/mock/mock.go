// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Audio is the buffer passed to Transcribe.
	Audio []byte
}

// Provider is a mock implementation of stt.Provider.
// Zero values cause Transcribe to return ("", nil).
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Transcript is returned by every Transcribe call. When Transcripts is
	// non-empty it takes precedence.
	Transcript string

	// Transcripts, when non-empty, is consumed one entry per call; the last
	// entry repeats once exhausted.
	Transcripts []string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Delay, when set, is invoked before returning so tests can simulate a
	// slow provider.
	Delay func()

	// --- Call records (read after test) ---

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Transcribe records the call and returns the configured transcript.
func (p *Provider) Transcribe(ctx context.Context, audio []byte) (string, error) {
	p.mu.Lock()
	buf := make([]byte, len(audio))
	copy(buf, audio)
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Audio: buf})
	n := len(p.Calls)

	out := p.Transcript
	if len(p.Transcripts) > 0 {
		idx := n - 1
		if idx >= len(p.Transcripts) {
			idx = len(p.Transcripts) - 1
		}
		out = p.Transcripts[idx]
	}
	err := p.Err
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		delay()
	}
	if err != nil {
		return "", err
	}
	return out, nil
}

// CallCount returns the number of Transcribe invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)
