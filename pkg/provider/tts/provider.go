// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider converts one sentence at a time into encoded audio. The
// orchestrator synthesises sentence-by-sentence as the LLM streams, so
// per-call latency matters more than throughput; implementations should keep
// connections warm where the underlying service allows it.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"time"
)

// DefaultTimeout is the per-call deadline applied by callers that do not
// configure one.
const DefaultTimeout = 30 * time.Second

// Voice describes the synthesis voice configuration.
type Voice struct {
	// ID is the provider-specific voice identifier.
	ID string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedFactor float64
}

// Provider is the abstraction over any TTS backend.
//
// Synthesize converts a single sentence into encoded audio bytes (codec is
// provider-specific and opaque to the caller; the client decodes whatever it
// receives). A per-sentence failure is an error the caller may skip past —
// it must not poison subsequent calls.
type Provider interface {
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}
