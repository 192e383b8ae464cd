// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a batch transcription service (e.g., Deepgram's
// prerecorded API) and exposes a uniform interface: one complete utterance
// buffer in, one transcript out. The client performs voice-activity detection
// and uploads a full utterance per request, so there is no streaming session
// to manage.
//
// Implementations must be safe for concurrent use and must never treat small
// or undecodable audio as an error — such buffers produce an empty transcript.
package stt

import (
	"context"
	"time"
)

// DefaultTimeout is the per-call deadline applied by callers that do not
// configure one.
const DefaultTimeout = 30 * time.Second

// Provider is the abstraction over any batch STT backend.
//
// Transcribe converts a complete encoded utterance into text. The container
// format is auto-detected from the buffer. An empty string result means "no
// speech detected" and is a normal outcome, not an error; errors are reserved
// for transport or credential failures.
type Provider interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
