// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Text is the sentence passed to Synthesize.
	Text string
	// Voice is the voice configuration passed to Synthesize.
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider.
// By default Synthesize echoes the input text as audio bytes, which lets
// tests assert on frame contents without decoding.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio, when non-nil, is returned for every call instead of the echoed
	// text.
	Audio []byte

	// Err, if non-nil, is returned as the error from Synthesize.
	Err error

	// ErrOnText, when non-empty, makes only calls with this exact text fail
	// with Err (or a default error); other calls succeed. Lets tests exercise
	// the skip-failed-sentence path.
	ErrOnText string

	// Delay, when set, is invoked before returning so tests can simulate a
	// slow provider.
	Delay func()

	// --- Call records (read after test) ---

	// Calls records every invocation of Synthesize in order.
	Calls []SynthesizeCall
}

// errSynthesis is the default injected failure for ErrOnText matches.
type errSynthesis struct{}

func (errSynthesis) Error() string { return "mock: synthesis failed" }

// Synthesize records the call and returns the configured audio.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) ([]byte, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})
	audio := p.Audio
	err := p.Err
	errOn := p.ErrOnText
	delay := p.Delay
	p.mu.Unlock()

	if delay != nil {
		delay()
	}

	if errOn != "" {
		if text == errOn {
			if err != nil {
				return nil, err
			}
			return nil, errSynthesis{}
		}
	} else if err != nil {
		return nil, err
	}

	if audio != nil {
		return audio, nil
	}
	return []byte(text), nil
}

// CallCount returns the number of Synthesize invocations so far. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Texts returns the synthesised sentences in call order. Thread-safe.
func (p *Provider) Texts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Text
	}
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
