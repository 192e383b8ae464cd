package config

import (
	"errors"
	"fmt"
	"sync"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm/anyllm"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm/openai"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/stt"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/stt/deepgram"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts/elevenlabs"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// FactoryContext carries pipeline tuning values that factories may fold into
// the providers they build.
type FactoryContext struct {
	MinAudioDuration time.Duration
	STTTimeout       time.Duration
	TTSTimeout       time.Duration
}

// Registry maps provider names to their constructor functions for each
// pipeline stage. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	stt map[string]func(ProviderEntry, FactoryContext) (stt.Provider, error)
	llm map[string]func(ProviderEntry, FactoryContext) (llm.Provider, error)
	tts map[string]func(ProviderEntry, FactoryContext) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: make(map[string]func(ProviderEntry, FactoryContext) (stt.Provider, error)),
		llm: make(map[string]func(ProviderEntry, FactoryContext) (llm.Provider, error)),
		tts: make(map[string]func(ProviderEntry, FactoryContext) (tts.Provider, error)),
	}
}

// RegisterSTT registers an STT provider factory under name. Subsequent calls
// with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry, FactoryContext) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterLLM registers an LLM provider factory under name.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry, FactoryContext) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry, FactoryContext) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateSTT builds the STT provider selected by entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry, fc FactoryContext) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, fc)
}

// CreateLLM builds the LLM provider selected by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry, fc FactoryContext) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, fc)
}

// CreateTTS builds the TTS provider selected by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry, fc FactoryContext) (tts.Provider, error) {
	r.mu.RLock()
	factory, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts %q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry, fc)
}

// DefaultRegistry returns a [Registry] pre-populated with every built-in
// provider implementation.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.RegisterSTT("deepgram", func(e ProviderEntry, fc FactoryContext) (stt.Provider, error) {
		var opts []deepgram.Option
		if e.Model != "" {
			opts = append(opts, deepgram.WithModel(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(e.BaseURL))
		}
		if lang, ok := e.Options["language"].(string); ok && lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if fc.MinAudioDuration > 0 {
			opts = append(opts, deepgram.WithMinAudioDuration(fc.MinAudioDuration))
		}
		return deepgram.New(e.APIKey, opts...)
	})

	// The native OpenAI client gets its own factory; every other LLM
	// backend goes through the any-llm multi-provider layer.
	r.RegisterLLM("openai", func(e ProviderEntry, _ FactoryContext) (llm.Provider, error) {
		var opts []openai.Option
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		return openai.New(e.APIKey, e.Model, opts...)
	})
	for _, name := range []string{"anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"} {
		name := name
		r.RegisterLLM(name, func(e ProviderEntry, _ FactoryContext) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if e.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
			}
			if e.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
			}
			return anyllm.New(name, e.Model, opts...)
		})
	}

	r.RegisterTTS("elevenlabs", func(e ProviderEntry, fc FactoryContext) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if e.Model != "" {
			opts = append(opts, elevenlabs.WithModelID(e.Model))
		}
		if e.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(e.BaseURL))
		}
		if voice, ok := e.Options["voice_id"].(string); ok && voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoiceID(voice))
		}
		if fc.TTSTimeout > 0 {
			opts = append(opts, elevenlabs.WithTimeout(fc.TTSTimeout))
		}
		return elevenlabs.New(e.APIKey, opts...)
	})

	return r
}
