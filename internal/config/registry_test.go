package config

import (
	"errors"
	"testing"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts"
)

func TestDefaultRegistryCreatesProviders(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	fc := FactoryContext{MinAudioDuration: 300 * time.Millisecond, TTSTimeout: 20 * time.Second}

	if _, err := r.CreateSTT(ProviderEntry{Name: "deepgram", APIKey: "dg", Model: "nova-2"}, fc); err != nil {
		t.Errorf("deepgram: %v", err)
	}
	if _, err := r.CreateLLM(ProviderEntry{Name: "openai", APIKey: "sk", Model: "gpt-4o-mini"}, fc); err != nil {
		t.Errorf("openai: %v", err)
	}
	if _, err := r.CreateTTS(ProviderEntry{Name: "elevenlabs", APIKey: "el"}, fc); err != nil {
		t.Errorf("elevenlabs: %v", err)
	}
}

func TestRegistryUnknownProvider(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()
	if _, err := r.CreateSTT(ProviderEntry{Name: "nope"}, FactoryContext{}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateLLM(ProviderEntry{Name: ""}, FactoryContext{}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistryOverride(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	called := false
	r.RegisterTTS("custom", func(ProviderEntry, FactoryContext) (tts.Provider, error) {
		called = true
		return nil, nil
	})
	if _, err := r.CreateTTS(ProviderEntry{Name: "custom"}, FactoryContext{}); err != nil {
		t.Fatalf("CreateTTS: %v", err)
	}
	if !called {
		t.Error("registered factory never invoked")
	}
}
