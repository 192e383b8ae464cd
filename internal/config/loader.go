package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// validProviderNames lists known provider names per pipeline stage, used by
// [Validate] to reject typos early.
var validProviderNames = map[string][]string{
	"stt": {"deepgram"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
	"tts": {"elevenlabs"},
}

// Defaults applied by [ApplyDefaults] when the corresponding field is unset.
const (
	DefaultListenAddr       = ":8080"
	DefaultDebounce         = 100 * time.Millisecond
	DefaultMinAudioDuration = 500 * time.Millisecond
	DefaultTextQueueBound   = 50
	DefaultAudioQueueBound  = 20
	DefaultCallTimeout      = 30 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Pipeline.Debounce <= 0 {
		cfg.Pipeline.Debounce = DefaultDebounce
	}
	if cfg.Pipeline.MinAudioDuration <= 0 {
		cfg.Pipeline.MinAudioDuration = DefaultMinAudioDuration
	}
	if cfg.Pipeline.TextQueueBound <= 0 {
		cfg.Pipeline.TextQueueBound = DefaultTextQueueBound
	}
	if cfg.Pipeline.AudioQueueBound <= 0 {
		cfg.Pipeline.AudioQueueBound = DefaultAudioQueueBound
	}
	if cfg.Pipeline.STTTimeout <= 0 {
		cfg.Pipeline.STTTimeout = DefaultCallTimeout
	}
	if cfg.Pipeline.TTSTimeout <= 0 {
		cfg.Pipeline.TTSTimeout = DefaultCallTimeout
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if err := validateProviderName("stt", cfg.Providers.STT.Name); err != nil {
		errs = append(errs, err)
	}
	if err := validateProviderName("llm", cfg.Providers.LLM.Name); err != nil {
		errs = append(errs, err)
	}
	if err := validateProviderName("tts", cfg.Providers.TTS.Name); err != nil {
		errs = append(errs, err)
	}

	if sf := cfg.Agent.Voice.SpeedFactor; sf != 0 && (sf < 0.5 || sf > 2.0) {
		errs = append(errs, fmt.Errorf("agent.voice.speed_factor %.2f is out of range [0.5, 2.0]", sf))
	}

	for i, s := range cfg.MCP.Servers {
		prefix := fmt.Sprintf("mcp.servers[%d]", i)
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		switch s.Transport {
		case "stdio":
			if s.Command == "" {
				errs = append(errs, fmt.Errorf("%s.command is required for stdio transport", prefix))
			}
		case "streamable-http":
			if s.URL == "" {
				errs = append(errs, fmt.Errorf("%s.url is required for streamable-http transport", prefix))
			}
		default:
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, s.Transport))
		}
	}

	return errors.Join(errs...)
}

// validateProviderName rejects unknown provider names. An empty name is
// allowed and means "stage disabled" (useful for tests and dry runs).
func validateProviderName(kind, name string) error {
	if name == "" {
		return nil
	}
	for _, known := range validProviderNames[kind] {
		if name == known {
			return nil
		}
	}
	return fmt.Errorf("providers.%s.name %q is not a known provider; valid values: %v", kind, name, validProviderNames[kind])
}
