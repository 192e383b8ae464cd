// Package config provides the configuration schema, loader, and provider
// registry for the voicebot server.
package config

import (
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/toolcall"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Providers    ProvidersConfig  `yaml:"providers"`
	Pipeline     PipelineConfig   `yaml:"pipeline"`
	Agent        AgentConfig      `yaml:"agent"`
	Backchannels []string         `yaml:"backchannels"`
	Transcript   TranscriptConfig `yaml:"transcript"`
	MCP          MCPConfig        `yaml:"mcp"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares which provider implementation to use for each
// external pipeline stage. Each field selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	LLM ProviderEntry `yaml:"llm"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai",
	// "deepgram", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API, if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g.,
	// "gpt-4o-mini", "nova-2", "eleven_turbo_v2_5").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// PipelineConfig tunes the session pipeline.
type PipelineConfig struct {
	// Debounce is how long the decision step waits for further transcripts
	// before acting. Default 100ms.
	Debounce time.Duration `yaml:"debounce"`

	// MinAudioDuration suppresses STT calls for utterances shorter than
	// this; they return an empty transcript. Default 500ms.
	MinAudioDuration time.Duration `yaml:"min_audio_duration"`

	// TextQueueBound is the sentence queue capacity between the agent
	// runner and the TTS worker. Default 50.
	TextQueueBound int `yaml:"text_queue_bound"`

	// AudioQueueBound is the frame queue capacity between the TTS worker
	// and the playback dispatcher. Default 20.
	AudioQueueBound int `yaml:"audio_queue_bound"`

	// STTTimeout and TTSTimeout bound each external call. Default 30s.
	STTTimeout time.Duration `yaml:"stt_timeout"`
	TTSTimeout time.Duration `yaml:"tts_timeout"`
}

// AgentConfig shapes the LLM side of the conversation.
type AgentConfig struct {
	// SystemPrompt is injected into every LLM request.
	SystemPrompt string `yaml:"system_prompt"`

	// Temperature is the LLM sampling temperature.
	Temperature float64 `yaml:"temperature"`

	// ToolsEnabled offers the tool catalog to the LLM.
	ToolsEnabled bool `yaml:"tools_enabled"`

	// Voice configures the TTS voice.
	Voice VoiceConfig `yaml:"voice"`
}

// VoiceConfig specifies the TTS voice parameters.
type VoiceConfig struct {
	// ID is the provider-specific voice identifier.
	ID string `yaml:"id"`

	// SpeedFactor adjusts speaking speed. 1.0 is normal; valid range is
	// [0.5, 2.0]. Zero means provider default.
	SpeedFactor float64 `yaml:"speed_factor"`
}

// TranscriptConfig controls the conversation archive.
type TranscriptConfig struct {
	// PostgresDSN enables archiving committed turns to Postgres. Empty
	// disables the archive.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// MCPConfig lists external MCP servers whose tools are imported into the
// tool catalog at startup.
type MCPConfig struct {
	Servers []MCPServer `yaml:"servers"`
}

// MCPServer describes one external MCP tool server.
type MCPServer struct {
	// Name identifies the server in logs and tool metadata.
	Name string `yaml:"name"`

	// Transport selects how to reach the server: "stdio" or
	// "streamable-http".
	Transport string `yaml:"transport"`

	// Command is the executable plus space-separated arguments for stdio
	// transport.
	Command string `yaml:"command"`

	// URL is the endpoint for streamable-http transport.
	URL string `yaml:"url"`

	// Env holds extra environment variables for stdio servers.
	Env map[string]string `yaml:"env"`
}

// ToBridgeConfig converts the YAML block into the toolcall package's server
// description.
func (s MCPServer) ToBridgeConfig() toolcall.MCPServerConfig {
	return toolcall.MCPServerConfig{
		Name:      s.Name,
		Transport: s.Transport,
		Command:   s.Command,
		URL:       s.URL,
		Env:       s.Env,
	}
}
