package config

import (
	"strings"
	"testing"
	"time"
)

const fullConfig = `
server:
  listen_addr: ":9000"
  log_level: debug
providers:
  stt:
    name: deepgram
    api_key: dg-key
    model: nova-2
    options:
      language: en
  llm:
    name: openai
    api_key: sk-key
    model: gpt-4o-mini
  tts:
    name: elevenlabs
    api_key: el-key
    model: eleven_turbo_v2_5
    options:
      voice_id: some-voice
pipeline:
  debounce: 150ms
  min_audio_duration: 300ms
  text_queue_bound: 64
  audio_queue_bound: 32
  stt_timeout: 20s
  tts_timeout: 25s
agent:
  system_prompt: "You are a helpful voice assistant."
  temperature: 0.7
  tools_enabled: true
  voice:
    id: some-voice
    speed_factor: 1.1
backchannels: ["roger", "copy that"]
transcript:
  postgres_dsn: "postgres://localhost/voicebot"
mcp:
  servers:
    - name: files
      transport: stdio
      command: "mcp-files --root /tmp"
    - name: search
      transport: streamable-http
      url: "http://localhost:9100/mcp"
`

func TestLoadFullConfig(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" || cfg.Server.LogLevel != LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.STT.Options["language"] != "en" {
		t.Errorf("stt = %+v", cfg.Providers.STT)
	}
	if cfg.Pipeline.Debounce != 150*time.Millisecond {
		t.Errorf("debounce = %v", cfg.Pipeline.Debounce)
	}
	if cfg.Pipeline.TextQueueBound != 64 || cfg.Pipeline.AudioQueueBound != 32 {
		t.Errorf("queue bounds = %d/%d", cfg.Pipeline.TextQueueBound, cfg.Pipeline.AudioQueueBound)
	}
	if !cfg.Agent.ToolsEnabled || cfg.Agent.Temperature != 0.7 {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if len(cfg.Backchannels) != 2 || cfg.Backchannels[0] != "roger" {
		t.Errorf("backchannels = %v", cfg.Backchannels)
	}
	if len(cfg.MCP.Servers) != 2 {
		t.Fatalf("mcp servers = %d", len(cfg.MCP.Servers))
	}
	bridge := cfg.MCP.Servers[0].ToBridgeConfig()
	if bridge.Transport != "stdio" || bridge.Command != "mcp-files --root /tmp" {
		t.Errorf("bridge config = %+v", bridge)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("server: {}\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != DefaultListenAddr {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("log_level = %q", cfg.Server.LogLevel)
	}
	if cfg.Pipeline.Debounce != DefaultDebounce {
		t.Errorf("debounce = %v", cfg.Pipeline.Debounce)
	}
	if cfg.Pipeline.MinAudioDuration != DefaultMinAudioDuration {
		t.Errorf("min_audio_duration = %v", cfg.Pipeline.MinAudioDuration)
	}
	if cfg.Pipeline.TextQueueBound != DefaultTextQueueBound || cfg.Pipeline.AudioQueueBound != DefaultAudioQueueBound {
		t.Errorf("queue bounds = %d/%d", cfg.Pipeline.TextQueueBound, cfg.Pipeline.AudioQueueBound)
	}
	if cfg.Pipeline.STTTimeout != DefaultCallTimeout || cfg.Pipeline.TTSTimeout != DefaultCallTimeout {
		t.Errorf("timeouts = %v/%v", cfg.Pipeline.STTTimeout, cfg.Pipeline.TTSTimeout)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()

	if _, err := LoadFromReader(strings.NewReader("serverr:\n  listen_addr: \":1\"\n")); err == nil {
		t.Error("expected error for unknown top-level field")
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	bad := `
server:
  log_level: loud
providers:
  stt:
    name: whisperx
agent:
  voice:
    speed_factor: 3.5
mcp:
  servers:
    - name: ""
      transport: carrier-pigeon
`
	_, err := LoadFromReader(strings.NewReader(bad))
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log_level", "whisperx", "speed_factor", "transport", "name is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestValidateMCPTransportRequirements(t *testing.T) {
	t.Parallel()

	stdioNoCmd := `
mcp:
  servers:
    - name: files
      transport: stdio
`
	if _, err := LoadFromReader(strings.NewReader(stdioNoCmd)); err == nil || !strings.Contains(err.Error(), "command is required") {
		t.Errorf("stdio without command: %v", err)
	}

	httpNoURL := `
mcp:
  servers:
    - name: search
      transport: streamable-http
`
	if _, err := LoadFromReader(strings.NewReader(httpNoURL)); err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("streamable-http without url: %v", err)
	}
}

func TestCompareDiff(t *testing.T) {
	t.Parallel()

	old := &Config{
		Server:       ServerConfig{LogLevel: LogInfo},
		Agent:        AgentConfig{SystemPrompt: "old prompt"},
		Backchannels: []string{"okay"},
	}
	new := &Config{
		Server:       ServerConfig{LogLevel: LogDebug},
		Agent:        AgentConfig{SystemPrompt: "new prompt"},
		Backchannels: []string{"okay", "roger"},
	}

	d := Compare(old, new)
	if !d.Any() {
		t.Fatal("expected changes")
	}
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level diff = %+v", d)
	}
	if !d.SystemPromptChanged || d.NewSystemPrompt != "new prompt" {
		t.Errorf("system prompt diff = %+v", d)
	}
	if !d.BackchannelsChanged || len(d.NewBackchannels) != 2 {
		t.Errorf("backchannel diff = %+v", d)
	}

	if d := Compare(new, new); d.Any() {
		t.Errorf("identical configs produced diff %+v", d)
	}
}
