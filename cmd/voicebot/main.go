// Command voicebot is the interruption-aware voice agent server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/config"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/health"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/observe"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/orchestrator"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/prompt"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/server"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/toolcall"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/tools"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/transcript"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voicebot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voicebot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so config hot-reload can adjust it.
	levelVar := new(slog.LevelVar)
	levelVar.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	slog.SetDefault(logger)

	slog.Info("voicebot starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "voicebot"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.DefaultRegistry()
	fc := config.FactoryContext{
		MinAudioDuration: cfg.Pipeline.MinAudioDuration,
		STTTimeout:       cfg.Pipeline.STTTimeout,
		TTSTimeout:       cfg.Pipeline.TTSTimeout,
	}
	sttP, err := reg.CreateSTT(cfg.Providers.STT, fc)
	if err != nil {
		slog.Error("failed to build STT provider", "err", err)
		return 1
	}
	llmP, err := reg.CreateLLM(cfg.Providers.LLM, fc)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}
	ttsP, err := reg.CreateTTS(cfg.Providers.TTS, fc)
	if err != nil {
		slog.Error("failed to build TTS provider", "err", err)
		return 1
	}

	// ── Tooling ───────────────────────────────────────────────────────────────
	toolRegistry := toolcall.NewRegistry(logger, metrics)
	scheduler := toolcall.NewScheduler(logger)
	defer scheduler.Close()
	catalog := toolcall.NewCatalog()

	if cfg.Agent.ToolsEnabled {
		tools.RegisterAll(catalog, tools.Deps{
			Registry:  toolRegistry,
			Scheduler: scheduler,
			Log:       logger,
		})

		bridge := toolcall.NewMCPBridge(toolRegistry)
		defer func() {
			if err := bridge.Close(); err != nil {
				slog.Warn("mcp bridge close error", "err", err)
			}
		}()
		for _, mcpSrv := range cfg.MCP.Servers {
			if err := bridge.Import(ctx, catalog, mcpSrv.ToBridgeConfig()); err != nil {
				slog.Warn("mcp server import failed, continuing without it",
					"server", mcpSrv.Name, "err", err)
			}
		}
		slog.Info("tool catalog ready", "tools", catalog.Len())
	}

	// ── Transcript archive ────────────────────────────────────────────────────
	var checkers []health.Checker
	var archive transcript.Store
	if dsn := cfg.Transcript.PostgresDSN; dsn != "" {
		pg, err := transcript.NewPostgresStore(ctx, dsn)
		if err != nil {
			slog.Error("failed to open transcript store", "err", err)
			return 1
		}
		defer pg.Close()
		archive = pg
		checkers = append(checkers, health.Checker{Name: "transcript_store", Check: pg.Ping})
	}

	// ── Session factory ───────────────────────────────────────────────────────
	agent := newAgentSettings(cfg)
	factory := func(id string, client orchestrator.Client) *orchestrator.Orchestrator {
		systemPrompt, prompter := agent.snapshot()
		return orchestrator.New(id, client, sttP, llmP, ttsP,
			orchestrator.WithLogger(logger),
			orchestrator.WithMetrics(metrics),
			orchestrator.WithTools(catalog, toolRegistry),
			orchestrator.WithPromptGenerator(prompter),
			orchestrator.WithTranscriptStore(archive),
			orchestrator.WithVoice(tts.Voice{
				ID:          cfg.Agent.Voice.ID,
				SpeedFactor: cfg.Agent.Voice.SpeedFactor,
			}),
			orchestrator.WithSystemPrompt(systemPrompt),
			orchestrator.WithTemperature(cfg.Agent.Temperature),
			orchestrator.WithDebounce(cfg.Pipeline.Debounce),
			orchestrator.WithTimeouts(cfg.Pipeline.STTTimeout, cfg.Pipeline.TTSTimeout),
			orchestrator.WithQueueBounds(cfg.Pipeline.TextQueueBound, cfg.Pipeline.AudioQueueBound),
		)
	}

	// ── Config hot-reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Compare(old, new)
		if !d.Any() {
			return
		}
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.SystemPromptChanged || d.BackchannelsChanged {
			agent.update(d)
			slog.Info("agent settings updated, applies to new sessions")
		}
	})
	if err != nil {
		slog.Warn("config hot-reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	printStartupSummary(cfg)
	slog.Info("server ready — press Ctrl+C to shut down")

	srv := server.New(factory, checkers, server.WithLogger(logger))
	if err := srv.Run(ctx, cfg.Server.ListenAddr); err != nil {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Hot-reloadable agent settings ─────────────────────────────────────────────

// agentSettings holds the pieces of session construction that config reload
// may replace. Running sessions keep what they were built with; only new
// sessions see updates.
type agentSettings struct {
	mu           sync.Mutex
	systemPrompt string
	prompter     *prompt.Generator
}

func newAgentSettings(cfg *config.Config) *agentSettings {
	return &agentSettings{
		systemPrompt: cfg.Agent.SystemPrompt,
		prompter:     prompt.New(cfg.Backchannels),
	}
}

func (a *agentSettings) snapshot() (string, *prompt.Generator) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.systemPrompt, a.prompter
}

func (a *agentSettings) update(d config.Diff) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if d.SystemPromptChanged {
		a.systemPrompt = d.NewSystemPrompt
	}
	if d.BackchannelsChanged {
		a.prompter = prompt.New(d.NewBackchannels)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        voicebot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if cfg.Agent.ToolsEnabled {
		fmt.Printf("║  Tools           : %-19s ║\n", "enabled")
	} else {
		fmt.Printf("║  Tools           : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  MCP servers     : %-19d ║\n", len(cfg.MCP.Servers))
	if cfg.Transcript.PostgresDSN != "" {
		fmt.Printf("║  Transcripts     : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Transcripts     : %-19s ║\n", "(disabled)")
	}
	fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
