// Package orchestrator coordinates one duplex voice session through the
// four-stage pipeline: speech-to-text, LLM reasoning with tool execution,
// text-to-speech, and audio playback dispatch. Its defining concern is
// barge-in: the user may start speaking at any moment, including while the
// agent is thinking, speaking, or running tools, and the session must react
// instantly (pause everything) and then decide calmly (resume on a false
// alarm, regenerate on a real interruption).
//
// All mutable session state lives in a single record guarded by one mutex.
// Workers (STT, TTS, playback, decision, agent runner) run as goroutines and
// communicate through generation-tagged queues; outputs tagged with a stale
// generation id are dropped rather than cancelled mid-flight.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/observe"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/prompt"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/toolcall"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/transcript"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/stt"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// defaultDebounce is how long the decision step waits for further
// transcripts before acting; a newer transcript restarts the wait.
const defaultDebounce = 100 * time.Millisecond

// fallbackSentence is spoken when the LLM fails permanently mid-turn.
const fallbackSentence = "I'm experiencing technical difficulties. Please try again in a moment."

// Client is the outbound half of a session connection. The orchestrator
// never touches the transport directly; the server layer implements this on
// top of its WebSocket writer.
type Client interface {
	// PlayAudio delivers one base64-encoded audio frame to enqueue and play.
	PlayAudio(ctx context.Context, audio string) error
	// StopPlayback tells the client to pause immediately, retaining its
	// local queue.
	StopPlayback(ctx context.Context) error
	// ResumePlayback continues from the paused point.
	ResumePlayback(ctx context.Context) error
	// ResetPlayback discards any audio the client has buffered.
	ResetPlayback(ctx context.Context) error
}

// Orchestrator runs one voice session. Create with New, start the workers
// with Start, feed it client events via the On* methods, and tear it down
// exactly once with Close.
//
// All exported methods are safe for concurrent use.
type Orchestrator struct {
	id      string
	log     *slog.Logger
	metrics *observe.Metrics

	client   Client
	sttP     stt.Provider
	llmP     llm.Provider
	ttsP     tts.Provider
	prompter *prompt.Generator
	registry *toolcall.Registry
	catalog  *toolcall.Catalog
	archive  transcript.Store

	voice        tts.Voice
	systemPrompt string
	temperature  float64
	toolsEnabled bool
	debounce     time.Duration
	sttTimeout   time.Duration
	ttsTimeout   time.Duration

	sttJobs  *jobQueue
	textQ    chan sentence
	audioQ   chan frame
	playGate *gate

	mu        sync.Mutex
	state     sessionState
	history   []types.Message
	sttOutput []string

	// decisionCancel aborts the currently debouncing decision, if any.
	// runnerCancel aborts the in-flight agent runner, if any.
	decisionCancel context.CancelFunc
	runnerCancel   context.CancelFunc

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Option configures an Orchestrator during construction.
type Option func(*Orchestrator)

// WithLogger sets the session logger. The default is slog.Default with a
// session_id attribute.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics sets the metrics sink. The default is observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTools enables LLM tool calling against catalog, tracking in-flight
// executions in reg so interruptions can cancel them.
func WithTools(catalog *toolcall.Catalog, reg *toolcall.Registry) Option {
	return func(o *Orchestrator) {
		o.catalog = catalog
		o.registry = reg
		o.toolsEnabled = catalog != nil && catalog.Len() > 0
	}
}

// WithPromptGenerator overrides the transcript merger and backchannel
// classifier. The default uses prompt.DefaultBackchannels.
func WithPromptGenerator(g *prompt.Generator) Option {
	return func(o *Orchestrator) { o.prompter = g }
}

// WithTranscriptStore archives committed user and agent turns. Nil disables
// archiving.
func WithTranscriptStore(s transcript.Store) Option {
	return func(o *Orchestrator) { o.archive = s }
}

// WithVoice sets the TTS voice profile.
func WithVoice(v tts.Voice) Option {
	return func(o *Orchestrator) { o.voice = v }
}

// WithSystemPrompt sets the agent's system prompt.
func WithSystemPrompt(s string) Option {
	return func(o *Orchestrator) { o.systemPrompt = s }
}

// WithTemperature sets the LLM sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithDebounce sets the decision debounce window. The default is 100ms.
func WithDebounce(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithTimeouts sets the per-call STT and TTS timeouts. Zero keeps the
// provider defaults.
func WithTimeouts(sttT, ttsT time.Duration) Option {
	return func(o *Orchestrator) {
		if sttT > 0 {
			o.sttTimeout = sttT
		}
		if ttsT > 0 {
			o.ttsTimeout = ttsT
		}
	}
}

// WithQueueBounds overrides the text and audio queue capacities. Zero keeps
// a default.
func WithQueueBounds(text, audioN int) Option {
	return func(o *Orchestrator) {
		if text > 0 {
			o.textQ = make(chan sentence, text)
		}
		if audioN > 0 {
			o.audioQ = make(chan frame, audioN)
		}
	}
}

// New assembles a session orchestrator. id identifies the session in logs
// and the transcript archive; client receives the outbound events.
func New(id string, client Client, sttP stt.Provider, llmP llm.Provider, ttsP tts.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		id:         id,
		client:     client,
		sttP:       sttP,
		llmP:       llmP,
		ttsP:       ttsP,
		debounce:   defaultDebounce,
		sttTimeout: stt.DefaultTimeout,
		ttsTimeout: tts.DefaultTimeout,
		sttJobs:    newJobQueue(),
		textQ:      make(chan sentence, defaultTextQueueBound),
		audioQ:     make(chan frame, defaultAudioQueueBound),
		playGate:   newGate(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	o.log = o.log.With("session_id", id)
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	if o.prompter == nil {
		o.prompter = prompt.New(nil)
	}
	return o
}

// Start launches the long-lived workers. The session lives until Close or
// until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.metrics.ActiveSessions.Add(ctx, 1)

	o.wg.Add(3)
	go func() {
		defer o.wg.Done()
		o.sttWorker(o.ctx)
	}()
	go func() {
		defer o.wg.Done()
		o.ttsWorker(o.ctx)
	}()
	go func() {
		defer o.wg.Done()
		o.playbackDispatcher(o.ctx)
	}()
}

// Close tears the session down exactly once: the in-flight agent runner and
// every registered tool are cancelled, all queues are released, and the
// workers exit. Safe to call from any goroutine, any number of times.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		if o.decisionCancel != nil {
			o.decisionCancel()
			o.decisionCancel = nil
		}
		if o.runnerCancel != nil {
			o.runnerCancel()
			o.runnerCancel = nil
		}
		o.mu.Unlock()

		if o.registry != nil {
			if n := o.registry.CancelAll(); n > 0 {
				o.log.Info("cancelled in-flight tools on close", "count", n)
			}
		}

		o.sttJobs.Close()
		o.playGate.Open() // release a paused dispatcher so it can observe ctx
		if o.cancel != nil {
			o.cancel()
			o.metrics.ActiveSessions.Add(context.Background(), -1)
		}
		o.wg.Wait()
		o.log.Info("session closed")
	})
}

// ─── Event dispatch ───────────────────────────────────────────────────────────

// OnSpeechStart handles the client's voice-activity onset. If anything is in
// flight it triggers the pause reaction; in a fully idle session it is the
// start of a fresh turn and a no-op.
func (o *Orchestrator) OnSpeechStart() {
	o.pauseReaction()
}

// OnSpeechEnd enqueues a completed utterance buffer for transcription.
// Empty buffers are ignored.
func (o *Orchestrator) OnSpeechEnd(audio []byte) {
	if len(audio) == 0 {
		return
	}
	o.sttJobs.Push(audio)
}

// OnClientPlaybackStarted mirrors the client's audio element going live.
func (o *Orchestrator) OnClientPlaybackStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.clientPlaybackActive = true
}

// OnClientPlaybackComplete mirrors the client's audio queue draining. When
// the agent has also finished, the response is fully delivered.
func (o *Orchestrator) OnClientPlaybackComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.clientPlaybackActive = false
	if o.state.agentStatus == StageIdle {
		o.state.responseInProgress = false
		if o.state.playbackStatus == PlaybackActive {
			o.state.playbackStatus = PlaybackIdle
		}
	}
}

// History returns a copy of the committed chat history.
func (o *Orchestrator) History() []types.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make([]types.Message, len(o.history))
	copy(cp, o.history)
	return cp
}

// GenerationID returns the current generation counter.
func (o *Orchestrator) GenerationID() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.generationID
}

// currentGeneration is the lock-taking read used by workers for stale
// filtering.
func (o *Orchestrator) currentGeneration() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.generationID
}

// archiveEntry records a committed turn, best-effort and off the calling
// goroutine so archive latency never holds the session lock.
func (o *Orchestrator) archiveEntry(role string, content string, gen uint64) {
	if o.archive == nil || content == "" {
		return
	}
	e := transcript.Entry{
		SessionID:    o.id,
		Role:         role,
		Content:      content,
		GenerationID: gen,
		Timestamp:    time.Now(),
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		if err := o.archive.Append(o.ctx, e); err != nil {
			o.log.Warn("transcript archive append failed", "error", err)
		}
	}()
}
