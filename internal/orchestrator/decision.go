package orchestrator

import (
	"context"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/types"
)

// scheduleDecision arms the debounced decision step. A newer transcript
// arriving within the debounce window replaces the pending decision, so only
// the latest one ever runs.
func (o *Orchestrator) scheduleDecision() {
	o.mu.Lock()
	if o.decisionCancel != nil {
		o.decisionCancel()
	}
	ctx, cancel := context.WithCancel(o.ctx)
	o.decisionCancel = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		t := time.NewTimer(o.debounce)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		o.decide(ctx)
	}()
}

// decide is the slow half of barge-in handling. It starts from a clean slate
// (no runner, no tools, empty downstream queues) and resolves the session
// into one of three outcomes: resume the paused playback, regenerate the
// response, or reset the client and regenerate.
func (o *Orchestrator) decide(ctx context.Context) {
	// Clean slate. The decision step is the only component that
	// regenerates, so it can safely discard everything downstream.
	o.mu.Lock()
	cancelRunner := o.runnerCancel
	o.runnerCancel = nil
	o.mu.Unlock()

	if cancelRunner != nil {
		cancelRunner()
	}
	if o.registry != nil {
		o.registry.CancelAll()
	}
	drainSentences(o.textQ)
	drainFrames(o.audioQ)

	o.mu.Lock()

	transcripts := o.sttOutput
	o.sttOutput = nil
	hasSTT := len(transcripts) > 0
	isInterruption := o.state.interruptionStatus == InterruptionActive

	res := o.prompter.Generate(transcripts, o.history, isInterruption)
	resumable := !hasSTT || !res.NeedsNewPrompt

	switch {
	case resumable && o.state.playbackStatus == PlaybackPaused:
		// The utterance was noise or a backchannel and playback can pick
		// up where it left off.
		o.state.playbackStatus = PlaybackActive
		o.state.clientPlaybackActive = true
		o.state.clientWasActiveBeforeInterruption = false
		o.state.interruptionStatus = InterruptionIdle
		o.mu.Unlock()

		o.playGate.Open()
		if err := o.client.ResumePlayback(ctx); err != nil {
			o.log.Warn("playback_resume send failed", "error", err)
		}
		o.metrics.RecordInterruption(ctx, "resume")
		o.log.Info("decision: resume")

	case resumable && endsWithUser(o.history) && o.state.agentStatus == StageIdle:
		// Nothing to resume but a user turn is still unanswered. Discard
		// whatever stale audio the client buffered and regenerate from the
		// history as it stands.
		o.mu.Unlock()
		if err := o.client.ResetPlayback(ctx); err != nil {
			o.log.Warn("playback_reset send failed", "error", err)
		}
		o.metrics.RecordInterruption(ctx, "reset")
		o.log.Info("decision: reset and regenerate")

		o.mu.Lock()
		o.regenerateLocked(ctx, o.history, "", false, isInterruption)
		o.mu.Unlock()

	case !resumable:
		o.regenerateLocked(ctx, res.History, res.Prompt, hasSTT && res.NeedsNewPrompt, isInterruption)
		o.mu.Unlock()

	default:
		// Nothing audible, nothing pending. Just lower the flags.
		o.state.interruptionStatus = InterruptionIdle
		o.state.clientWasActiveBeforeInterruption = false
		o.mu.Unlock()
		o.log.Debug("decision: nothing to do")
	}
}

// regenerateLocked installs hist, optionally appends the merged prompt as a
// fresh user turn, bumps the generation, and spawns a new agent runner.
// Callers hold o.mu.
func (o *Orchestrator) regenerateLocked(ctx context.Context, hist []types.Message, promptText string, appendPrompt bool, wasInterruption bool) {
	// Hold dispatch while the new state is installed.
	o.playGate.Shut()

	installed := make([]types.Message, len(hist))
	copy(installed, hist)
	if appendPrompt && !endsWithUser(installed) {
		installed = append(installed, types.Message{Role: types.RoleUser, Content: promptText})
	}
	o.history = installed

	o.state.interruptionStatus = InterruptionIdle
	o.state.clientWasActiveBeforeInterruption = false
	o.state.responseInProgress = false
	o.state.playbackStatus = PlaybackIdle
	o.state.agentStatus = StageProcessing
	o.state.generationID++
	gen := o.state.generationID

	runnerCtx, cancel := context.WithCancel(o.ctx)
	o.runnerCancel = cancel

	runnerHist := make([]types.Message, len(installed))
	copy(runnerHist, installed)

	o.playGate.Open()

	o.metrics.Generations.Add(ctx, 1)
	if wasInterruption {
		o.metrics.RecordInterruption(ctx, "regenerate")
	}
	if promptText != "" {
		o.archiveEntry(types.RoleUser, promptText, gen)
	}
	o.log.Info("decision: regenerate", "generation_id", gen, "history_len", len(installed))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runAgent(runnerCtx, runnerHist, gen)
	}()
}

// endsWithUser reports whether the last committed message is a user turn.
func endsWithUser(hist []types.Message) bool {
	return len(hist) > 0 && hist[len(hist)-1].Role == types.RoleUser
}
