package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/resilience"
)

// sttWorker drains the job queue: one transcription at a time, in arrival
// order. Non-empty transcripts accumulate for the decision step; empty ones
// matter only inside an interruption window, where they mean the barge-in
// was pure noise and must still be resolved.
func (o *Orchestrator) sttWorker(ctx context.Context) {
	for {
		buf, ok := o.sttJobs.Pop(ctx)
		if !ok {
			return
		}

		o.mu.Lock()
		o.state.sttStatus = StageProcessing
		o.mu.Unlock()

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, o.sttTimeout)
		retryCfg := resilience.DefaultConfig
		retryCfg.Name = "stt.transcribe"
		text, err := resilience.Do(callCtx, retryCfg, func(ctx context.Context) (string, error) {
			return o.sttP.Transcribe(ctx, buf)
		})
		cancel()
		o.metrics.STTDuration.Record(ctx, time.Since(start).Seconds())

		o.mu.Lock()
		o.state.sttStatus = StageIdle
		if err != nil {
			interrupted := o.interruptionContextLocked()
			o.mu.Unlock()
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			// Transient failures degrade to an empty transcript.
			o.log.Warn("transcription failed", "error", err, "audio_bytes", len(buf))
			o.metrics.RecordProviderError(ctx, "stt")
			if interrupted {
				o.scheduleDecision()
			}
			continue
		}

		if text != "" {
			o.sttOutput = append(o.sttOutput, text)
			o.mu.Unlock()
			o.log.Debug("transcript received", "text", text)
			o.scheduleDecision()
			continue
		}

		interrupted := o.interruptionContextLocked()
		o.mu.Unlock()
		if interrupted {
			// Noise-only barge-in: the decision step resolves it, almost
			// always by resuming playback.
			o.scheduleDecision()
		}
	}
}

// interruptionContextLocked reports whether an empty transcript still needs
// a decision. Callers hold o.mu.
func (o *Orchestrator) interruptionContextLocked() bool {
	return o.state.interruptionStatus == InterruptionActive ||
		o.state.clientWasActiveBeforeInterruption ||
		o.state.playbackStatus == PlaybackPaused ||
		o.state.responseInProgress
}
