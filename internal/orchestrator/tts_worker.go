package orchestrator

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/resilience"
)

// ttsWorker synthesises sentences into audio frames, preserving order within
// a generation. Sentences from a superseded generation are dropped before
// spending a synthesis call on them; per-sentence failures are logged and
// skipped so one bad sentence never silences the rest of the response.
func (o *Orchestrator) ttsWorker(ctx context.Context) {
	for {
		var s sentence
		select {
		case <-ctx.Done():
			return
		case s = <-o.textQ:
		}

		if s.gen < o.currentGeneration() {
			o.metrics.RecordStaleDrop(ctx, "text")
			continue
		}

		if s.eos {
			o.withState(func() {
				o.state.ttsStatus = StageIdle
			})
			select {
			case o.audioQ <- frame{gen: s.gen, eos: true}:
			case <-ctx.Done():
				return
			}
			continue
		}

		o.withState(func() {
			o.state.ttsStatus = StageProcessing
		})

		start := time.Now()
		callCtx, cancel := context.WithTimeout(ctx, o.ttsTimeout)
		retryCfg := resilience.DefaultConfig
		retryCfg.Name = "tts.synthesize"
		audio, err := resilience.Do(callCtx, retryCfg, func(ctx context.Context) ([]byte, error) {
			return o.ttsP.Synthesize(ctx, s.text, o.voice)
		})
		cancel()
		o.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.Warn("synthesis failed, sentence skipped", "error", err, "chars", len(s.text))
			o.metrics.RecordProviderError(ctx, "tts")
			continue
		}

		select {
		case o.audioQ <- frame{gen: s.gen, audio: base64.StdEncoding.EncodeToString(audio)}:
		case <-ctx.Done():
			return
		}
	}
}
