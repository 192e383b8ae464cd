package orchestrator

import "context"

// playbackDispatcher streams audio frames to the client in queue order. It
// honours the pause gate: while the session is paused it neither drains the
// queue nor sends, so queued frames survive for a potential resume. A frame
// taken off the queue just before a pause is held back and re-examined after
// the gate reopens; the generation filter drops it if it went stale.
func (o *Orchestrator) playbackDispatcher(ctx context.Context) {
	var pending *frame

	for {
		if !o.playGate.Wait(ctx) {
			return
		}

		var f frame
		if pending != nil {
			f = *pending
			pending = nil
		} else {
			select {
			case <-ctx.Done():
				return
			case f = <-o.audioQ:
			}
		}

		if f.gen < o.currentGeneration() {
			o.metrics.RecordStaleDrop(ctx, "audio")
			continue
		}

		o.mu.Lock()
		if o.state.playbackStatus == PlaybackPaused {
			// Paused between dequeue and send. Keep the frame for resume.
			o.mu.Unlock()
			pending = &f
			continue
		}

		if f.eos {
			// All frames of this generation are dispatched. The response is
			// fully delivered once the client also reports its queue
			// drained (client_playback_complete).
			if !o.state.clientPlaybackActive && o.state.agentStatus == StageIdle {
				o.state.responseInProgress = false
				o.state.playbackStatus = PlaybackIdle
			}
			o.mu.Unlock()
			o.log.Debug("audio stream complete", "generation_id", f.gen)
			continue
		}

		if o.state.playbackStatus == PlaybackIdle {
			o.state.playbackStatus = PlaybackActive
		}
		o.mu.Unlock()

		if err := o.client.PlayAudio(ctx, f.audio); err != nil {
			if ctx.Err() != nil {
				return
			}
			o.log.Warn("play_audio send failed", "error", err)
		}
	}
}
