package orchestrator

// pauseReaction is the fast half of barge-in handling, run synchronously on
// speech onset. It stops everything audible and disposable right now and
// raises the interruption flag; the slow half (the decision step) later
// resolves the flag into resume or regenerate.
func (o *Orchestrator) pauseReaction() {
	o.mu.Lock()

	// A speech onset in a fully idle session opens a fresh turn.
	if o.state.fullyIdle() {
		o.mu.Unlock()
		return
	}
	if o.state.interruptionStatus == InterruptionProcessing {
		// Reaction already running for an earlier onset.
		o.mu.Unlock()
		return
	}

	o.state.interruptionStatus = InterruptionProcessing
	o.state.clientWasActiveBeforeInterruption = o.state.clientPlaybackActive

	// Pause dispatch, preserving queued frames for a potential resume.
	o.state.playbackStatus = PlaybackPaused
	o.playGate.Shut()

	// Transcripts accumulated before this onset are stale too.
	o.sttOutput = nil

	agentProcessing := o.state.agentStatus == StageProcessing
	var cancelRunner func()
	if agentProcessing {
		cancelRunner = o.runnerCancel
		o.runnerCancel = nil
		o.state.agentStatus = StageIdle
		o.state.ttsStatus = StageIdle
	}
	o.mu.Unlock()

	// Instant perceptual feedback before any slower cleanup.
	if err := o.client.StopPlayback(o.ctx); err != nil {
		o.log.Warn("stop_playback send failed", "error", err)
	}

	// Audio captured before this onset is stale: the client has re-opened
	// the microphone and will deliver a fresh buffer.
	droppedJobs := o.sttJobs.Drain()
	droppedText := drainSentences(o.textQ)

	var cancelledTools int
	if o.registry != nil {
		cancelledTools = o.registry.CancelAll()
	}

	// A runner that has not started streaming yet is cancelled outright. A
	// streaming runner is left to finish; its outputs fall to the
	// generation filter, which is cheaper than tearing down a live HTTP
	// stream.
	if cancelRunner != nil {
		cancelRunner()
	}

	o.mu.Lock()
	o.state.interruptionStatus = InterruptionActive
	o.mu.Unlock()

	o.log.Info("pause reaction complete",
		"dropped_stt_jobs", droppedJobs,
		"dropped_sentences", droppedText,
		"cancelled_tools", cancelledTools,
		"runner_cancelled", cancelRunner != nil)
}
