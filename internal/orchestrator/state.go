package orchestrator

// StageStatus is the lifecycle of one pipeline stage (STT, agent, TTS, tools).
type StageStatus int

const (
	StageIdle StageStatus = iota
	StageProcessing
	StageStreaming
)

func (s StageStatus) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageProcessing:
		return "processing"
	case StageStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// PlaybackStatus gates the audio dispatcher.
type PlaybackStatus int

const (
	PlaybackIdle PlaybackStatus = iota
	PlaybackActive
	PlaybackPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackActive:
		return "active"
	case PlaybackPaused:
		return "paused"
	default:
		return "unknown"
	}
}

// InterruptionStatus tracks the barge-in lifecycle. Processing locks the
// pause reaction; Active means the reaction has completed and the decision
// step has not yet resolved it.
type InterruptionStatus int

const (
	InterruptionIdle InterruptionStatus = iota
	InterruptionProcessing
	InterruptionActive
)

func (s InterruptionStatus) String() string {
	switch s {
	case InterruptionIdle:
		return "idle"
	case InterruptionProcessing:
		return "processing"
	case InterruptionActive:
		return "active"
	default:
		return "unknown"
	}
}

// sessionState is the per-session mutable record. It is guarded by the
// orchestrator's mutex; workers never touch it directly.
type sessionState struct {
	sttStatus          StageStatus
	agentStatus        StageStatus
	ttsStatus          StageStatus
	toolStatus         StageStatus
	playbackStatus     PlaybackStatus
	interruptionStatus InterruptionStatus

	clientPlaybackActive              bool
	clientWasActiveBeforeInterruption bool
	responseInProgress                bool

	generationID uint64
}

// fullyIdle reports whether nothing is happening in the session. A speech
// onset in this state opens a fresh turn rather than interrupting one.
func (s *sessionState) fullyIdle() bool {
	return s.sttStatus == StageIdle &&
		s.agentStatus == StageIdle &&
		s.ttsStatus == StageIdle &&
		s.toolStatus == StageIdle &&
		s.playbackStatus == PlaybackIdle &&
		!s.clientPlaybackActive &&
		!s.responseInProgress
}

// snapshot renders the state for invariant-violation logs.
func (s *sessionState) snapshot() []any {
	return []any{
		"stt", s.sttStatus.String(),
		"agent", s.agentStatus.String(),
		"tts", s.ttsStatus.String(),
		"tool", s.toolStatus.String(),
		"playback", s.playbackStatus.String(),
		"interruption", s.interruptionStatus.String(),
		"client_playback_active", s.clientPlaybackActive,
		"response_in_progress", s.responseInProgress,
		"generation_id", s.generationID,
	}
}
