package server

// Wire protocol for the duplex voice connection. Inbound messages carry a
// "type" field, outbound messages an "event" field; both sides are plain
// JSON text frames.

// Client → server event types.
const (
	eventSpeechStart            = "speech_start"
	eventSpeechEnd              = "speech_end"
	eventClientPlaybackStarted  = "client_playback_started"
	eventClientPlaybackComplete = "client_playback_complete"
)

// Server → client event names. stop_playback and playback_pause mean the
// same thing; stop_playback is what we emit, playback_pause survives only so
// older clients recognise the pair in documentation.
const (
	eventConnected      = "connected"
	eventPlayAudio      = "play_audio"
	eventStopPlayback   = "stop_playback"
	eventPlaybackResume = "playback_resume"
	eventPlaybackReset  = "playback_reset"
	eventError          = "error"
)

// clientMessage is one decoded inbound event. Audio is set only for
// speech_end and holds the base64-encoded utterance buffer.
type clientMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio,omitempty"`
}

// serverMessage is one outbound event.
type serverMessage struct {
	Event     string `json:"event"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
	Audio     string `json:"audio,omitempty"`
}
