package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/siddhartha9/interruption-aware-voice-bot/internal/health"
	"github.com/siddhartha9/interruption-aware-voice-bot/internal/orchestrator"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm"
	llmmock "github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/llm/mock"
	sttmock "github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/stt/mock"
	ttsmock "github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts/mock"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer wires a Server whose sessions run against the given mocks
// and returns it together with the backing httptest server.
func newTestServer(t *testing.T, sttP *sttmock.Provider, llmP *llmmock.Provider, ttsP *ttsmock.Provider) (*Server, *httptest.Server) {
	t.Helper()

	factory := func(id string, client orchestrator.Client) *orchestrator.Orchestrator {
		return orchestrator.New(id, client, sttP, llmP, ttsP,
			orchestrator.WithLogger(discardLogger()),
			orchestrator.WithDebounce(20*time.Millisecond),
		)
	}
	s := New(factory, nil, WithLogger(discardLogger()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return msg
}

func TestConnectedGreeting(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t, &sttmock.Provider{}, &llmmock.Provider{}, &ttsmock.Provider{})
	conn := dial(t, ts)

	msg := readEvent(t, conn)
	if msg.Event != eventConnected {
		t.Fatalf("first event = %q, want %q", msg.Event, eventConnected)
	}
	if msg.SessionID == "" {
		t.Error("connected event carries no session_id")
	}
}

func TestCleanTurnOverWebSocket(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{Transcript: "Hello there"}
	llmP := &llmmock.Provider{StreamChunks: []llm.Chunk{
		{Text: "Hi! "},
		{Text: "How can I help?", FinishReason: "stop"},
	}}
	_, ts := newTestServer(t, sttP, llmP, &ttsmock.Provider{})
	conn := dial(t, ts)
	readEvent(t, conn) // connected

	sendEvent(t, conn, clientMessage{Type: eventSpeechStart})
	audio := base64.StdEncoding.EncodeToString([]byte("utterance"))
	sendEvent(t, conn, clientMessage{Type: eventSpeechEnd, Audio: audio})

	// The TTS mock echoes each sentence, so the frames decode back to text.
	var frames []string
	for len(frames) < 2 {
		msg := readEvent(t, conn)
		if msg.Event != eventPlayAudio {
			t.Fatalf("unexpected event %q while waiting for audio", msg.Event)
		}
		decoded, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			t.Fatalf("frame is not base64: %v", err)
		}
		frames = append(frames, string(decoded))
	}

	if frames[0] != "Hi!" || frames[1] != "How can I help?" {
		t.Errorf("frames = %q", frames)
	}
}

func TestInterruptionSendsStopPlayback(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{Transcripts: []string{"Hello there", "uh huh"}}
	llmP := &llmmock.Provider{StreamChunks: []llm.Chunk{
		{Text: "Hi! How can I help?", FinishReason: "stop"},
	}}
	_, ts := newTestServer(t, sttP, llmP, &ttsmock.Provider{})
	conn := dial(t, ts)
	readEvent(t, conn) // connected

	sendEvent(t, conn, clientMessage{Type: eventSpeechStart})
	audio := base64.StdEncoding.EncodeToString([]byte("utterance"))
	sendEvent(t, conn, clientMessage{Type: eventSpeechEnd, Audio: audio})

	if msg := readEvent(t, conn); msg.Event != eventPlayAudio {
		t.Fatalf("expected a play_audio frame, got %q", msg.Event)
	}
	sendEvent(t, conn, clientMessage{Type: eventClientPlaybackStarted})

	// Barge in with a backchannel; the session must pause then resume.
	sendEvent(t, conn, clientMessage{Type: eventSpeechStart})
	sendEvent(t, conn, clientMessage{Type: eventSpeechEnd, Audio: audio})

	sawStop, sawResume := false, false
	for !(sawStop && sawResume) {
		switch msg := readEvent(t, conn); msg.Event {
		case eventStopPlayback:
			sawStop = true
		case eventPlaybackResume:
			if !sawStop {
				t.Fatal("playback_resume arrived before stop_playback")
			}
			sawResume = true
		case eventPlayAudio:
			// Frames queued before the pause may still be in flight.
		default:
			t.Fatalf("unexpected event %q", msg.Event)
		}
	}
}

func TestMalformedAndUnknownEventsIgnored(t *testing.T) {
	t.Parallel()

	sttP := &sttmock.Provider{Transcript: "Hello"}
	llmP := &llmmock.Provider{StreamChunks: []llm.Chunk{{Text: "Hi!", FinishReason: "stop"}}}
	_, ts := newTestServer(t, sttP, llmP, &ttsmock.Provider{})
	conn := dial(t, ts)
	readEvent(t, conn) // connected

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	sendEvent(t, conn, clientMessage{Type: "telepathy"})
	sendEvent(t, conn, clientMessage{Type: eventSpeechEnd, Audio: "***not-base64***"})

	// The connection must survive all three and still serve a turn.
	audio := base64.StdEncoding.EncodeToString([]byte("utterance"))
	sendEvent(t, conn, clientMessage{Type: eventSpeechEnd, Audio: audio})

	if msg := readEvent(t, conn); msg.Event != eventPlayAudio {
		t.Errorf("event = %q, want play_audio", msg.Event)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	factory := func(id string, client orchestrator.Client) *orchestrator.Orchestrator {
		return orchestrator.New(id, client, &sttmock.Provider{}, &llmmock.Provider{}, &ttsmock.Provider{},
			orchestrator.WithLogger(discardLogger()))
	}
	checkers := []health.Checker{{
		Name:  "always_ok",
		Check: func(context.Context) error { return nil },
	}}
	s := New(factory, checkers, WithLogger(discardLogger()))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestShutdownClosesSessions(t *testing.T) {
	t.Parallel()

	s, ts := newTestServer(t, &sttmock.Provider{}, &llmmock.Provider{}, &ttsmock.Provider{})
	conn := dial(t, ts)
	readEvent(t, conn) // connected

	if n := s.SessionCount(); n != 1 {
		t.Fatalf("SessionCount = %d, want 1", n)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Shutdown(ctx)

	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("read succeeded after shutdown")
	}

	deadline := time.Now().Add(3 * time.Second)
	for s.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("SessionCount = %d after shutdown", s.SessionCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
