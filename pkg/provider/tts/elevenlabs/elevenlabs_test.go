package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/tts"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()

	want := []byte("fake-mp3-bytes")
	var gotPath, gotKey string
	var gotBody synthesisRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write(want)
	}))
	t.Cleanup(srv.Close)

	p, err := New("key", WithBaseURL(srv.URL), WithModelID("eleven_turbo_v2_5"))
	if err != nil {
		t.Fatal(err)
	}

	got, err := p.Synthesize(context.Background(), "Hi! How can I help?", tts.Voice{ID: "voice-1", SpeedFactor: 1.1})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("audio = %q, want %q", got, want)
	}
	if gotPath != "/v1/text-to-speech/voice-1" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key" {
		t.Errorf("xi-api-key = %q", gotKey)
	}
	if gotBody.Text != "Hi! How can I help?" {
		t.Errorf("text = %q", gotBody.Text)
	}
	if gotBody.VoiceSettings == nil || gotBody.VoiceSettings.Speed != 1.1 {
		t.Errorf("voice settings = %+v", gotBody.VoiceSettings)
	}
}

func TestSynthesizeDefaultVoice(t *testing.T) {
	t.Parallel()

	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("audio"))
	}))
	t.Cleanup(srv.Close)

	p, err := New("key", WithBaseURL(srv.URL), WithDefaultVoiceID("fallback-voice"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.Synthesize(context.Background(), "hello", tts.Voice{}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(gotPath, "/fallback-voice") {
		t.Errorf("path = %q, want default voice suffix", gotPath)
	}
}

func TestSynthesizeErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Synthesize(context.Background(), "", tts.Voice{}); err == nil {
		t.Error("expected error for empty text")
	}
	if _, err := p.Synthesize(context.Background(), "hello", tts.Voice{}); err == nil {
		t.Error("expected error for 429 response")
	}
}
