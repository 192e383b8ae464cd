// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// prerecorded (batch) API. It implements the stt.Provider interface.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/audio"
	"github.com/siddhartha9/interruption-aware-voice-bot/pkg/provider/stt"
)

const (
	deepgramEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "en"

	// defaultMinDuration gates out noise blips that are too short to carry
	// speech; such buffers return an empty transcript without an API call.
	defaultMinDuration = 500 * time.Millisecond
)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the BCP-47 language code for recognition (e.g., "en", "de-DE").
func WithLanguage(language string) Option {
	return func(p *Provider) {
		p.language = language
	}
}

// WithMinAudioDuration sets the minimum estimated utterance duration below
// which Transcribe returns empty without calling the API. Zero disables the
// gate.
func WithMinAudioDuration(d time.Duration) Option {
	return func(p *Provider) {
		p.minDuration = d
	}
}

// WithHTTPClient overrides the HTTP client used for API requests. Intended
// for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithEndpoint overrides the Deepgram API endpoint. Intended for tests.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) {
		p.endpoint = endpoint
	}
}

// Provider implements stt.Provider backed by the Deepgram prerecorded API.
type Provider struct {
	apiKey      string
	model       string
	language    string
	minDuration time.Duration
	endpoint    string
	httpClient  *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		model:       defaultModel,
		language:    defaultLanguage,
		minDuration: defaultMinDuration,
		endpoint:    deepgramEndpoint,
		httpClient:  &http.Client{Timeout: stt.DefaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// transcriptionResponse mirrors the subset of the Deepgram prerecorded API
// response the provider reads.
type transcriptionResponse struct {
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe implements stt.Provider. Buffers whose estimated duration is
// below the configured minimum return "" without an API call.
func (p *Provider) Transcribe(ctx context.Context, buf []byte) (string, error) {
	if len(buf) == 0 {
		return "", nil
	}

	format := audio.DetectFormat(buf)
	if p.minDuration > 0 && audio.EstimateDuration(format, len(buf)) < p.minDuration {
		return "", nil
	}

	reqURL, err := p.buildURL()
	if err != nil {
		return "", fmt.Errorf("deepgram: build URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(buf))
	if err != nil {
		return "", fmt.Errorf("deepgram: build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", format.MIMEType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepgram: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("deepgram: status %d: %s", resp.StatusCode, body)
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("deepgram: decode response: %w", err)
	}

	if len(tr.Results.Channels) == 0 || len(tr.Results.Channels[0].Alternatives) == 0 {
		return "", nil
	}
	return tr.Results.Channels[0].Alternatives[0].Transcript, nil
}

// buildURL constructs the prerecorded endpoint URL with query parameters.
func (p *Provider) buildURL() (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.language)
	q.Set("smart_format", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

var _ stt.Provider = (*Provider)(nil)
