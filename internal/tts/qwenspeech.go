package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/httpx"
)

const (
	qwenName       = "qwen-speech"
	apiQwenSpeech  = "/v1/generate/speech"
	apiQwenHealth  = "/health"
	qwenHealthWait = 10 * time.Second

	contentTypeWAV  = "audio/wav"
	contentTypeJSON = "application/json"

	defaultQwenTemperature = 0.75
	defaultQwenLanguage    = "en"
)

// qwenVoices is the engine's full catalog. The service ships with exactly
// these speakers and rejects anything else, so the configured voice is
// validated at construction instead of on first synthesis.
var qwenVoices = []core.VoiceDescriptor{
	{ID: "default", Name: "default", Locale: "en", Gender: ""},
	{ID: "male1", Name: "male1", Locale: "en", Gender: "male"},
	{ID: "female1", Name: "female1", Locale: "en", Gender: "female"},
}

// qwenSpeech speaks the generate-speech contract of a local Qwen TTS
// engine. The engine only emits WAV; callers needing another container go
// through the audio converter afterwards.
type qwenSpeech struct {
	httpClient *http.Client
	baseURL    string
	voice      string
	log        *logger.Logger

	healthMu sync.Mutex
	healthy  bool
}

func newQwenSpeech(cfg config.TTSConfig, log *logger.Logger) (*qwenSpeech, error) {
	if cfg.Format != "" && core.Format(cfg.Format) != core.FormatWAV {
		return nil, fmt.Errorf(
			"%w: %s only emits container %q, configured %q",
			core.ErrUnsupportedFormat, qwenName, core.FormatWAV, cfg.Format,
		)
	}

	voice := cfg.Voice
	if voice == "" {
		voice = "default"
	}

	if !qwenVoiceKnown(voice) {
		return nil, fmt.Errorf(
			"%w: %s has no voice %q (known: default, male1, female1)",
			core.ErrProviderInit, qwenName, voice,
		)
	}

	return &qwenSpeech{
		httpClient: httpx.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		voice:      voice,
		log:        log,
	}, nil
}

func qwenVoiceKnown(id string) bool {
	for _, voice := range qwenVoices {
		if voice.ID == id {
			return true
		}
	}

	return false
}

func (q *qwenSpeech) Name() string {
	return qwenName
}

// qwenRequest is the JSON payload of the generate-speech endpoint.
type qwenRequest struct {
	Text        string  `json:"text"`
	Speaker     string  `json:"speaker,omitempty"`
	Language    string  `json:"language"`
	Temperature float64 `json:"temperature"`
}

func (q *qwenSpeech) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.AudioBuffer, error) {
	err := q.checkHealth(ctx)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	if req.Format != "" && req.Format != core.FormatWAV {
		return core.AudioBuffer{}, fmt.Errorf(
			"%w: %s only emits container %q, requested %q",
			core.ErrUnsupportedFormat, qwenName, core.FormatWAV, req.Format,
		)
	}

	voice := req.Voice
	if voice == "" {
		voice = q.voice
	}

	if !qwenVoiceKnown(voice) {
		return core.AudioBuffer{}, fmt.Errorf(
			"%w: %s has no voice %q", core.ErrProviderRequest, qwenName, voice,
		)
	}

	payload, err := json.Marshal(qwenRequest{
		Text:        req.Text,
		Speaker:     voice,
		Language:    defaultQwenLanguage,
		Temperature: defaultQwenTemperature,
	})
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			q.baseURL+apiQwenSpeech,
			bytes.NewReader(payload),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		httpReq.Header.Set("Content-Type", contentTypeJSON)
		httpReq.Header.Set("Accept", contentTypeWAV)

		return httpReq, nil
	}

	resp, err := httpx.Do(ctx, q.httpClient, build)
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("qwen-speech synthesis failed: %w", err)
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if contentType != contentTypeWAV {
		return core.AudioBuffer{}, fmt.Errorf(
			"%w: expected content type %s, got %s",
			core.ErrProviderRequest, contentTypeWAV, contentType,
		)
	}

	data, err := readAllNonEmpty(resp)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	q.log.Info("Synthesized %d bytes via %s (voice %s)", len(data), qwenName, voice)

	return core.AudioBuffer{
		Data:     data,
		Format:   core.FormatSpec{Container: core.FormatWAV, Codec: "pcm_s16le"},
		Duration: 0,
	}, nil
}

// Voices returns the engine's fixed catalog. No request is made; the
// catalog is part of the service contract.
func (q *qwenSpeech) Voices(_ context.Context) ([]core.VoiceDescriptor, error) {
	out := make([]core.VoiceDescriptor, len(qwenVoices))
	copy(out, qwenVoices)

	return out, nil
}

// checkHealth mirrors the kokoro probe: a passing probe is remembered for
// the instance's lifetime, a failed one is retried on the next call.
func (q *qwenSpeech) checkHealth(ctx context.Context) error {
	q.healthMu.Lock()
	defer q.healthMu.Unlock()

	if q.healthy {
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, qwenHealthWait)
	defer cancel()

	err := checkEndpointHealth(healthCtx, q.httpClient, q.baseURL+apiQwenHealth)
	if err != nil {
		return err
	}

	q.healthy = true

	return nil
}
