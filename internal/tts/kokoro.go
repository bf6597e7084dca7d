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
	kokoroName       = "kokoro"
	kokoroModel      = "kokoro"
	apiKokoroSpeech  = "/v1/audio/speech"
	apiKokoroVoices  = "/v1/audio/voices"
	apiKokoroHealth  = "/health"
	kokoroHealthWait = 10 * time.Second
)

// kokoroFormats is the set of containers the engine can natively emit.
var kokoroFormats = []core.Format{
	core.FormatMP3, core.FormatOPUS, core.FormatOGG,
	core.FormatFLAC, core.FormatWAV, core.FormatPCM,
}

// kokoro speaks the OpenAI-compatible speech API of a local Kokoro engine.
// The voice catalog is large and served by the engine, so voice existence is
// validated there, not here. Readiness is probed against the health path
// before the first successful call; only a passing probe is remembered.
type kokoro struct {
	httpClient *http.Client
	baseURL    string
	voice      string
	format     core.Format
	speed      float64
	log        *logger.Logger

	healthMu sync.Mutex
	healthy  bool
}

func newKokoro(cfg config.TTSConfig, log *logger.Logger) (*kokoro, error) {
	format := core.Format(cfg.Format)
	if cfg.Format == "" {
		format = core.FormatOGG
	}

	err := validateFormat(kokoroName, format, kokoroFormats...)
	if err != nil {
		return nil, err
	}

	return &kokoro{
		httpClient: httpx.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		voice:      cfg.Voice,
		format:     format,
		speed:      cfg.Speed,
		log:        log,
	}, nil
}

func (k *kokoro) Name() string {
	return kokoroName
}

// kokoroSpeechRequest mirrors the OpenAI-compatible speech payload.
type kokoroSpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed,omitempty"`
}

func (k *kokoro) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.AudioBuffer, error) {
	err := k.checkHealth(ctx)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	format := req.Format
	if format == "" {
		format = k.format
	}

	err = validateFormat(kokoroName, format, kokoroFormats...)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	voice := req.Voice
	if voice == "" {
		voice = k.voice
	}

	speed := req.Speed
	if speed == 0 {
		speed = k.speed
	}

	payload, err := json.Marshal(kokoroSpeechRequest{
		Model:          kokoroModel,
		Input:          req.Text,
		Voice:          voice,
		ResponseFormat: string(format),
		Speed:          speed,
	})
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			k.baseURL+apiKokoroSpeech,
			bytes.NewReader(payload),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		httpReq.Header.Set("Content-Type", "application/json")

		return httpReq, nil
	}

	data, err := readAudioResponse(ctx, k.httpClient, build)
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("kokoro synthesis failed: %w", err)
	}

	k.log.Info("Synthesized %d bytes via %s (voice %s)", len(data), kokoroName, voice)

	return core.AudioBuffer{
		Data:     data,
		Format:   core.FormatSpec{Container: format},
		Duration: 0,
	}, nil
}

// Voices fetches the engine's catalog. Ordering follows the engine's
// response and is stable across calls.
func (k *kokoro) Voices(ctx context.Context) ([]core.VoiceDescriptor, error) {
	err := k.checkHealth(ctx)
	if err != nil {
		return nil, err
	}

	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, k.baseURL+apiKokoroVoices, http.NoBody)
	}

	resp, err := httpx.Do(ctx, k.httpClient, build)
	if err != nil {
		return nil, fmt.Errorf("failed to list kokoro voices: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Voices []string `json:"voices"`
	}

	err = decodeJSON(resp.Body, &decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]core.VoiceDescriptor, 0, len(decoded.Voices))
	for _, name := range decoded.Voices {
		voices = append(voices, core.VoiceDescriptor{
			ID:     name,
			Name:   name,
			Locale: "",
			Gender: "",
		})
	}

	return voices, nil
}

// checkHealth probes the engine's health path before the first successful
// call. A passing probe is never repeated; a failed probe (including one
// cut short by the caller's context) is retried on the next call.
func (k *kokoro) checkHealth(ctx context.Context) error {
	k.healthMu.Lock()
	defer k.healthMu.Unlock()

	if k.healthy {
		return nil
	}

	healthCtx, cancel := context.WithTimeout(ctx, kokoroHealthWait)
	defer cancel()

	err := checkEndpointHealth(healthCtx, k.httpClient, k.baseURL+apiKokoroHealth)
	if err != nil {
		return err
	}

	k.healthy = true

	return nil
}
