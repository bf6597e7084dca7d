package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/httpx"
)

const (
	elevenLabsName       = "elevenlabs"
	defaultElevenLabsURL = "https://api.elevenlabs.io"
	defaultElevenModel   = "eleven_multilingual_v2"
	headerElevenAPIKey   = "xi-api-key"

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.75
)

// elevenOutputFormats maps generic containers onto the API's named output
// presets. Containers outside this map are rejected up front.
var elevenOutputFormats = map[core.Format]string{
	core.FormatMP3:  "mp3_44100_128",
	core.FormatOGG:  "opus_48000_64",
	core.FormatOPUS: "opus_48000_64",
	core.FormatPCM:  "pcm_16000",
}

// elevenLabs speaks the hosted text-to-speech API. The voice catalog is
// account specific and fetched remotely, so the configured voice is taken
// on trust until the API rejects it.
type elevenLabs struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	voice      string
	format     core.Format
	stability  float64
	similarity float64
	log        *logger.Logger
}

func newElevenLabs(cfg config.TTSConfig, log *logger.Logger) (*elevenLabs, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultElevenLabsURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultElevenModel
	}

	format := core.Format(cfg.Format)
	if cfg.Format == "" {
		format = core.FormatMP3
	}

	_, ok := elevenOutputFormats[format]
	if !ok {
		return nil, fmt.Errorf(
			"%w: %s cannot emit container %q",
			core.ErrUnsupportedFormat, elevenLabsName, format,
		)
	}

	stability := cfg.Stability
	if stability == 0 {
		stability = defaultStability
	}

	similarity := cfg.SimilarityBoost
	if similarity == 0 {
		similarity = defaultSimilarityBoost
	}

	return &elevenLabs{
		httpClient: httpx.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		voice:      cfg.Voice,
		format:     format,
		stability:  stability,
		similarity: similarity,
		log:        log,
	}, nil
}

func (e *elevenLabs) Name() string {
	return elevenLabsName
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type elevenSpeechRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

func (e *elevenLabs) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.AudioBuffer, error) {
	format := req.Format
	if format == "" {
		format = e.format
	}

	outputFormat, ok := elevenOutputFormats[format]
	if !ok {
		return core.AudioBuffer{}, fmt.Errorf(
			"%w: %s cannot emit container %q",
			core.ErrUnsupportedFormat, elevenLabsName, format,
		)
	}

	voice := req.Voice
	if voice == "" {
		voice = e.voice
	}

	stability := req.Stability
	if stability == 0 {
		stability = e.stability
	}

	similarity := req.SimilarityBoost
	if similarity == 0 {
		similarity = e.similarity
	}

	payload, err := json.Marshal(elevenSpeechRequest{
		Text:    req.Text,
		ModelID: e.model,
		VoiceSettings: elevenVoiceSettings{
			Stability:       stability,
			SimilarityBoost: similarity,
		},
	})
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("failed to marshal speech request: %w", err)
	}

	endpoint := fmt.Sprintf(
		"%s/v1/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voice), outputFormat,
	)

	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			endpoint,
			bytes.NewReader(payload),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set(headerElevenAPIKey, e.apiKey)

		return httpReq, nil
	}

	data, err := readAudioResponse(ctx, e.httpClient, build)
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("elevenlabs synthesis failed: %w", err)
	}

	e.log.Info("Synthesized %d bytes via %s (voice %s)", len(data), elevenLabsName, voice)

	return core.AudioBuffer{
		Data:     data,
		Format:   core.FormatSpec{Container: format},
		Duration: 0,
	}, nil
}

type elevenVoicesResponse struct {
	Voices []struct {
		VoiceID string            `json:"voice_id"`
		Name    string            `json:"name"`
		Labels  map[string]string `json:"labels"`
	} `json:"voices"`
}

// Voices fetches the account's voice catalog.
func (e *elevenLabs) Voices(ctx context.Context) ([]core.VoiceDescriptor, error) {
	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, reqErr := http.NewRequestWithContext(
			ctx, http.MethodGet, e.baseURL+"/v1/voices", http.NoBody,
		)
		if reqErr != nil {
			return nil, reqErr
		}

		httpReq.Header.Set(headerElevenAPIKey, e.apiKey)

		return httpReq, nil
	}

	resp, err := httpx.Do(ctx, e.httpClient, build)
	if err != nil {
		return nil, fmt.Errorf("failed to list elevenlabs voices: %w", err)
	}
	defer resp.Body.Close()

	var decoded elevenVoicesResponse

	err = decodeJSON(resp.Body, &decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode voices response: %w", err)
	}

	voices := make([]core.VoiceDescriptor, 0, len(decoded.Voices))
	for _, entry := range decoded.Voices {
		voices = append(voices, core.VoiceDescriptor{
			ID:     entry.VoiceID,
			Name:   entry.Name,
			Locale: entry.Labels["accent"],
			Gender: entry.Labels["gender"],
		})
	}

	return voices, nil
}
