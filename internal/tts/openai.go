package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/httpx"
)

const (
	openAITTSName      = "openai"
	defaultOpenAITTS   = "https://api.openai.com"
	apiOpenAISpeech    = "/v1/audio/speech"
	defaultSpeechModel = "tts-1"
	defaultOpenAIVoice = "alloy"
)

// openAIVoices is the API's fixed voice set. New voices require a code
// change, matching the upstream contract.
var openAIVoices = []core.VoiceDescriptor{
	{ID: "alloy", Name: "Alloy", Locale: "en-US", Gender: ""},
	{ID: "echo", Name: "Echo", Locale: "en-US", Gender: ""},
	{ID: "fable", Name: "Fable", Locale: "en-US", Gender: ""},
	{ID: "onyx", Name: "Onyx", Locale: "en-US", Gender: ""},
	{ID: "nova", Name: "Nova", Locale: "en-US", Gender: ""},
	{ID: "shimmer", Name: "Shimmer", Locale: "en-US", Gender: ""},
}

var openAITTSFormats = []core.Format{
	core.FormatMP3, core.FormatOPUS, core.FormatFLAC,
	core.FormatWAV, core.FormatPCM,
}

// openAITTS speaks the hosted speech API with bearer authentication.
type openAITTS struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	voice      string
	format     core.Format
	speed      float64
	log        *logger.Logger
}

func newOpenAITTS(cfg config.TTSConfig, log *logger.Logger) (*openAITTS, error) {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAITTS
	}

	model := cfg.Model
	if model == "" {
		model = defaultSpeechModel
	}

	voice := cfg.Voice
	if voice == "" {
		voice = defaultOpenAIVoice
	}

	if !openAIVoiceKnown(voice) {
		return nil, fmt.Errorf(
			"%w: %s has no voice %q (known: alloy, echo, fable, onyx, nova, shimmer)",
			core.ErrProviderInit, openAITTSName, voice,
		)
	}

	format := core.Format(cfg.Format)
	if cfg.Format == "" {
		format = core.FormatMP3
	}

	err := validateFormat(openAITTSName, format, openAITTSFormats...)
	if err != nil {
		return nil, err
	}

	return &openAITTS{
		httpClient: httpx.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		voice:      voice,
		format:     format,
		speed:      cfg.Speed,
		log:        log,
	}, nil
}

func openAIVoiceKnown(id string) bool {
	for _, voice := range openAIVoices {
		if voice.ID == id {
			return true
		}
	}

	return false
}

func (o *openAITTS) Name() string {
	return openAITTSName
}

type openAISpeechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

func (o *openAITTS) Synthesize(ctx context.Context, req core.SynthesisRequest) (core.AudioBuffer, error) {
	format := req.Format
	if format == "" {
		format = o.format
	}

	err := validateFormat(openAITTSName, format, openAITTSFormats...)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	voice := req.Voice
	if voice == "" {
		voice = o.voice
	}

	if !openAIVoiceKnown(voice) {
		return core.AudioBuffer{}, fmt.Errorf(
			"%w: %s has no voice %q", core.ErrProviderRequest, openAITTSName, voice,
		)
	}

	speed := req.Speed
	if speed == 0 {
		speed = o.speed
	}

	payload, err := json.Marshal(openAISpeechRequest{
		Model:          o.model,
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
			o.baseURL+apiOpenAISpeech,
			bytes.NewReader(payload),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

		return httpReq, nil
	}

	data, err := readAudioResponse(ctx, o.httpClient, build)
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf("openai synthesis failed: %w", err)
	}

	o.log.Info("Synthesized %d bytes via %s (voice %s)", len(data), openAITTSName, voice)

	return core.AudioBuffer{
		Data:     data,
		Format:   core.FormatSpec{Container: format},
		Duration: 0,
	}, nil
}

// Voices returns the API's fixed catalog without a network call.
func (o *openAITTS) Voices(_ context.Context) ([]core.VoiceDescriptor, error) {
	out := make([]core.VoiceDescriptor, len(openAIVoices))
	copy(out, openAIVoices)

	return out, nil
}
