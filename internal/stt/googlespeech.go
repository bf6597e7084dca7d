package stt

import (
	"bytes"
	"context"
	"encoding/base64"
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
	googleSTTName        = "google"
	defaultGoogleBaseURL = "https://speech.googleapis.com"
	apiRecognize         = "/v1/speech:recognize"
	linear16Encoding     = "LINEAR16"
)

// googleSpeech transcribes audio through the Google Cloud Speech-to-Text
// REST API. The backend cannot auto-detect language, so the configured
// language code is mandatory; it reports per-alternative confidence but no
// segment timeline.
type googleSpeech struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	language   string
	log        *logger.Logger
}

func newGoogleSpeech(cfg config.STTConfig, log *logger.Logger) (*googleSpeech, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}

	return &googleSpeech{
		httpClient: httpx.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		language:   cfg.Language,
		log:        log,
	}, nil
}

func (g *googleSpeech) Name() string {
	return googleSTTName
}

// recognizeRequest mirrors the speech:recognize JSON body. Audio arrives
// already normalized to 16 kHz mono PCM, so the declared encoding is fixed.
type recognizeRequest struct {
	Config struct {
		Encoding                   string `json:"encoding"`
		SampleRateHertz            int    `json:"sampleRateHertz"`
		AudioChannelCount          int    `json:"audioChannelCount"`
		LanguageCode               string `json:"languageCode"`
		EnableAutomaticPunctuation bool   `json:"enableAutomaticPunctuation"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

func (g *googleSpeech) Transcribe(
	ctx context.Context,
	audio core.AudioBuffer,
	opts core.TranscribeOptions,
) (core.Transcript, error) {
	language := opts.Language
	if language == "" {
		language = g.language
	}

	var reqBody recognizeRequest

	reqBody.Config.Encoding = linear16Encoding
	reqBody.Config.SampleRateHertz = audio.Format.SampleRate
	reqBody.Config.AudioChannelCount = audio.Format.Channels
	reqBody.Config.LanguageCode = language
	reqBody.Config.EnableAutomaticPunctuation = true
	reqBody.Audio.Content = base64.StdEncoding.EncodeToString(audio.Data)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("failed to marshal recognize request: %w", err)
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			g.baseURL+apiRecognize+"?key="+g.apiKey,
			bytes.NewReader(payload),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Content-Type", "application/json")

		return req, nil
	}

	resp, err := httpx.Do(ctx, g.httpClient, build)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("google recognition failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded recognizeResponse

	err = decodeJSON(resp.Body, &decoded)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("failed to decode recognize response: %w", err)
	}

	var parts []string

	for _, result := range decoded.Results {
		if len(result.Alternatives) == 0 {
			continue
		}

		parts = append(parts, strings.TrimSpace(result.Alternatives[0].Transcript))
	}

	transcript := core.Transcript{
		Text:     strings.Join(parts, " "),
		Language: language,
		Duration: audio.Duration,
		Segments: nil,
	}

	g.log.Info("Transcribed %d result blocks via %s", len(decoded.Results), googleSTTName)

	return transcript, nil
}
