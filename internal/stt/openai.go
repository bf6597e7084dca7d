package stt

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/httpx"
	"github.com/book-expert/voice-service/internal/voiceutils"
)

const (
	openAISTTName        = "openai"
	defaultOpenAIBaseURL = "https://api.openai.com"
	defaultWhisperModel  = "whisper-1"
	apiTranscriptions    = "/v1/audio/transcriptions"
)

// Multipart form field names.
const (
	formFieldFile           = "file"
	formFieldModel          = "model"
	formFieldLanguage       = "language"
	formFieldResponseFormat = "response_format"
	responseFormatVerbose   = "verbose_json"
)

// openAISTT transcribes audio through the OpenAI transcription API: one
// multipart upload per call, JSON response with text, detected language,
// duration and a segment timeline.
type openAISTT struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	log        *logger.Logger
}

func newOpenAI(cfg config.STTConfig, log *logger.Logger) (*openAISTT, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultWhisperModel
	}

	return &openAISTT{
		httpClient: httpx.NewClient(time.Duration(cfg.TimeoutSeconds) * time.Second),
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		log:        log,
	}, nil
}

func (o *openAISTT) Name() string {
	return openAISTTName
}

// Transcribe uploads the audio as multipart form data. The body is built
// once; each retry attempt gets a fresh reader over the same bytes.
func (o *openAISTT) Transcribe(
	ctx context.Context,
	audio core.AudioBuffer,
	opts core.TranscribeOptions,
) (core.Transcript, error) {
	body, contentType, err := o.buildForm(audio, opts)
	if err != nil {
		return core.Transcript{}, err
	}

	build := func(ctx context.Context) (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			o.baseURL+apiTranscriptions,
			bytes.NewReader(body),
		)
		if reqErr != nil {
			return nil, reqErr
		}

		req.Header.Set("Authorization", "Bearer "+o.apiKey)
		req.Header.Set("Content-Type", contentType)

		return req, nil
	}

	resp, err := httpx.Do(ctx, o.httpClient, build)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("openai transcription failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded verboseTranscription

	err = decodeJSON(resp.Body, &decoded)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("failed to decode transcription response: %w", err)
	}

	transcript := decoded.toTranscript()

	o.log.Info(
		"Transcribed %s of audio via %s",
		voiceutils.FormatDuration(transcript.Duration.Seconds()),
		openAISTTName,
	)

	return transcript, nil
}

func (o *openAISTT) buildForm(
	audio core.AudioBuffer,
	opts core.TranscribeOptions,
) (body []byte, contentType string, err error) {
	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)

	fileName := "audio" + voiceutils.ExtensionFor(audio.Format.Container)

	part, err := writer.CreateFormFile(formFieldFile, fileName)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}

	_, err = part.Write(audio.Data)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write audio data: %w", err)
	}

	err = writer.WriteField(formFieldModel, o.model)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write model field: %w", err)
	}

	err = writer.WriteField(formFieldResponseFormat, responseFormatVerbose)
	if err != nil {
		return nil, "", fmt.Errorf("failed to write response format field: %w", err)
	}

	// Language is optional; the backend auto-detects when absent.
	if opts.Language != "" {
		err = writer.WriteField(formFieldLanguage, opts.Language)
		if err != nil {
			return nil, "", fmt.Errorf("failed to write language field: %w", err)
		}
	}

	err = writer.Close()
	if err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// verboseTranscription mirrors the verbose_json response shape.
type verboseTranscription struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (v verboseTranscription) toTranscript() core.Transcript {
	segments := make([]core.Segment, 0, len(v.Segments))

	for _, seg := range v.Segments {
		segments = append(segments, core.Segment{
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  seg.Text,
		})
	}

	return core.Transcript{
		Text:     v.Text,
		Language: v.Language,
		Duration: secondsToDuration(v.Duration),
		Segments: segments,
	}
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
