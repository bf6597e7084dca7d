// Package voice composes the provider set, the audio converter, the text
// normalizer and the modality router into the service's public surface:
// transcribe, synthesize, list voices and decide modalities. The handler
// owns no state beyond its wired components and is safe for concurrent
// use across independent messages.
package voice

import (
	"context"
	"fmt"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/audio"
	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/routing"
	"github.com/book-expert/voice-service/internal/stt"
	"github.com/book-expert/voice-service/internal/text"
	"github.com/book-expert/voice-service/internal/tts"
)

// AudioConverter is the conversion capability the handler needs. The
// production implementation shells out to ffmpeg; tests substitute an
// in-memory fake.
type AudioConverter interface {
	Convert(ctx context.Context, buf core.AudioBuffer, target core.FormatSpec) (core.AudioBuffer, error)
}

// SynthesizeOptions carries per-call adjustments to the configured
// synthesis parameters. Zero values mean "use the configured default".
type SynthesizeOptions struct {
	Voice    string
	Platform string
	Speed    float64
}

// Handler is the façade over the voice pipeline.
type Handler struct {
	sttProvider core.STTProvider
	ttsProvider core.TTSProvider
	converter   AudioConverter
	normalizer  *text.Normalizer
	defaults    routing.Defaults
	platforms   map[string]core.FormatSpec
	language    string
	log         *logger.Logger
}

// New wires a handler from resolved configuration. Provider construction
// and converter probing happen here, so a missing external tool or a bad
// provider name surfaces at startup.
func New(cfg *config.Config, log *logger.Logger) (*Handler, error) {
	sttProvider, err := stt.New(cfg.STT, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build stt provider: %w", err)
	}

	ttsProvider, err := tts.New(cfg.TTS, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build tts provider: %w", err)
	}

	converter, err := audio.New(cfg.Audio.FFmpegPath, cfg.Audio.TempDir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to build audio converter: %w", err)
	}

	return NewWithComponents(
		sttProvider,
		ttsProvider,
		converter,
		routingDefaults(cfg.Defaults),
		platformTargets(cfg.Platforms),
		cfg.STT.Language,
		log,
	), nil
}

// NewWithComponents wires a handler from already-built components. Used
// by New and by tests that substitute fakes.
func NewWithComponents(
	sttProvider core.STTProvider,
	ttsProvider core.TTSProvider,
	converter AudioConverter,
	defaults routing.Defaults,
	platforms map[string]core.FormatSpec,
	language string,
	log *logger.Logger,
) *Handler {
	return &Handler{
		sttProvider: sttProvider,
		ttsProvider: ttsProvider,
		converter:   converter,
		normalizer:  text.NewNormalizer(),
		defaults:    defaults,
		platforms:   platforms,
		language:    language,
		log:         log,
	}
}

// Transcribe normalizes incoming audio to the recognition target and runs
// it through the configured backend. Errors pass through classified;
// nothing is swallowed or degraded here.
func (h *Handler) Transcribe(ctx context.Context, buf core.AudioBuffer) (core.Transcript, error) {
	normalized, err := h.converter.Convert(ctx, buf, audio.STTTarget())
	if err != nil {
		return core.Transcript{}, fmt.Errorf("failed to normalize audio for transcription: %w", err)
	}

	transcript, err := h.sttProvider.Transcribe(ctx, normalized, core.TranscribeOptions{
		Language: h.language,
	})
	if err != nil {
		return core.Transcript{}, fmt.Errorf(
			"transcription via %s failed: %w", h.sttProvider.Name(), err,
		)
	}

	h.log.Info(
		"Transcribed %s of audio via %s (%d chars)",
		transcript.Duration, h.sttProvider.Name(), len(transcript.Text),
	)

	return transcript, nil
}

// Synthesize rewrites the text into a speakable form, runs synthesis and
// converts the result to the target platform's container. An unknown
// platform name is a request error; the caller picked it.
func (h *Handler) Synthesize(
	ctx context.Context,
	input string,
	opts SynthesizeOptions,
) (core.AudioBuffer, error) {
	speakable := h.normalizer.Speakable(input)
	if speakable == "" {
		return core.AudioBuffer{}, fmt.Errorf(
			"%w: nothing speakable in input text", core.ErrProviderRequest,
		)
	}

	target, err := h.platformTarget(opts.Platform)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	synthesized, err := h.ttsProvider.Synthesize(ctx, core.SynthesisRequest{
		Text:  speakable,
		Voice: opts.Voice,
		Speed: opts.Speed,
	})
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf(
			"synthesis via %s failed: %w", h.ttsProvider.Name(), err,
		)
	}

	if opts.Platform == "" {
		return synthesized, nil
	}

	converted, err := h.converter.Convert(ctx, synthesized, target)
	if err != nil {
		return core.AudioBuffer{}, fmt.Errorf(
			"failed to convert audio for platform %s: %w", opts.Platform, err,
		)
	}

	return converted, nil
}

// Voices lists the active synthesis backend's catalog in its declared
// order.
func (h *Handler) Voices(ctx context.Context) ([]core.VoiceDescriptor, error) {
	voices, err := h.ttsProvider.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list voices via %s: %w", h.ttsProvider.Name(), err)
	}

	return voices, nil
}

// DecideModalities evaluates the routing policy for one message.
func (h *Handler) DecideModalities(
	input routing.Modality,
	messageText string,
	override routing.Override,
) routing.Decision {
	return routing.Decide(input, messageText, h.defaults, override)
}

func (h *Handler) platformTarget(platform string) (core.FormatSpec, error) {
	if platform == "" {
		return core.FormatSpec{}, nil
	}

	target, ok := h.platforms[strings.ToLower(platform)]
	if !ok {
		known := make([]string, 0, len(h.platforms))
		for name := range h.platforms {
			known = append(known, name)
		}

		return core.FormatSpec{}, fmt.Errorf(
			"%w: unknown platform %q (configured: %s)",
			core.ErrProviderRequest, platform, strings.Join(known, ", "),
		)
	}

	return target, nil
}

// routingDefaults merges the configured policy with the built-in phrase
// sets when the document leaves them empty.
func routingDefaults(cfg config.DefaultsConfig) routing.Defaults {
	defaults := routing.NewDefaults()

	if cfg.IncludeTranscriptionOnVoiceResponse != nil {
		defaults.IncludeTranscriptionOnVoiceResponse = *cfg.IncludeTranscriptionOnVoiceResponse
	}

	if cfg.VoiceResponseToTextMessage != nil {
		defaults.VoiceResponseToTextMessage = *cfg.VoiceResponseToTextMessage
	}

	if len(cfg.VoiceOnlyPhrases) > 0 {
		defaults.VoiceOnlyPhrases = cfg.VoiceOnlyPhrases
	}

	if len(cfg.VoiceRequestPhrases) > 0 {
		defaults.VoiceRequestPhrases = cfg.VoiceRequestPhrases
	}

	return defaults
}

func platformTargets(platforms map[string]config.PlatformConfig) map[string]core.FormatSpec {
	targets := make(map[string]core.FormatSpec, len(platforms))

	for name, platform := range platforms {
		targets[strings.ToLower(name)] = core.FormatSpec{
			Container: core.Format(platform.Container),
			Codec:     platform.Codec,
			BitRate:   platform.BitRate,
		}
	}

	return targets
}
