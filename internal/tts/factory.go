// Package tts provides the text-to-speech provider set: two local REST
// engines and two cloud APIs, all behind the core.TTSProvider capability.
// Providers with a static voice catalog validate the configured voice at
// construction; providers with a remote catalog validate lazily on use.
package tts

import (
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
)

// New maps the configured provider name to a live backend. Construction
// never falls back to a different provider.
func New(cfg config.TTSConfig, log *logger.Logger) (core.TTSProvider, error) {
	switch cfg.Provider {
	case config.TTSKokoro:
		return newKokoro(cfg, log)
	case config.TTSQwenSpeech:
		return newQwenSpeech(cfg, log)
	case config.TTSOpenAI:
		return newOpenAITTS(cfg, log)
	case config.TTSElevenLabs:
		return newElevenLabs(cfg, log)
	default:
		return nil, fmt.Errorf(
			"%w: tts provider %q (known: %s, %s, %s, %s)",
			core.ErrUnknownProvider,
			cfg.Provider,
			config.TTSKokoro, config.TTSQwenSpeech, config.TTSOpenAI, config.TTSElevenLabs,
		)
	}
}

// validateFormat checks a requested output container against the set a
// provider can natively emit.
func validateFormat(provider string, format core.Format, supported ...core.Format) error {
	for _, candidate := range supported {
		if format == candidate {
			return nil
		}
	}

	return fmt.Errorf(
		"%w: %s cannot emit container %q",
		core.ErrUnsupportedFormat, provider, format,
	)
}
