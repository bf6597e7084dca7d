// Package stt provides the speech-to-text provider set: a local whisper.cpp
// batch backend and two cloud REST backends, all behind the core.STTProvider
// capability. Swapping backends is a configuration change only; no call site
// changes.
package stt

import (
	"fmt"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
)

// New maps the configured provider name to a live backend. Construction
// validates the backend's own parameters and never falls back to a different
// provider; all degradation is explicit.
func New(cfg config.STTConfig, log *logger.Logger) (core.STTProvider, error) {
	switch cfg.Provider {
	case config.STTWhisperCPP:
		return newWhisperCPP(cfg, log)
	case config.STTOpenAI:
		return newOpenAI(cfg, log)
	case config.STTGoogle:
		return newGoogleSpeech(cfg, log)
	default:
		return nil, fmt.Errorf(
			"%w: stt provider %q (known: %s, %s, %s)",
			core.ErrUnknownProvider,
			cfg.Provider,
			config.STTWhisperCPP, config.STTOpenAI, config.STTGoogle,
		)
	}
}
