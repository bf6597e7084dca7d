// Package stt_test tests the speech-to-text provider set.
package stt_test

import (
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/stt"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "stt-test.log")
	require.NoError(t, err)

	return log
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := config.STTConfig{}
	cfg.Provider = "deepgram"

	_, err := stt.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrUnknownProvider)
	require.Contains(t, err.Error(), "deepgram")
}

func TestNew_OpenAIProvider(t *testing.T) {
	t.Parallel()

	cfg := config.STTConfig{}
	cfg.Provider = config.STTOpenAI
	cfg.APIKey = "sk-test"
	cfg.TimeoutSeconds = 30

	provider, err := stt.New(cfg, createTestLogger(t))
	require.NoError(t, err)
	require.Equal(t, "openai", provider.Name())
}

func TestNew_WhisperCPPMissingModel(t *testing.T) {
	t.Parallel()

	cfg := config.STTConfig{}
	cfg.Provider = config.STTWhisperCPP
	cfg.Model = "no-such-model.bin"
	cfg.BinaryPath = "sh" // resolvable; the model is what must fail

	_, err := stt.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrProviderInit)
	require.Contains(t, err.Error(), "no-such-model.bin")
}

func TestNew_WhisperCPPMissingBinary(t *testing.T) {
	t.Parallel()

	cfg := config.STTConfig{}
	cfg.Provider = config.STTWhisperCPP
	cfg.Model = "ggml-base.bin"
	cfg.BinaryPath = "/nonexistent/whisper-cli"

	_, err := stt.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrProviderInit)
}
