package tts_test

import (
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts"
)

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = log.Close()
	})

	return log
}

func TestNew_UnknownProvider(t *testing.T) {
	t.Parallel()

	cfg := config.TTSConfig{Provider: "espeak"}

	_, err := tts.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrUnknownProvider)
	assert.Contains(t, err.Error(), "espeak")
	assert.Contains(t, err.Error(), config.TTSKokoro)
}

func TestNew_KokoroConstruction(t *testing.T) {
	t.Parallel()

	cfg := config.TTSConfig{
		Provider:       config.TTSKokoro,
		BaseURL:        "http://localhost:8880",
		Voice:          "af_sky",
		Format:         "ogg",
		TimeoutSeconds: 5,
	}

	provider, err := tts.New(cfg, createTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "kokoro", provider.Name())
}

func TestNew_QwenRejectsUnknownVoice(t *testing.T) {
	t.Parallel()

	cfg := config.TTSConfig{
		Provider: config.TTSQwenSpeech,
		BaseURL:  "http://localhost:8000",
		Voice:    "narrator7",
	}

	_, err := tts.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrProviderInit)
	assert.Contains(t, err.Error(), "narrator7")
}

func TestNew_QwenRejectsNonWAVFormat(t *testing.T) {
	t.Parallel()

	cfg := config.TTSConfig{
		Provider: config.TTSQwenSpeech,
		BaseURL:  "http://localhost:8000",
		Format:   "mp3",
	}

	_, err := tts.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "qwen-speech")
	assert.Contains(t, err.Error(), "mp3")
}

func TestNew_OpenAIRejectsUnknownVoice(t *testing.T) {
	t.Parallel()

	cfg := config.TTSConfig{
		Provider: config.TTSOpenAI,
		APIKey:   "sk-test",
		Voice:    "bogus",
	}

	_, err := tts.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrProviderInit)
	assert.Contains(t, err.Error(), "bogus")
}

func TestNew_ElevenLabsRejectsUnsupportedFormat(t *testing.T) {
	t.Parallel()

	cfg := config.TTSConfig{
		Provider: config.TTSElevenLabs,
		APIKey:   "el-test",
		Voice:    "21m00Tcm4TlvDq8ikWAM",
		Format:   "flac",
	}

	_, err := tts.New(cfg, createTestLogger(t))
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "elevenlabs")
	assert.Contains(t, err.Error(), "flac")
}
