package stt_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/stt"
)

const verboseResponse = `{
	"text": "Hello there, how are you?",
	"language": "english",
	"duration": 2.5,
	"segments": [
		{"start": 0.0, "end": 1.2, "text": "Hello there,"},
		{"start": 1.2, "end": 2.5, "text": "how are you?"}
	]
}`

func normalizedBuffer() core.AudioBuffer {
	return core.AudioBuffer{
		Data: []byte("wav-bytes"),
		Format: core.FormatSpec{
			Container:  core.FormatWAV,
			Codec:      "pcm_s16le",
			SampleRate: 16000,
			Channels:   1,
		},
		Duration: 0,
	}
}

func newOpenAIProvider(t *testing.T, baseURL string) core.STTProvider {
	t.Helper()

	cfg := config.STTConfig{}
	cfg.Provider = config.STTOpenAI
	cfg.APIKey = "sk-test"
	cfg.BaseURL = baseURL
	cfg.TimeoutSeconds = 5

	provider, err := stt.New(cfg, createTestLogger(t))
	require.NoError(t, err)

	return provider
}

func TestOpenAITranscribe_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		err := r.ParseMultipartForm(1 << 20)
		require.NoError(t, err)
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "verbose_json", r.FormValue("response_format"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseResponse))
	}))
	defer server.Close()

	provider := newOpenAIProvider(t, server.URL)

	transcript, err := provider.Transcribe(context.Background(), normalizedBuffer(), core.TranscribeOptions{})
	require.NoError(t, err)

	assert.Equal(t, "Hello there, how are you?", transcript.Text)
	assert.Equal(t, "english", transcript.Language)
	assert.Equal(t, 2500*time.Millisecond, transcript.Duration)
	require.Len(t, transcript.Segments, 2)
	assert.Equal(t, "Hello there,", transcript.Segments[0].Text)
	assert.Equal(t, 1200*time.Millisecond, transcript.Segments[0].End)
}

func TestOpenAITranscribe_CredentialFailureNotRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"error":{"message":"Incorrect API key"}}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := newOpenAIProvider(t, server.URL)

	_, err := provider.Transcribe(context.Background(), normalizedBuffer(), core.TranscribeOptions{})
	require.ErrorIs(t, err, core.ErrProviderRequest)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestOpenAITranscribe_TransientFailureRetriedOnce(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseResponse))
	}))
	defer server.Close()

	provider := newOpenAIProvider(t, server.URL)

	transcript, err := provider.Transcribe(context.Background(), normalizedBuffer(), core.TranscribeOptions{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	assert.NotEmpty(t, transcript.Text)
}

func TestOpenAITranscribe_LanguageHintForwarded(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := r.ParseMultipartForm(1 << 20)
		require.NoError(t, err)
		assert.Equal(t, "de", r.FormValue("language"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(verboseResponse))
	}))
	defer server.Close()

	provider := newOpenAIProvider(t, server.URL)

	_, err := provider.Transcribe(
		context.Background(),
		normalizedBuffer(),
		core.TranscribeOptions{Language: "de"},
	)
	require.NoError(t, err)
}
