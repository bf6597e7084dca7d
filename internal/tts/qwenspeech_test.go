package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/tts"
)

func newQwenProvider(t *testing.T, baseURL string) core.TTSProvider {
	t.Helper()

	cfg := config.TTSConfig{
		Provider:       config.TTSQwenSpeech,
		BaseURL:        baseURL,
		Voice:          "female1",
		TimeoutSeconds: 5,
	}

	provider, err := tts.New(cfg, createTestLogger(t))
	require.NoError(t, err)

	return provider
}

func TestQwenSynthesize_Success(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/generate/speech", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "audio/wav", r.Header.Get("Accept"))

		var body map[string]any

		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)
		assert.Equal(t, "Testing speech.", body["text"])
		assert.Equal(t, "female1", body["speaker"])
		assert.Equal(t, "en", body["language"])

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-wav-bytes"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	provider := newQwenProvider(t, server.URL)

	audio, err := provider.Synthesize(context.Background(), core.SynthesisRequest{Text: "Testing speech."})
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-wav-bytes"), audio.Data)
	assert.Equal(t, core.FormatWAV, audio.Format.Container)
	assert.Equal(t, "pcm_s16le", audio.Format.Codec)
}

func TestQwenSynthesize_CancelledFirstCallDoesNotPoison(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/generate/speech", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF-wav-bytes"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	provider := newQwenProvider(t, server.URL)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := provider.Synthesize(cancelled, core.SynthesisRequest{Text: "Hello."})
	require.Error(t, err)

	// The engine was healthy all along; the aborted probe must not stick.
	audio, err := provider.Synthesize(context.Background(), core.SynthesisRequest{Text: "Hello."})
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-wav-bytes"), audio.Data)
}

func TestQwenSynthesize_WrongContentTypeRejected(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/generate/speech", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>proxy error page</html>"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	provider := newQwenProvider(t, server.URL)

	_, err := provider.Synthesize(context.Background(), core.SynthesisRequest{Text: "Hello."})
	require.ErrorIs(t, err, core.ErrProviderRequest)
	assert.Contains(t, err.Error(), "text/html")
}

func TestQwenSynthesize_RejectsForeignFormat(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	provider := newQwenProvider(t, server.URL)

	_, err := provider.Synthesize(context.Background(), core.SynthesisRequest{
		Text:   "Hello.",
		Format: core.FormatOGG,
	})
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
}

func TestQwenVoices_FixedCatalog(t *testing.T) {
	t.Parallel()

	// No server: the catalog is part of the service contract.
	provider := newQwenProvider(t, "http://localhost:1")

	voices, err := provider.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 3)
	assert.Equal(t, "default", voices[0].ID)
	assert.Equal(t, "male1", voices[1].ID)
	assert.Equal(t, "female1", voices[2].ID)
}
