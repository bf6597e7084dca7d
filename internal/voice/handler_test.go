package voice_test

import (
	"context"
	"errors"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-service/internal/audio"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/routing"
	"github.com/book-expert/voice-service/internal/voice"
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

type fakeSTT struct {
	transcript core.Transcript
	err        error
	seen       core.AudioBuffer
}

func (f *fakeSTT) Name() string { return "fake-stt" }

func (f *fakeSTT) Transcribe(
	_ context.Context,
	buf core.AudioBuffer,
	_ core.TranscribeOptions,
) (core.Transcript, error) {
	f.seen = buf

	return f.transcript, f.err
}

type fakeTTS struct {
	audio core.AudioBuffer
	err   error
	seen  core.SynthesisRequest
}

func (f *fakeTTS) Name() string { return "fake-tts" }

func (f *fakeTTS) Synthesize(_ context.Context, req core.SynthesisRequest) (core.AudioBuffer, error) {
	f.seen = req

	return f.audio, f.err
}

func (f *fakeTTS) Voices(_ context.Context) ([]core.VoiceDescriptor, error) {
	return []core.VoiceDescriptor{{ID: "v1", Name: "Voice One"}}, f.err
}

type fakeConverter struct {
	err     error
	targets []core.FormatSpec
}

func (f *fakeConverter) Convert(
	_ context.Context,
	buf core.AudioBuffer,
	target core.FormatSpec,
) (core.AudioBuffer, error) {
	f.targets = append(f.targets, target)

	if f.err != nil {
		return core.AudioBuffer{}, f.err
	}

	return core.AudioBuffer{Data: buf.Data, Format: target, Duration: buf.Duration}, nil
}

func telegramPlatforms() map[string]core.FormatSpec {
	return map[string]core.FormatSpec{
		"telegram": {
			Container:  core.FormatOGG,
			Codec:      "libopus",
			SampleRate: 48000,
			BitRate:    "64k",
		},
	}
}

func newHandler(
	t *testing.T,
	sttProvider *fakeSTT,
	ttsProvider *fakeTTS,
	converter *fakeConverter,
) *voice.Handler {
	t.Helper()

	return voice.NewWithComponents(
		sttProvider,
		ttsProvider,
		converter,
		routing.NewDefaults(),
		telegramPlatforms(),
		"",
		createTestLogger(t),
	)
}

func TestTranscribe_NormalizesBeforeProvider(t *testing.T) {
	t.Parallel()

	sttProvider := &fakeSTT{transcript: core.Transcript{Text: "hello"}}
	ttsProvider := &fakeTTS{}
	converter := &fakeConverter{}

	handler := newHandler(t, sttProvider, ttsProvider, converter)

	input := core.AudioBuffer{
		Data:   []byte("ogg-bytes"),
		Format: core.FormatSpec{Container: core.FormatOGG},
	}

	transcript, err := handler.Transcribe(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "hello", transcript.Text)

	require.Len(t, converter.targets, 1)
	assert.Equal(t, audio.STTTarget(), converter.targets[0])
	assert.Equal(t, audio.STTTarget(), sttProvider.seen.Format)
}

func TestTranscribe_ConversionFailureStopsPipeline(t *testing.T) {
	t.Parallel()

	sttProvider := &fakeSTT{transcript: core.Transcript{Text: "never"}}
	converter := &fakeConverter{err: core.ErrUnsupportedFormat}

	handler := newHandler(t, sttProvider, &fakeTTS{}, converter)

	_, err := handler.Transcribe(context.Background(), core.AudioBuffer{
		Format: core.FormatSpec{Container: core.FormatOGG},
	})
	require.ErrorIs(t, err, core.ErrUnsupportedFormat)
	assert.Empty(t, sttProvider.seen.Data)
}

func TestTranscribe_ProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	sttProvider := &fakeSTT{err: core.ErrProviderTimeout}

	handler := newHandler(t, sttProvider, &fakeTTS{}, &fakeConverter{})

	_, err := handler.Transcribe(context.Background(), core.AudioBuffer{
		Format: core.FormatSpec{Container: core.FormatWAV},
	})
	require.ErrorIs(t, err, core.ErrProviderTimeout)
	assert.Contains(t, err.Error(), "fake-stt")
}

func TestSynthesize_NormalizesTextAndConvertsForPlatform(t *testing.T) {
	t.Parallel()

	ttsProvider := &fakeTTS{audio: core.AudioBuffer{
		Data:   []byte("wav-bytes"),
		Format: core.FormatSpec{Container: core.FormatWAV},
	}}
	converter := &fakeConverter{}

	handler := newHandler(t, &fakeSTT{}, ttsProvider, converter)

	out, err := handler.Synthesize(
		context.Background(),
		"See [the docs](https://example.com) for more",
		voice.SynthesizeOptions{Platform: "telegram", Voice: "v1"},
	)
	require.NoError(t, err)

	assert.Equal(t, "See the docs for more.", ttsProvider.seen.Text)
	assert.Equal(t, "v1", ttsProvider.seen.Voice)

	require.Len(t, converter.targets, 1)
	assert.Equal(t, core.FormatOGG, converter.targets[0].Container)
	assert.Equal(t, "libopus", converter.targets[0].Codec)
	assert.Equal(t, core.FormatOGG, out.Format.Container)
}

func TestSynthesize_NoPlatformSkipsConversion(t *testing.T) {
	t.Parallel()

	ttsProvider := &fakeTTS{audio: core.AudioBuffer{
		Data:   []byte("mp3-bytes"),
		Format: core.FormatSpec{Container: core.FormatMP3},
	}}
	converter := &fakeConverter{}

	handler := newHandler(t, &fakeSTT{}, ttsProvider, converter)

	out, err := handler.Synthesize(context.Background(), "Hello.", voice.SynthesizeOptions{})
	require.NoError(t, err)
	assert.Empty(t, converter.targets)
	assert.Equal(t, core.FormatMP3, out.Format.Container)
}

func TestSynthesize_UnknownPlatformRejected(t *testing.T) {
	t.Parallel()

	ttsProvider := &fakeTTS{}

	handler := newHandler(t, &fakeSTT{}, ttsProvider, &fakeConverter{})

	_, err := handler.Synthesize(context.Background(), "Hello.", voice.SynthesizeOptions{
		Platform: "pager",
	})
	require.ErrorIs(t, err, core.ErrProviderRequest)
	assert.Contains(t, err.Error(), "pager")
	// Synthesis must not run for an unroutable request.
	assert.Empty(t, ttsProvider.seen.Text)
}

func TestSynthesize_EmptyTextRejected(t *testing.T) {
	t.Parallel()

	handler := newHandler(t, &fakeSTT{}, &fakeTTS{}, &fakeConverter{})

	_, err := handler.Synthesize(context.Background(), "   ", voice.SynthesizeOptions{})
	require.ErrorIs(t, err, core.ErrProviderRequest)
}

func TestSynthesize_ProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	ttsProvider := &fakeTTS{err: core.ErrProviderRequest}

	handler := newHandler(t, &fakeSTT{}, ttsProvider, &fakeConverter{})

	_, err := handler.Synthesize(context.Background(), "Hello.", voice.SynthesizeOptions{})
	require.ErrorIs(t, err, core.ErrProviderRequest)
	assert.Contains(t, err.Error(), "fake-tts")
}

func TestVoices_Propagates(t *testing.T) {
	t.Parallel()

	handler := newHandler(t, &fakeSTT{}, &fakeTTS{}, &fakeConverter{})

	voices, err := handler.Voices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 1)
	assert.Equal(t, "v1", voices[0].ID)
}

func TestVoices_ErrorNamed(t *testing.T) {
	t.Parallel()

	handler := newHandler(t, &fakeSTT{}, &fakeTTS{err: errors.New("catalog down")}, &fakeConverter{})

	_, err := handler.Voices(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake-tts")
}

func TestDecideModalities_UsesWiredDefaults(t *testing.T) {
	t.Parallel()

	handler := newHandler(t, &fakeSTT{}, &fakeTTS{}, &fakeConverter{})

	decision := handler.DecideModalities(routing.ModalityVoice, "What's the weather?", routing.OverrideNone)
	assert.True(t, decision.IncludeVoice)
	assert.True(t, decision.IncludeText)
}
