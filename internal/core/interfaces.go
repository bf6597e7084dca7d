// Package core defines the shared data model, capability interfaces and error
// taxonomy for the voice service.
package core

import "context"

// STTProvider converts audio into a transcript. Implementations perform
// exactly one backend call per Transcribe invocation and translate backend
// errors into the shared taxonomy. Implementations must be safe for
// concurrent use; backends that cannot run concurrent inference serialize
// internally.
type STTProvider interface {
	Name() string
	Transcribe(ctx context.Context, audio AudioBuffer, opts TranscribeOptions) (Transcript, error)
}

// TTSProvider converts text into audio and exposes its voice catalog.
// Voices returns entries in the provider's declared catalog order, stable
// across calls.
type TTSProvider interface {
	Name() string
	Synthesize(ctx context.Context, req SynthesisRequest) (AudioBuffer, error)
	Voices(ctx context.Context) ([]VoiceDescriptor, error)
}

// ObjectStore is a key-value blob store for audio payloads.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}
