package core

import "time"

// Format identifies an audio container.
type Format string

// Supported audio containers.
const (
	FormatOGG  Format = "ogg"
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatM4A  Format = "m4a"
	FormatFLAC Format = "flac"
	FormatOPUS Format = "opus"
	FormatPCM  Format = "pcm"
)

// supportedFormats is the closed set of containers the pipeline can carry.
// Insertion into this set requires converter support for both directions.
var supportedFormats = map[Format]struct{}{
	FormatOGG:  {},
	FormatMP3:  {},
	FormatWAV:  {},
	FormatM4A:  {},
	FormatFLAC: {},
	FormatOPUS: {},
	FormatPCM:  {},
}

// IsSupportedFormat reports whether the container is in the supported set.
func IsSupportedFormat(f Format) bool {
	_, ok := supportedFormats[f]

	return ok
}

// FormatSpec fully describes the on-the-wire shape of an audio payload:
// container, codec, sample rate and channel count. A zero value in Codec,
// SampleRate or Channels means "unspecified" and is treated as a wildcard
// when two specs are compared.
type FormatSpec struct {
	Container  Format `json:"container"`
	Codec      string `json:"codec,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BitRate    string `json:"bit_rate,omitempty"`
}

// Matches reports whether a payload declared as spec already satisfies the
// target. Unset target fields match anything; BitRate is advisory and does
// not participate in the comparison.
func (s FormatSpec) Matches(target FormatSpec) bool {
	if s.Container != target.Container {
		return false
	}

	if target.Codec != "" && s.Codec != target.Codec {
		return false
	}

	if target.SampleRate != 0 && s.SampleRate != target.SampleRate {
		return false
	}

	if target.Channels != 0 && s.Channels != target.Channels {
		return false
	}

	return true
}

// AudioBuffer is an opaque audio payload plus its declared format metadata.
// Buffers are transient: each pipeline stage produces a new buffer and never
// mutates one it received.
type AudioBuffer struct {
	Data     []byte
	Format   FormatSpec
	Duration time.Duration
}

// TranscribeOptions carries per-call speech recognition knobs.
type TranscribeOptions struct {
	// Language is a hint for backends that cannot auto-detect; empty means
	// auto-detect where the backend supports it.
	Language string
}

// Segment is one timed span of a transcript, when the backend supplies timing.
type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Transcript is the result of speech recognition.
type Transcript struct {
	Text     string
	Language string
	Duration time.Duration
	Segments []Segment
}

// SynthesisRequest describes one text-to-speech call. Quality knobs
// (Stability, SimilarityBoost) are only honored by providers that have them.
type SynthesisRequest struct {
	Text            string
	Voice           string
	Format          Format
	Speed           float64
	Stability       float64
	SimilarityBoost float64
}

// VoiceDescriptor is a read-only catalog entry for a selectable voice.
type VoiceDescriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Locale string `json:"locale,omitempty"`
	Gender string `json:"gender,omitempty"`
}
