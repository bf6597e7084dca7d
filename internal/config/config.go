// Package config provides the configuration structure and resolver for the
// voice service.
//
// Configuration is a TOML document with sections [stt], [tts], [audio],
// [defaults], [platforms.*], [nats] and [paths]. String values may reference
// secrets as ${ENV_VAR}; references are dereferenced once at load time and an
// unset variable is a resolution error, so literal secrets never live in the
// document. Unknown fields are ignored for forward compatibility. Resolution
// never contacts a network endpoint.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/voice-service/internal/core"
)

// Provider names accepted by the factories. Validation here only checks the
// fields a selected provider requires; unknown names are rejected by the
// factories themselves.
const (
	STTWhisperCPP = "whisper-cpp"
	STTOpenAI     = "openai"
	STTGoogle     = "google"

	TTSKokoro     = "kokoro"
	TTSQwenSpeech = "qwen-speech"
	TTSOpenAI     = "openai"
	TTSElevenLabs = "elevenlabs"
)

// Default knobs applied when the document leaves them unset.
const (
	defaultTimeoutSeconds = 30
	minSpeed              = 0.25
	maxSpeed              = 4.0
)

var envPlaceholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// STTConfig selects and parameterizes the speech-to-text backend.
type STTConfig struct {
	Provider       string `toml:"provider"`
	Model          string `toml:"model"`
	Device         string `toml:"device"`
	ComputeType    string `toml:"compute_type"`
	BinaryPath     string `toml:"binary_path"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Language       string `toml:"language"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// TTSConfig selects and parameterizes the text-to-speech backend.
type TTSConfig struct {
	Provider        string  `toml:"provider"`
	BaseURL         string  `toml:"base_url"`
	APIKey          string  `toml:"api_key"`
	Model           string  `toml:"model"`
	Voice           string  `toml:"voice"`
	Format          string  `toml:"format"`
	Speed           float64 `toml:"speed"`
	Stability       float64 `toml:"stability"`
	SimilarityBoost float64 `toml:"similarity_boost"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`
}

// AudioConfig parameterizes the external converter.
type AudioConfig struct {
	FFmpegPath string `toml:"ffmpeg_path"`
	TempDir    string `toml:"temp_dir"`
}

// DefaultsConfig holds the process-wide modality routing policy. The two
// booleans are pointers so an absent field keeps its built-in value
// instead of collapsing to false. Phrase sets are optional; the router
// ships built-in sets used when these are empty.
type DefaultsConfig struct {
	IncludeTranscriptionOnVoiceResponse *bool    `toml:"include_transcription_on_voice_response"`
	VoiceResponseToTextMessage          *bool    `toml:"voice_response_to_text_message"`
	VoiceOnlyPhrases                    []string `toml:"voice_only_phrases"`
	VoiceRequestPhrases                 []string `toml:"voice_request_phrases"`
}

// PlatformConfig declares the audio container a messaging platform requires
// for outgoing voice replies.
type PlatformConfig struct {
	Container string `toml:"container"`
	Codec     string `toml:"codec"`
	BitRate   string `toml:"bit_rate"`
}

// NATSConfig holds the configuration for the NATS job surface.
type NATSConfig struct {
	URL                    string `toml:"url"`
	TranscribeSubject      string `toml:"transcribe_subject"`
	SpeakSubject           string `toml:"speak_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure. It is resolved once at startup
// and treated as an immutable snapshot; swapping providers means re-resolving
// and reconstructing, never mutating a live instance.
type Config struct {
	STT       STTConfig                 `toml:"stt"`
	TTS       TTSConfig                 `toml:"tts"`
	Audio     AudioConfig               `toml:"audio"`
	Defaults  DefaultsConfig            `toml:"defaults"`
	Platforms map[string]PlatformConfig `toml:"platforms"`
	NATS      NATSConfig                `toml:"nats"`
	Paths     PathsConfig               `toml:"paths"`
}

// Load reads, resolves and validates the configuration document at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", core.ErrConfig, path, err)
	}

	return Resolve(raw)
}

// Resolve expands environment placeholders in the raw document, decodes it
// and validates the result.
func Resolve(raw []byte) (*Config, error) {
	expanded, err := expandPlaceholders(string(raw))
	if err != nil {
		return nil, err
	}

	var cfg Config

	err = toml.Unmarshal([]byte(expanded), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", core.ErrConfig, err)
	}

	cfg.applyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandPlaceholders replaces every ${VAR} reference with the value of the
// environment variable. Any unset variable fails resolution so a missing
// secret is caught at startup, not on the first provider call.
func expandPlaceholders(document string) (string, error) {
	var missing []string

	expanded := envPlaceholderPattern.ReplaceAllStringFunc(document, func(ref string) string {
		name := envPlaceholderPattern.FindStringSubmatch(ref)[1]

		value, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)

			return ref
		}

		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf(
			"%w: unresolved environment variables: %s",
			core.ErrConfig,
			strings.Join(missing, ", "),
		)
	}

	return expanded, nil
}

func (c *Config) applyDefaults() {
	if c.STT.TimeoutSeconds == 0 {
		c.STT.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.TTS.TimeoutSeconds == 0 {
		c.TTS.TimeoutSeconds = defaultTimeoutSeconds
	}

	if c.Audio.TempDir == "" {
		c.Audio.TempDir = os.TempDir()
	}
}

// Validate checks that every field the selected providers require is present
// and that enumerated options are inside their allowed sets.
func (c *Config) Validate() error {
	err := c.validateSTT()
	if err != nil {
		return err
	}

	err = c.validateTTS()
	if err != nil {
		return err
	}

	return c.validatePlatforms()
}

func (c *Config) validateSTT() error {
	sttCfg := c.STT

	switch sttCfg.Provider {
	case "":
		return fmt.Errorf("%w: stt.provider is required", core.ErrConfig)
	case STTWhisperCPP:
		if sttCfg.Model == "" {
			return fmt.Errorf("%w: stt.model is required for %s", core.ErrConfig, STTWhisperCPP)
		}

		err := validateEnum("stt.device", sttCfg.Device, "", "auto", "cpu", "cuda")
		if err != nil {
			return err
		}

		return validateEnum("stt.compute_type", sttCfg.ComputeType, "", "int8", "float16", "float32")
	case STTOpenAI:
		return requireField("stt.api_key", sttCfg.APIKey)
	case STTGoogle:
		err := requireField("stt.api_key", sttCfg.APIKey)
		if err != nil {
			return err
		}

		// The Google backend has no auto-detection; a language must be declared.
		return requireField("stt.language", sttCfg.Language)
	}

	// An unrecognized name is left for the factory so the error carries the
	// full list of registered backends.
	return nil
}

func (c *Config) validateTTS() error {
	ttsCfg := c.TTS

	if ttsCfg.Provider == "" {
		return fmt.Errorf("%w: tts.provider is required", core.ErrConfig)
	}

	if ttsCfg.Format != "" && !core.IsSupportedFormat(core.Format(ttsCfg.Format)) {
		return fmt.Errorf("%w: tts.format %q is not supported", core.ErrConfig, ttsCfg.Format)
	}

	if ttsCfg.Speed != 0 && (ttsCfg.Speed < minSpeed || ttsCfg.Speed > maxSpeed) {
		return fmt.Errorf(
			"%w: tts.speed %.2f outside [%.2f, %.2f]",
			core.ErrConfig, ttsCfg.Speed, minSpeed, maxSpeed,
		)
	}

	switch ttsCfg.Provider {
	case TTSKokoro, TTSQwenSpeech:
		return requireField("tts.base_url", ttsCfg.BaseURL)
	case TTSOpenAI:
		return requireField("tts.api_key", ttsCfg.APIKey)
	case TTSElevenLabs:
		err := requireField("tts.api_key", ttsCfg.APIKey)
		if err != nil {
			return err
		}

		return requireField("tts.voice", ttsCfg.Voice)
	}

	return nil
}

func (c *Config) validatePlatforms() error {
	for name, platform := range c.Platforms {
		if !core.IsSupportedFormat(core.Format(platform.Container)) {
			return fmt.Errorf(
				"%w: platforms.%s.container %q is not supported",
				core.ErrConfig, name, platform.Container,
			)
		}
	}

	return nil
}

func requireField(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", core.ErrConfig, field)
	}

	return nil
}

func validateEnum(field, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}

	return fmt.Errorf(
		"%w: %s %q not in {%s}",
		core.ErrConfig, field, value, strings.Join(allowed, ", "),
	)
}
