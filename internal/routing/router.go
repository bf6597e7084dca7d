// Package routing decides, per incoming message, which reply modalities
// the caller should produce. The decision is a pure function of the input
// modality, the message text, static defaults, and an optional explicit
// override; nothing is cached across calls.
package routing

import "strings"

// Modality is the medium of a message, inbound or outbound.
type Modality string

const (
	ModalityVoice Modality = "voice"
	ModalityText  Modality = "text"
)

// Override is an explicit per-message caller intent. It wins over every
// default and phrase match.
type Override string

const (
	OverrideNone       Override = ""
	OverrideVoiceOnly  Override = "voice_only"
	OverrideTextOnly   Override = "text_only"
	OverrideForceVoice Override = "force_voice"
)

// Rule names which branch of the decision table produced a Decision.
const (
	RuleOverride     = "override"
	RuleVoiceDefault = "voice-input-default"
	RuleVoiceOnly    = "voice-only-phrase"
	RuleTextDefault  = "text-input-default"
	RuleVoiceRequest = "voice-request-phrase"
	RuleVoiceToText  = "voice-response-to-text-default"
)

// Defaults is the process-wide routing policy, loaded once from
// configuration and passed in explicitly so tests can supply arbitrary
// values.
type Defaults struct {
	IncludeTranscriptionOnVoiceResponse bool
	VoiceResponseToTextMessage          bool
	VoiceOnlyPhrases                    []string
	VoiceRequestPhrases                 []string
}

// NewDefaults returns the built-in policy: voice input replies carry a
// transcription, text input replies stay text-only unless asked otherwise.
func NewDefaults() Defaults {
	return Defaults{
		IncludeTranscriptionOnVoiceResponse: true,
		VoiceResponseToTextMessage:          false,
		VoiceOnlyPhrases: []string{
			"voice only",
			"voice-only",
			"no text",
			"don't write",
			"just voice",
		},
		VoiceRequestPhrases: []string{
			"say it",
			"out loud",
			"speak",
			"read it to me",
			"voice please",
			"aloud",
		},
	}
}

// Decision is the routing outcome for one message.
type Decision struct {
	IncludeVoice bool
	IncludeText  bool
	Rule         string
}

// Decide evaluates the decision table. Precedence: explicit override,
// then voice-only phrases on voice input, then voice-request phrases on
// text input, then the static defaults. Phrase matching is a
// case-insensitive substring test, not language understanding.
func Decide(input Modality, text string, defaults Defaults, override Override) Decision {
	switch override {
	case OverrideVoiceOnly:
		return Decision{IncludeVoice: true, IncludeText: false, Rule: RuleOverride}
	case OverrideTextOnly:
		return Decision{IncludeVoice: false, IncludeText: true, Rule: RuleOverride}
	case OverrideForceVoice:
		return Decision{IncludeVoice: true, IncludeText: true, Rule: RuleOverride}
	case OverrideNone:
	}

	if input == ModalityVoice {
		return decideVoiceInput(text, defaults)
	}

	return decideTextInput(text, defaults)
}

func decideVoiceInput(text string, defaults Defaults) Decision {
	if matchesAny(text, defaults.VoiceOnlyPhrases) {
		return Decision{IncludeVoice: true, IncludeText: false, Rule: RuleVoiceOnly}
	}

	return Decision{
		IncludeVoice: true,
		IncludeText:  defaults.IncludeTranscriptionOnVoiceResponse,
		Rule:         RuleVoiceDefault,
	}
}

func decideTextInput(text string, defaults Defaults) Decision {
	if matchesAny(text, defaults.VoiceRequestPhrases) {
		return Decision{IncludeVoice: true, IncludeText: true, Rule: RuleVoiceRequest}
	}

	if defaults.VoiceResponseToTextMessage {
		return Decision{IncludeVoice: true, IncludeText: true, Rule: RuleVoiceToText}
	}

	return Decision{IncludeVoice: false, IncludeText: true, Rule: RuleTextDefault}
}

func matchesAny(text string, phrases []string) bool {
	lowered := strings.ToLower(text)

	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}

		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}

	return false
}
