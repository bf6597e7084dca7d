// Package events defines the message schemas carried over the NATS job
// surface. Every event embeds a header identifying the workflow it
// belongs to; payload audio travels through the object store and is
// referenced by key, never inlined.
package events

import "time"

// EventHeader identifies one event inside a workflow.
type EventHeader struct {
	Timestamp  time.Time `json:"timestamp"`
	WorkflowID string    `json:"workflow_id"`
	EventID    string    `json:"event_id"`
}

// VoiceMessageReceivedEvent announces an incoming voice message whose
// audio has been uploaded to the object store.
type VoiceMessageReceivedEvent struct {
	Header    EventHeader `json:"header"`
	AudioKey  string      `json:"audio_key"`
	Platform  string      `json:"platform"`
	Container string      `json:"container"`
	Override  string      `json:"override,omitempty"`
}

// TranscriptReadyEvent is the reply to a voice message: the transcript
// plus the routing decision for the eventual response.
type TranscriptReadyEvent struct {
	Header          EventHeader `json:"header"`
	Text            string      `json:"text"`
	Language        string      `json:"language,omitempty"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	IncludeVoice    bool        `json:"include_voice"`
	IncludeText     bool        `json:"include_text"`
	Rule            string      `json:"rule"`
}

// SpeakRequestEvent asks the service to synthesize a reply for a
// platform.
type SpeakRequestEvent struct {
	Header   EventHeader `json:"header"`
	Text     string      `json:"text"`
	Voice    string      `json:"voice,omitempty"`
	Platform string      `json:"platform,omitempty"`
	Speed    float64     `json:"speed,omitempty"`
}

// VoiceReplyCreatedEvent is the reply to a speak request: the synthesized
// audio's object store key and its container.
type VoiceReplyCreatedEvent struct {
	Header    EventHeader `json:"header"`
	AudioKey  string      `json:"audio_key"`
	Container string      `json:"container"`
}

// ErrorEvent reports a failed job back to the requester.
type ErrorEvent struct {
	Header EventHeader `json:"header"`
	Error  string      `json:"error"`
}
