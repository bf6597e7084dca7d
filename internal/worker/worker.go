// Package worker provides the NATS worker that serves voice jobs: it
// turns incoming voice messages into transcripts with a routing decision
// attached, and speak requests into synthesized audio in the object
// store.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/events"
	"github.com/book-expert/voice-service/internal/routing"
	"github.com/book-expert/voice-service/internal/voice"
	"github.com/book-expert/voice-service/internal/voiceutils"
)

const handleMessageTimeout = 60 * time.Second

// Pipeline is the slice of the voice handler the worker drives. Tests
// substitute a fake to exercise the job plumbing without providers.
type Pipeline interface {
	Transcribe(ctx context.Context, buf core.AudioBuffer) (core.Transcript, error)
	Synthesize(ctx context.Context, input string, opts voice.SynthesizeOptions) (core.AudioBuffer, error)
	DecideModalities(input routing.Modality, messageText string, override routing.Override) routing.Decision
}

// NatsWorker listens on the transcribe and speak subjects and serves jobs
// with the wired pipeline.
type NatsWorker struct {
	natsConnection    *nats.Conn
	transcribeSubject string
	speakSubject      string
	store             core.ObjectStore
	pipeline          Pipeline
	log               *logger.Logger
}

// NewNatsWorker creates a worker bound to the two job subjects.
func NewNatsWorker(
	natsConnection *nats.Conn,
	transcribeSubject string,
	speakSubject string,
	store core.ObjectStore,
	pipeline Pipeline,
	log *logger.Logger,
) *NatsWorker {
	return &NatsWorker{
		natsConnection:    natsConnection,
		transcribeSubject: transcribeSubject,
		speakSubject:      speakSubject,
		store:             store,
		pipeline:          pipeline,
		log:               log,
	}
}

// Run subscribes to both subjects and blocks until the context is
// cancelled, then drains the subscriptions.
func (w *NatsWorker) Run(ctx context.Context) error {
	transcribeSub, err := w.natsConnection.Subscribe(w.transcribeSubject, w.handleVoiceMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.transcribeSubject, err)
	}

	speakSub, err := w.natsConnection.Subscribe(w.speakSubject, w.handleSpeakRequest)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.speakSubject, err)
	}

	<-ctx.Done()

	for _, sub := range []*nats.Subscription{transcribeSub, speakSub} {
		drainErr := sub.Drain()
		if drainErr != nil {
			return fmt.Errorf("failed to drain subscription: %w", drainErr)
		}
	}

	return nil
}

func (w *NatsWorker) handleVoiceMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event events.VoiceMessageReceivedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal voice message event: %v", err)

		return
	}

	reply, err := w.processVoiceMessage(ctx, &event)
	if err != nil {
		w.log.Error(
			"Failed to process voice message for workflow %s: %v",
			event.Header.WorkflowID, err,
		)
		w.respondError(msg, event.Header, err)

		return
	}

	w.respond(msg, reply)
	w.deleteConsumedAudio(ctx, event.AudioKey)
}

// deleteConsumedAudio removes an input payload once its transcript has been
// delivered. Payloads live for one workflow and are never re-read, so a
// failed delete only costs storage and is logged, not surfaced.
func (w *NatsWorker) deleteConsumedAudio(ctx context.Context, key string) {
	err := w.store.Delete(ctx, key)
	if err != nil {
		w.log.Warn("Failed to delete consumed audio for key '%s': %v", key, err)
	}
}

func (w *NatsWorker) processVoiceMessage(
	ctx context.Context,
	event *events.VoiceMessageReceivedEvent,
) (*events.TranscriptReadyEvent, error) {
	audioData, err := w.store.Download(ctx, event.AudioKey)
	if err != nil {
		return nil, fmt.Errorf("failed to download audio for key '%s': %w", event.AudioKey, err)
	}

	buf := core.AudioBuffer{
		Data:     audioData,
		Format:   core.FormatSpec{Container: core.Format(event.Container)},
		Duration: 0,
	}

	transcript, err := w.pipeline.Transcribe(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to transcribe voice message: %w", err)
	}

	decision := w.pipeline.DecideModalities(
		routing.ModalityVoice,
		transcript.Text,
		routing.Override(event.Override),
	)

	return &events.TranscriptReadyEvent{
		Header:          event.Header,
		Text:            transcript.Text,
		Language:        transcript.Language,
		DurationSeconds: transcript.Duration.Seconds(),
		IncludeVoice:    decision.IncludeVoice,
		IncludeText:     decision.IncludeText,
		Rule:            decision.Rule,
	}, nil
}

func (w *NatsWorker) handleSpeakRequest(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event events.SpeakRequestEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		w.log.Error("Failed to unmarshal speak request event: %v", err)

		return
	}

	reply, err := w.processSpeakRequest(ctx, &event)
	if err != nil {
		w.log.Error(
			"Failed to process speak request for workflow %s: %v",
			event.Header.WorkflowID, err,
		)
		w.respondError(msg, event.Header, err)

		return
	}

	w.respond(msg, reply)
}

func (w *NatsWorker) processSpeakRequest(
	ctx context.Context,
	event *events.SpeakRequestEvent,
) (*events.VoiceReplyCreatedEvent, error) {
	audio, err := w.pipeline.Synthesize(ctx, event.Text, voice.SynthesizeOptions{
		Voice:    event.Voice,
		Platform: event.Platform,
		Speed:    event.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speak request: %w", err)
	}

	audioKey := uuid.NewString() + voiceutils.ExtensionFor(audio.Format.Container)

	err = w.store.Upload(ctx, audioKey, audio.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload audio for key '%s': %w", audioKey, err)
	}

	return &events.VoiceReplyCreatedEvent{
		Header:    event.Header,
		AudioKey:  audioKey,
		Container: string(audio.Format.Container),
	}, nil
}

func (w *NatsWorker) respond(msg *nats.Msg, reply any) {
	replyData, err := json.Marshal(reply)
	if err != nil {
		w.log.Error("Failed to marshal reply event: %v", err)

		return
	}

	err = msg.Respond(replyData)
	if err != nil {
		w.log.Error("Failed to publish reply event: %v", err)
	}
}

func (w *NatsWorker) respondError(msg *nats.Msg, header events.EventHeader, jobErr error) {
	if msg.Reply == "" {
		return
	}

	w.respond(msg, &events.ErrorEvent{
		Header: header,
		Error:  jobErr.Error(),
	})
}
