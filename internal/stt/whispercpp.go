package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/config"
	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/voiceutils"
)

const (
	whisperCPPName      = "whisper-cpp"
	defaultWhisperBin   = "whisper-cli"
	defaultDevice       = "auto"
	whisperLanguageAuto = "auto"
)

// whisperCPP runs batch recognition through the whisper.cpp command line
// tool. The engine does not accept concurrent inference on one model handle,
// so calls are serialized behind a per-instance mutex; independent instances
// do not contend.
type whisperCPP struct {
	binaryPath string
	modelPath  string
	device     string
	language   string
	log        *logger.Logger
	mu         sync.Mutex
}

func newWhisperCPP(cfg config.STTConfig, log *logger.Logger) (*whisperCPP, error) {
	binary := cfg.BinaryPath
	if binary == "" {
		binary = defaultWhisperBin
	}

	resolvedBinary, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: whisper binary %q: %w", core.ErrProviderInit, binary, err)
	}

	modelPath, err := voiceutils.ResolveModelPath(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: model %q: %w", core.ErrProviderInit, cfg.Model, err)
	}

	device := cfg.Device
	if device == "" {
		device = defaultDevice
	}

	return &whisperCPP{
		binaryPath: resolvedBinary,
		modelPath:  modelPath,
		device:     device,
		language:   cfg.Language,
		log:        log,
	}, nil
}

func (w *whisperCPP) Name() string {
	return whisperCPPName
}

// Transcribe writes the normalized audio to a temp WAV file, runs one batch
// inference and parses the tool's JSON output. Inference failures are never
// retried; the error names the model and device so remediation is direct.
func (w *whisperCPP) Transcribe(
	ctx context.Context,
	audio core.AudioBuffer,
	opts core.TranscribeOptions,
) (core.Transcript, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	wavPath, outPrefix, err := w.writeInput(audio)
	if err != nil {
		return core.Transcript{}, err
	}

	defer w.removeTemp(wavPath)
	defer w.removeTemp(outPrefix + ".json")

	language := opts.Language
	if language == "" {
		language = w.language
	}

	if language == "" {
		language = whisperLanguageAuto
	}

	args := []string{
		"-m", w.modelPath,
		"-f", wavPath,
		"-l", language,
		"-oj",
		"-of", outPrefix,
		"-np",
	}

	// #nosec G204 -- binary and model paths are resolved and validated at
	// construction.
	cmd := exec.CommandContext(ctx, w.binaryPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return core.Transcript{}, fmt.Errorf(
			"%w: whisper.cpp (model %s, device %s): %w - output: %s",
			core.ErrInference, w.modelPath, w.device, runErr, string(output),
		)
	}

	transcript, parseErr := parseWhisperOutput(outPrefix + ".json")
	if parseErr != nil {
		return core.Transcript{}, parseErr
	}

	w.log.Info(
		"Transcribed %s of audio (%d segments)",
		voiceutils.FormatDuration(transcript.Duration.Seconds()),
		len(transcript.Segments),
	)

	return transcript, nil
}

func (w *whisperCPP) writeInput(audio core.AudioBuffer) (wavPath, outPrefix string, err error) {
	inFile, err := os.CreateTemp("", voiceutils.TempAudioPattern("whisper-in", core.FormatWAV))
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp audio file: %w", err)
	}

	wavPath = inFile.Name()

	_, writeErr := inFile.Write(audio.Data)
	closeErr := inFile.Close()

	if writeErr != nil {
		w.removeTemp(wavPath)

		return "", "", fmt.Errorf("failed to write temp audio file: %w", writeErr)
	}

	if closeErr != nil {
		w.removeTemp(wavPath)

		return "", "", fmt.Errorf("failed to close temp audio file: %w", closeErr)
	}

	outPrefix = strings.TrimSuffix(wavPath, filepath.Ext(wavPath))

	return wavPath, outPrefix, nil
}

func (w *whisperCPP) removeTemp(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		w.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
	}
}

// whisperResult mirrors the JSON document whisper.cpp emits with -oj.
type whisperResult struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(path string) (core.Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.Transcript{}, fmt.Errorf(
			"%w: whisper.cpp produced no output file: %w", core.ErrInference, err,
		)
	}

	var result whisperResult

	err = json.Unmarshal(data, &result)
	if err != nil {
		return core.Transcript{}, fmt.Errorf(
			"%w: failed to decode whisper.cpp output: %w", core.ErrInference, err,
		)
	}

	segments := make([]core.Segment, 0, len(result.Transcription))

	var (
		parts []string
		end   time.Duration
	)

	for _, seg := range result.Transcription {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}

		segEnd := time.Duration(seg.Offsets.To) * time.Millisecond
		if segEnd > end {
			end = segEnd
		}

		segments = append(segments, core.Segment{
			Start: time.Duration(seg.Offsets.From) * time.Millisecond,
			End:   segEnd,
			Text:  text,
		})
		parts = append(parts, text)
	}

	return core.Transcript{
		Text:     strings.Join(parts, " "),
		Language: result.Result.Language,
		Duration: end,
		Segments: segments,
	}, nil
}
