// Package audio provides the format normalization boundary of the voice
// pipeline. Incoming platform audio is normalized to the fixed recognition
// format before it reaches an STT backend, and synthesized audio is
// normalized to the container a messaging platform requires. Conversion runs
// through the external ffmpeg executable.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/book-expert/logger"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/voiceutils"
)

// Recognition backends assume single-channel 16 kHz PCM input; everything
// else is resampled and downmixed before reaching a provider.
const (
	sttSampleRate = 16000
	sttChannels   = 1
	sttCodec      = "pcm_s16le"
)

const (
	defaultFFmpegBinary = "ffmpeg"

	// ffmpeg muxer for headerless 16-bit little-endian PCM output.
	rawPCMMuxer = "s16le"
)

// Temp file name prefixes.
const (
	tempInPrefix  = "voice-in"
	tempOutPrefix = "voice-out"
)

// STTTarget returns the fixed format every STT input is normalized to.
func STTTarget() core.FormatSpec {
	return core.FormatSpec{
		Container:  core.FormatWAV,
		Codec:      sttCodec,
		SampleRate: sttSampleRate,
		Channels:   sttChannels,
		BitRate:    "",
	}
}

// Converter invokes ffmpeg to convert audio buffers between container, codec,
// sample-rate and channel-count combinations. The executable is probed once
// at construction so an absent tool fails at startup rather than obscurely on
// the first call.
type Converter struct {
	ffmpegPath string
	tempDir    string
	log        *logger.Logger
}

// New probes for the ffmpeg executable and returns a ready Converter. An
// empty FFmpegPath falls back to looking up "ffmpeg" on PATH.
func New(ffmpegPath, tempDir string, log *logger.Logger) (*Converter, error) {
	binary := ffmpegPath
	if binary == "" {
		binary = defaultFFmpegBinary
	}

	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrExternalToolMissing, binary, err)
	}

	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Converter{
		ffmpegPath: resolved,
		tempDir:    tempDir,
		log:        log,
	}, nil
}

// Convert transcodes the buffer to the target format and returns a new
// buffer; the input is never mutated. A buffer whose declared metadata
// already satisfies the target is passed through without invoking the
// external tool. Temporary files are removed on every exit path, so a failed
// conversion leaves no partial output behind.
func (c *Converter) Convert(
	ctx context.Context,
	buf core.AudioBuffer,
	target core.FormatSpec,
) (core.AudioBuffer, error) {
	err := c.validateContainers(buf.Format.Container, target.Container)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	if buf.Format.Matches(target) {
		return core.AudioBuffer{
			Data:     buf.Data,
			Format:   target,
			Duration: buf.Duration,
		}, nil
	}

	data, err := c.transcode(ctx, buf, target)
	if err != nil {
		return core.AudioBuffer{}, err
	}

	c.log.Info(
		"Converted audio: %s -> %s (%s)",
		buf.Format.Container,
		target.Container,
		voiceutils.FormatFileSize(int64(len(data))),
	)

	return core.AudioBuffer{
		Data:     data,
		Format:   target,
		Duration: buf.Duration,
	}, nil
}

func (c *Converter) validateContainers(source, target core.Format) error {
	if !core.IsSupportedFormat(source) {
		return fmt.Errorf("%w: source container %q (target %q)",
			core.ErrUnsupportedFormat, source, target)
	}

	if !core.IsSupportedFormat(target) {
		return fmt.Errorf("%w: target container %q (source %q)",
			core.ErrUnsupportedFormat, target, source)
	}

	return nil
}

func (c *Converter) transcode(
	ctx context.Context,
	buf core.AudioBuffer,
	target core.FormatSpec,
) ([]byte, error) {
	inPath, err := c.writeTempInput(buf)
	if err != nil {
		return nil, err
	}

	defer c.removeTemp(inPath)

	outFile, err := os.CreateTemp(c.tempDir, voiceutils.TempAudioPattern(tempOutPrefix, target.Container))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp output file: %w", err)
	}

	outPath := outFile.Name()

	closeErr := outFile.Close()
	if closeErr != nil {
		c.removeTemp(outPath)

		return nil, fmt.Errorf("failed to close temp output file: %w", closeErr)
	}

	defer c.removeTemp(outPath)

	args := buildArgs(inPath, outPath, target)

	// #nosec G204 -- the binary path is resolved at construction and the
	// arguments are built from validated format specs.
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)

	output, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return nil, fmt.Errorf(
			"ffmpeg execution failed (%s -> %s): %w - output: %s",
			buf.Format.Container, target.Container, runErr, string(output),
		)
	}

	data, readErr := os.ReadFile(outPath)
	if readErr != nil {
		return nil, fmt.Errorf("failed to read converted audio: %w", readErr)
	}

	return data, nil
}

func (c *Converter) writeTempInput(buf core.AudioBuffer) (string, error) {
	inFile, err := os.CreateTemp(c.tempDir, voiceutils.TempAudioPattern(tempInPrefix, buf.Format.Container))
	if err != nil {
		return "", fmt.Errorf("failed to create temp input file: %w", err)
	}

	inPath := inFile.Name()

	_, writeErr := inFile.Write(buf.Data)
	closeErr := inFile.Close()

	if writeErr != nil {
		c.removeTemp(inPath)

		return "", fmt.Errorf("failed to write temp input file: %w", writeErr)
	}

	if closeErr != nil {
		c.removeTemp(inPath)

		return "", fmt.Errorf("failed to close temp input file: %w", closeErr)
	}

	return inPath, nil
}

func (c *Converter) removeTemp(path string) {
	removeErr := os.Remove(path)
	if removeErr != nil && !os.IsNotExist(removeErr) {
		c.log.Warn("Failed to remove temp file '%s': %v", path, removeErr)
	}
}

// buildArgs assembles the ffmpeg invocation. The output container is implied
// by the output path extension, except raw PCM, whose ".pcm" extension maps
// to no muxer and needs -f s16le spelled out. Codec, rate, channels and
// bitrate are passed explicitly when the target declares them.
func buildArgs(inPath, outPath string, target core.FormatSpec) []string {
	args := []string{"-i", inPath}

	if target.SampleRate != 0 {
		args = append(args, "-ar", strconv.Itoa(target.SampleRate))
	}

	if target.Channels != 0 {
		args = append(args, "-ac", strconv.Itoa(target.Channels))
	}

	if target.Codec != "" {
		args = append(args, "-c:a", target.Codec)
	}

	if target.BitRate != "" {
		args = append(args, "-b:a", target.BitRate)
	}

	if target.Container == core.FormatPCM {
		args = append(args, "-f", rawPCMMuxer)
	}

	args = append(args, "-y", outPath)

	return args
}
