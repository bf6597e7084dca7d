// Package voiceutils provides file, path and formatting helpers shared by the
// audio converter, the local inference provider and the worker.
package voiceutils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/voice-service/internal/core"
)

// Environment variable names used for path resolution.
const (
	envCacheDir = "CACHE_DIR"
)

// Common application directory and path constants.
const (
	appName               = "voice-service"
	modelsDirName         = "models"
	tmpDir                = "/tmp"
	dotCache              = ".cache"
	defaultDirPermissions = 0o750
)

// Time and size formatting constants.
const (
	secondsInMinute = 60
	secondsInHour   = 3600
	kilobyte        = 1024
	megabyte        = kilobyte * 1024
	gigabyte        = megabyte * 1024
)

// ErrModelNotFound is returned when a model file cannot be located.
var ErrModelNotFound = errors.New("model not found")

// containerExtensions maps each supported container to its file extension.
// The converter relies on the extension to tell ffmpeg the output container.
var containerExtensions = map[core.Format]string{
	core.FormatOGG:  ".ogg",
	core.FormatMP3:  ".mp3",
	core.FormatWAV:  ".wav",
	core.FormatM4A:  ".m4a",
	core.FormatFLAC: ".flac",
	core.FormatOPUS: ".opus",
	core.FormatPCM:  ".pcm",
}

// ExtensionFor returns the file extension (with leading dot) for a container,
// or ".bin" when the container is not in the supported set.
func ExtensionFor(container core.Format) string {
	ext, ok := containerExtensions[container]
	if !ok {
		return ".bin"
	}

	return ext
}

// TempAudioPattern builds an os.CreateTemp pattern whose suffix carries the
// container extension, e.g. "voice-in-*.ogg".
func TempAudioPattern(prefix string, container core.Format) string {
	return prefix + "-*" + ExtensionFor(container)
}

// GetCacheDir returns the application's cache directory, respecting an
// environment override and falling back to a user-based cache directory.
func GetCacheDir() string {
	if cacheDir := os.Getenv(envCacheDir); cacheDir != "" {
		return cacheDir
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(tmpDir, appName, dotCache)
	}

	return filepath.Join(homeDir, dotCache, appName)
}

// EnsureDir ensures a directory exists at the given path, creating it if it
// doesn't.
func EnsureDir(path string) error {
	_, statErr := os.Stat(path)
	if os.IsNotExist(statErr) {
		mkdirErr := os.MkdirAll(path, defaultDirPermissions)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, mkdirErr)
		}
	}

	return nil
}

// resolveSinglePath checks if a file exists at a given path. If it exists, it
// returns the absolute path and found=true. A file system error other than
// "not found" stops the search.
func resolveSinglePath(path string) (resolvedPath string, found bool, err error) {
	_, statErr := os.Stat(path)
	if statErr == nil {
		absPath, errAbs := filepath.Abs(path)
		if errAbs != nil {
			return "", false, fmt.Errorf(
				"could not resolve absolute path for %q: %w", path, errAbs,
			)
		}

		return absPath, true, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, fmt.Errorf("error checking model path %q: %w", path, statErr)
	}

	return "", false, nil
}

// ResolveModelPath resolves the absolute path to a model file by checking
// standard locations: the name itself, a local "models" directory, and the
// application cache.
func ResolveModelPath(modelName string) (string, error) {
	candidatePaths := []string{
		modelName,
		filepath.Join(modelsDirName, modelName),
		filepath.Join(GetCacheDir(), modelsDirName, modelName),
	}

	for _, path := range candidatePaths {
		resolvedPath, found, err := resolveSinglePath(path)
		if err != nil {
			return "", err
		} else if found {
			return resolvedPath, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrModelNotFound, modelName)
}

// FormatDuration formats a duration in a human-readable string (e.g.
// "1h 15m", "5m 30.5s", "45.2s").
func FormatDuration(seconds float64) string {
	if seconds < secondsInMinute {
		return fmt.Sprintf("%.1fs", seconds)
	}

	if seconds < secondsInHour {
		minutes := int(seconds / secondsInMinute)
		remainingSeconds := seconds - float64(minutes*secondsInMinute)

		return fmt.Sprintf("%dm %.1fs", minutes, remainingSeconds)
	}

	hours := int(seconds / secondsInHour)
	remainingSeconds := seconds - float64(hours*secondsInHour)
	remainingMinutes := int(remainingSeconds / secondsInMinute)

	return fmt.Sprintf("%dh %dm", hours, remainingMinutes)
}

// FormatFileSize formats a file size in a human-readable string (e.g.
// "1.2 GB", "500.5 MB").
func FormatFileSize(bytes int64) string {
	switch {
	case bytes >= gigabyte:
		return fmt.Sprintf("%.1f GB", float64(bytes)/gigabyte)
	case bytes >= megabyte:
		return fmt.Sprintf("%.1f MB", float64(bytes)/megabyte)
	case bytes >= kilobyte:
		return fmt.Sprintf("%.1f KB", float64(bytes)/kilobyte)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
