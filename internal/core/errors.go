package core

import "errors"

// Error taxonomy shared by every layer below the voice handler. Callers
// classify failures with errors.Is against these sentinels; all wrapping adds
// the offending detail (provider name, format pair, model/device, HTTP status).
var (
	// ErrConfig reports bad or missing configuration, including an
	// unresolved secret reference. Fatal at startup, never retried.
	ErrConfig = errors.New("invalid configuration")

	// ErrUnknownProvider reports a provider name with no registered backend.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrProviderInit reports a backend that could not be constructed:
	// missing model weights, unsupported device, malformed credentials.
	ErrProviderInit = errors.New("provider initialization failed")

	// ErrUnsupportedFormat reports a source or target container outside the
	// supported set. Per-call, never retried.
	ErrUnsupportedFormat = errors.New("unsupported audio format")

	// ErrProviderTimeout reports a timed-out or transport-level provider
	// failure that persisted through the single permitted retry.
	ErrProviderTimeout = errors.New("provider request timed out")

	// ErrProviderRequest reports a 4xx-class rejection: bad credentials,
	// quota exceeded, malformed request. Surfaced immediately, no retry.
	ErrProviderRequest = errors.New("provider rejected request")

	// ErrExternalToolMissing reports an absent converter executable.
	// Detectable at startup, fatal at first use.
	ErrExternalToolMissing = errors.New("external tool not found")

	// ErrInference reports a local backend failure (out of memory,
	// unsupported device). Never retried; retry cannot change the outcome.
	ErrInference = errors.New("local inference failed")
)
