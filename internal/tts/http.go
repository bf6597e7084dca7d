package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/httpx"
)

// readAudioResponse runs a request through the shared retry policy and
// drains the body as raw audio bytes.
func readAudioResponse(
	ctx context.Context,
	client *http.Client,
	build httpx.RequestBuilder,
) ([]byte, error) {
	resp, err := httpx.Do(ctx, client, build)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return readAllNonEmpty(resp)
}

// readAllNonEmpty drains an already-classified response body as audio.
func readAllNonEmpty(resp *http.Response) ([]byte, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio response: %w", err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty audio response", core.ErrProviderRequest)
	}

	return data, nil
}

// checkEndpointHealth issues a single GET against a health path and maps
// any failure to the init error class. Health probes are never retried;
// a down engine should surface immediately.
func checkEndpointHealth(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: health check against %s: %w", core.ErrProviderInit, url, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"%w: health check against %s returned status %d",
			core.ErrProviderInit, url, resp.StatusCode,
		)
	}

	return nil
}
