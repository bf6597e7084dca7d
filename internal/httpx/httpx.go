// Package httpx implements the shared HTTP calling convention for network
// providers: a bounded per-call timeout, a single retry on transient failure
// (transport errors and 5xx responses), and immediate classification of
// 4xx responses as caller errors that retrying cannot fix.
package httpx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/voice-service/internal/core"
)

// One retry, no backoff beyond it. Formats and credentials do not change
// mid-run, so anything past a second attempt only adds latency.
const maxAttempts = 2

// maxErrorBodyBytes bounds how much of an error response body is carried
// into the error message.
const maxErrorBodyBytes = 4096

// RequestBuilder constructs a fresh request for each attempt. Builders must
// not share a consumed body reader between attempts.
type RequestBuilder func(ctx context.Context) (*http.Request, error)

// NewClient returns an HTTP client with the given total-request timeout.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// Do executes the request with the provider retry policy and returns a
// response with a 2xx status. Non-2xx responses and transport failures are
// translated into the shared error taxonomy by Classify; the caller owns
// closing the returned body.
func Do(ctx context.Context, client *http.Client, build RequestBuilder) (*http.Response, error) {
	var lastErr error

	for attempt := range maxAttempts {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := client.Do(req)

		retry, classified := Classify(resp, err)
		if classified == nil {
			return resp, nil
		}

		lastErr = classified

		if !retry || attempt == maxAttempts-1 {
			break
		}
	}

	return nil, lastErr
}

// Classify translates one HTTP attempt outcome into the error taxonomy and
// reports whether the failure class permits a retry. A nil error return means
// the attempt succeeded. err comes from the transport; resp may be nil when
// err is set.
func Classify(resp *http.Response, err error) (retry bool, classified error) {
	if err != nil {
		// Timeouts, refused connections and resets all land here; they
		// are the transient class and get the single retry.
		return true, fmt.Errorf("%w: %w", core.ErrProviderTimeout, err)
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return false, nil
	}

	body := readErrorBody(resp)

	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("%w: status %s: %s", core.ErrProviderTimeout, resp.Status, body)
	}

	// 4xx: bad credentials, quota, malformed request. The caller must fix
	// configuration; never retried.
	return false, fmt.Errorf("%w: status %s: %s", core.ErrProviderRequest, resp.Status, body)
}

func readErrorBody(resp *http.Response) string {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil {
		return ""
	}

	return string(body)
}
