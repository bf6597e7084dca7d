// Package httpx_test tests the shared provider retry policy.
package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/voice-service/internal/core"
	"github.com/book-expert/voice-service/internal/httpx"
)

func buildGet(url string) httpx.RequestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	}
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := httpx.Do(context.Background(), httpx.NewClient(5*time.Second), buildGet(server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(1), attempts.Load())
}

func TestDo_RetriesOnceOnServerError(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	resp, err := httpx.Do(context.Background(), httpx.NewClient(5*time.Second), buildGet(server.URL))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(2), attempts.Load())
}

func TestDo_PersistentServerErrorSurfacesAfterTwoAttempts(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := httpx.Do(context.Background(), httpx.NewClient(5*time.Second), buildGet(server.URL))
	require.ErrorIs(t, err, core.ErrProviderTimeout)
	assert.Equal(t, int32(2), attempts.Load(), "exactly one retry")
}

func TestDo_ClientErrorNeverRetried(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := httpx.Do(context.Background(), httpx.NewClient(5*time.Second), buildGet(server.URL))
	require.ErrorIs(t, err, core.ErrProviderRequest)
	assert.Contains(t, err.Error(), "invalid api key")
	assert.Equal(t, int32(1), attempts.Load(), "zero retries on 4xx")
}

func TestDo_UnreachableEndpointClassifiedAsTimeout(t *testing.T) {
	t.Parallel()

	// Reserve a port, then close the listener so the address refuses
	// connections.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	url := server.URL
	server.Close()

	_, err := httpx.Do(context.Background(), httpx.NewClient(2*time.Second), buildGet(url))
	require.ErrorIs(t, err, core.ErrProviderTimeout)
}
