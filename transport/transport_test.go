package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"meteostations.app/auth"
	apperrors "meteostations.app/pkg/errors"
	"meteostations.app/pkg/logger"
)

func testTransport(store Store, strategy Strategy) *CachedTransport {
	return New(Options{
		Provider:          "test",
		Store:             store,
		Strategy:          strategy,
		Logger:            logger.NewDiscard(),
		MaxRetries:        3,
		BackoffInitial:    5 * time.Millisecond,
		BackoffMax:        20 * time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})
}

func TestSend_CacheIdempotence(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"id": 1}]}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	req := &Request{URL: server.URL + "/stations", Policy: CacheCatalog}

	first, err := tr.Send(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := tr.Send(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "a fresh cache entry must prevent the network call")
}

func TestSend_CacheDisabledAlwaysHitsNetwork(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	req := &Request{URL: server.URL + "/now", Policy: CacheDisabled}
	_, err := tr.Send(context.Background(), req)
	require.NoError(t, err)
	_, err = tr.Send(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestSend_RetriesTransientFailures(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	start := time.Now()
	resp, err := tr.Send(context.Background(), &Request{URL: server.URL + "/data", Policy: CacheDisabled})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok": true}`), resp.Body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "two 503s then success")
	// two intervening backoff delays, each at least backoffInitial/2
	assert.GreaterOrEqual(t, elapsed, 5*time.Millisecond)
}

func TestSend_ExhaustedRetriesSurfaceStatus(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	_, err := tr.Send(context.Background(), &Request{URL: server.URL + "/data", Policy: CacheDisabled})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeHTTPStatus))
	assert.Equal(t, int32(4), atomic.LoadInt32(&hits), "initial attempt plus MaxRetries")
}

func TestSend_RepeatedServerErrorsOpenTheCircuit(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := New(Options{
		Provider:          "test",
		Store:             store,
		Logger:            logger.NewDiscard(),
		MaxRetries:        10,
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})

	_, err := tr.Send(context.Background(), &Request{URL: server.URL + "/data", Policy: CacheDisabled})
	require.Error(t, err)

	// the breaker opens after six consecutive 503s; the seventh attempt
	// never reaches the network and aborts the retry loop
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransport))
	assert.Equal(t, int32(6), atomic.LoadInt32(&hits))
}

func TestSend_DefaultRetryCeiling(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	// MaxRetries left unset: the transport falls back to its default
	tr := New(Options{
		Provider:          "test",
		Store:             store,
		Logger:            logger.NewDiscard(),
		BackoffInitial:    time.Millisecond,
		BackoffMax:        2 * time.Millisecond,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})

	resp, err := tr.Send(context.Background(), &Request{URL: server.URL + "/data", Policy: CacheDisabled})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok": true}`), resp.Body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestSend_ClientErrorsAreNotRetried(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	_, err := tr.Send(context.Background(), &Request{URL: server.URL + "/missing", Policy: CacheDisabled})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeHTTPStatus, appErr.Type)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSend_NetworkFailureExhaustsRetries(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	// port 1 refuses connections
	_, err := tr.Send(context.Background(), &Request{URL: "http://localhost:1/data", Policy: CacheDisabled})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransport))
}

func TestSend_AppliesAuthStrategy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, auth.APIKeyHeader{Header: "X-Api-Key", Key: "secret"})

	_, err := tr.Send(context.Background(), &Request{URL: server.URL + "/data", Policy: CacheDisabled})
	require.NoError(t, err)
}

func TestSend_SecretParamsKeptOutOfFingerprint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, auth.APIKeyParam{Param: "api_key", Key: "secret"})

	resp, err := tr.Send(context.Background(), &Request{URL: server.URL + "/data", Policy: CacheCatalog})
	require.NoError(t, err)

	u, err := url.Parse(server.URL + "/data")
	require.NoError(t, err)
	assert.Equal(t, fingerprint("GET", u, nil, []string{"api_key"}), resp.Fingerprint)
}

func TestSend_MergesQueryValues(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2021-06-01", r.URL.Query().Get("from"))
		assert.Equal(t, "1,6", r.URL.Query().Get("sensors"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := testTransport(store, nil)

	query := url.Values{}
	query.Set("from", "2021-06-01")
	query.Set("sensors", "1,6")
	_, err := tr.Send(context.Background(), &Request{
		URL:    server.URL + "/meteo/data",
		Query:  query,
		Policy: CacheDisabled,
	})
	require.NoError(t, err)
}

func TestSend_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	store := NewMemoryStore()
	defer store.Close()
	tr := New(Options{
		Provider:          "test",
		Store:             store,
		Logger:            logger.NewDiscard(),
		MaxRetries:        5,
		BackoffInitial:    200 * time.Millisecond,
		BackoffMax:        time.Second,
		RequestsPerSecond: 1000,
		Burst:             1000,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, &Request{URL: server.URL + "/data", Policy: CacheDisabled})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeTransport))
}
