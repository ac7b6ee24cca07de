package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "meteostations.app/pkg/errors"
)

func newGetRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	return req
}

func TestAPIKeyHeader_Sign(t *testing.T) {
	strategy := APIKeyHeader{Header: "X-Api-Key", Key: "secret"}
	req := newGetRequest(t, "https://api.meteo.cat/xema/v1/estacions/metadades")

	require.NoError(t, strategy.Sign(context.Background(), req))
	assert.Equal(t, "secret", req.Header.Get("X-Api-Key"))
	assert.Empty(t, strategy.SecretParams())
}

func TestAPIKeyParam_Sign(t *testing.T) {
	strategy := APIKeyParam{Param: "api_key", Key: "secret"}
	req := newGetRequest(t, "https://opendata.aemet.es/opendata/api/stations?foo=bar")

	require.NoError(t, strategy.Sign(context.Background(), req))
	assert.Equal(t, "secret", req.URL.Query().Get("api_key"))
	assert.Equal(t, "bar", req.URL.Query().Get("foo"))
	assert.Equal(t, []string{"api_key"}, strategy.SecretParams())
}

func TestNoAuth_Sign(t *testing.T) {
	req := newGetRequest(t, "https://agrometeo.ch/backend/api/stations")
	require.NoError(t, NoAuth{}.Sign(context.Background(), req))
	assert.Empty(t, req.Header)
}

func TestCredentialStore(t *testing.T) {
	store := NewCredentialStore()
	store.Set("client_id", "explicit-id")
	t.Setenv("client_id", "env-id")
	t.Setenv("client_secret", "env-secret")

	store.LoadEnv("client_id", "client_secret", "missing")

	id, ok := store.Get("client_id")
	require.True(t, ok)
	assert.Equal(t, "explicit-id", id, "explicit values win over the environment")

	secret, ok := store.Get("client_secret")
	require.True(t, ok)
	assert.Equal(t, "env-secret", secret)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestOAuth_SignRefreshesAndStoresToken(t *testing.T) {
	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "id-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "token-abc", "token_type": "bearer", "expires_in": 3600}`))
	}))
	defer server.Close()

	store := NewCredentialStore()
	store.Set(CredClientID, "id-1")
	store.Set(CredClientSecret, "secret-1")

	strategy := NewOAuth(server.URL, store, nil)

	req := newGetRequest(t, "https://example.org/data")
	require.NoError(t, strategy.Sign(context.Background(), req))
	assert.Equal(t, "Bearer token-abc", req.Header.Get("Authorization"))
	assert.Equal(t, 1, exchanges)

	stored, ok := store.Get(CredAccessToken)
	require.True(t, ok)
	assert.Equal(t, "token-abc", stored)

	// Fresh token: no second exchange
	req2 := newGetRequest(t, "https://example.org/data")
	require.NoError(t, strategy.Sign(context.Background(), req2))
	assert.Equal(t, 1, exchanges)
}

func TestOAuth_ExpiredTokenTriggersRefresh(t *testing.T) {
	exchanges := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		exchanges++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "token-new", "expires_in": 3600}`))
	}))
	defer server.Close()

	store := NewCredentialStore()
	store.Set(CredClientID, "id-1")
	store.Set(CredClientSecret, "secret-1")

	strategy := NewOAuth(server.URL, store, nil)
	strategy.token = "token-old"
	strategy.expiry = time.Now().Add(-time.Minute)

	req := newGetRequest(t, "https://example.org/data")
	require.NoError(t, strategy.Sign(context.Background(), req))
	assert.Equal(t, "Bearer token-new", req.Header.Get("Authorization"))
	assert.Equal(t, 1, exchanges)
}

func TestOAuth_RefreshFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	store := NewCredentialStore()
	store.Set(CredClientID, "id-1")
	store.Set(CredClientSecret, "bad-secret")

	strategy := NewOAuth(server.URL, store, nil)

	err := strategy.Sign(context.Background(), newGetRequest(t, "https://example.org/data"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))
}

func TestOAuth_MissingCredentials(t *testing.T) {
	strategy := NewOAuth("https://example.org/token", NewCredentialStore(), nil)

	err := strategy.Sign(context.Background(), newGetRequest(t, "https://example.org/data"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuthentication))
}
