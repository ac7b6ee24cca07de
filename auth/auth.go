package auth

import (
	"context"
	"net/http"
	"os"
	"sync"
)

// Strategy produces the headers or parameters one outgoing call needs.
// SecretParams names the query parameters a strategy injects, so the
// transport can exclude them from cache fingerprints.
type Strategy interface {
	Sign(ctx context.Context, req *http.Request) error
	SecretParams() []string
}

// NoAuth is the identity transform, for open providers
type NoAuth struct{}

func (NoAuth) Sign(_ context.Context, _ *http.Request) error { return nil }

func (NoAuth) SecretParams() []string { return nil }

// APIKeyHeader injects a static key into a request header
type APIKeyHeader struct {
	Header string
	Key    string
}

func (a APIKeyHeader) Sign(_ context.Context, req *http.Request) error {
	req.Header.Set(a.Header, a.Key)
	return nil
}

func (APIKeyHeader) SecretParams() []string { return nil }

// APIKeyParam injects a static key into a query parameter
type APIKeyParam struct {
	Param string
	Key   string
}

func (a APIKeyParam) Sign(_ context.Context, req *http.Request) error {
	query := req.URL.Query()
	query.Set(a.Param, a.Key)
	req.URL.RawQuery = query.Encode()
	return nil
}

func (a APIKeyParam) SecretParams() []string { return []string{a.Param} }

// CredentialStore holds provider credentials in memory. Values are read once
// at client construction, never persisted and never logged.
type CredentialStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewCredentialStore() *CredentialStore {
	return &CredentialStore{values: make(map[string]string)}
}

// Set stores an explicit credential value
func (s *CredentialStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Get returns a stored credential
func (s *CredentialStore) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[name]
	return value, ok && value != ""
}

// LoadEnv reads the named environment variables into the store. Explicit
// values already set take precedence over the environment.
func (s *CredentialStore) LoadEnv(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		if s.values[name] != "" {
			continue
		}
		if value, ok := os.LookupEnv(name); ok {
			s.values[name] = value
		}
	}
}
