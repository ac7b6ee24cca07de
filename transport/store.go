package transport

import (
	"context"
	"sync"
	"time"
)

// Entry is one cached HTTP response, keyed by request fingerprint. Entries
// are owned by the transport and never exposed beyond a hit/miss outcome.
type Entry struct {
	Fingerprint string
	Status      int
	Body        []byte
	RetrievedAt time.Time
	ExpiresAt   time.Time
}

func (e *Entry) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Store is the response cache backend. Implementations treat lookup
// failures as misses; writes to the same fingerprint are idempotent.
type Store interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool)
	Set(ctx context.Context, entry *Entry)
	Delete(ctx context.Context, fingerprint string)
}

// MemoryStore keeps cache entries in process memory
type MemoryStore struct {
	data   map[string]Entry
	mu     sync.RWMutex
	ticker *time.Ticker
	stopCh chan struct{}
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		data:   make(map[string]Entry),
		ticker: time.NewTicker(5 * time.Minute),
		stopCh: make(chan struct{}),
	}

	go store.cleanup()
	return store
}

func (s *MemoryStore) Get(_ context.Context, fingerprint string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, exists := s.data[fingerprint]
	if !exists || entry.expired(time.Now()) {
		return nil, false
	}
	return &entry, true
}

func (s *MemoryStore) Set(_ context.Context, entry *Entry) {
	if entry == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[entry.Fingerprint] = *entry
}

func (s *MemoryStore) Delete(_ context.Context, fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, fingerprint)
}

// Close stops the background expiry sweep
func (s *MemoryStore) Close() error {
	s.ticker.Stop()
	close(s.stopCh)
	return nil
}

func (s *MemoryStore) cleanup() {
	for {
		select {
		case <-s.ticker.C:
			now := time.Now()
			s.mu.Lock()
			for fingerprint, entry := range s.data {
				if entry.expired(now) {
					delete(s.data, fingerprint)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
