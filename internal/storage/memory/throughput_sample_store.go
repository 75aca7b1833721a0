package memory

import (
	"context"
	"sync"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/storage"
)

// ThroughputSampleStore is an in-memory implementation of storage.ThroughputSampleStore.
type ThroughputSampleStore struct {
	mu      sync.RWMutex
	samples []*domain.ThroughputSample // insertion order
}

// NewThroughputSampleStore creates a new in-memory sample store.
func NewThroughputSampleStore() *ThroughputSampleStore {
	return &ThroughputSampleStore{}
}

// Compile-time interface check.
var _ storage.ThroughputSampleStore = (*ThroughputSampleStore)(nil)

// Insert appends a sample.
func (s *ThroughputSampleStore) Insert(_ context.Context, sample *domain.ThroughputSample) error {
	if sample == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sampleCopy := *sample
	s.samples = append(s.samples, &sampleCopy)
	return nil
}

// ListRecent returns up to limit samples, newest first.
func (s *ThroughputSampleStore) ListRecent(_ context.Context, limit int) ([]*domain.ThroughputSample, error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ThroughputSample, 0, limit)
	for i := len(s.samples) - 1; i >= 0 && len(result) < limit; i-- {
		sampleCopy := *s.samples[i]
		result = append(result, &sampleCopy)
	}
	return result, nil
}
