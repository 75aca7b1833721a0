package memory

import (
	"context"
	"sync"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/storage"
)

// WalletStore is an in-memory implementation of storage.WalletStore.
type WalletStore struct {
	mu     sync.RWMutex
	data   map[int64]*domain.WalletRecord // keyed by id
	byKey  map[string]int64               // public_key -> id
	nextID int64
}

// NewWalletStore creates a new in-memory wallet store.
func NewWalletStore() *WalletStore {
	return &WalletStore{
		data:  make(map[int64]*domain.WalletRecord),
		byKey: make(map[string]int64),
	}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

// Insert adds a new wallet and assigns its ID.
func (s *WalletStore) Insert(_ context.Context, w *domain.WalletRecord) error {
	if w == nil || w.Balance.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if w.PublicKey != "" {
		if _, exists := s.byKey[w.PublicKey]; exists {
			return storage.ErrDuplicateKey
		}
	}

	s.nextID++
	w.ID = s.nextID
	s.data[w.ID] = w.Clone()
	if w.PublicKey != "" {
		s.byKey[w.PublicKey] = w.ID
	}
	return nil
}

// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByID(_ context.Context, id int64) (*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return w.Clone(), nil
}

// GetByPublicKey retrieves a wallet by address. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByPublicKey(_ context.Context, publicKey string) (*domain.WalletRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byKey[publicKey]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return s.data[id].Clone(), nil
}

// Save persists the mutable fields of an existing wallet.
func (s *WalletStore) Save(_ context.Context, w *domain.WalletRecord) error {
	if w == nil || w.Balance.IsNegative() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[w.ID]
	if !exists {
		return storage.ErrNotFound
	}

	updated := current.Clone()
	updated.Balance = w.Balance
	updated.Disabled = w.Disabled
	updated.UpdatedAt = w.UpdatedAt
	s.data[w.ID] = updated
	return nil
}
