package storage

import (
	"context"

	"solana-wallet-engine/internal/domain"
)

// WalletStore provides access to wallets storage.
type WalletStore interface {
	// Insert adds a new wallet and assigns its ID. Returns ErrDuplicateKey if
	// the public key is already registered.
	Insert(ctx context.Context, w *domain.WalletRecord) error

	// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.WalletRecord, error)

	// GetByPublicKey retrieves a wallet by address. Returns ErrNotFound if not exists.
	GetByPublicKey(ctx context.Context, publicKey string) (*domain.WalletRecord, error)

	// Save persists balance, disabled flag and updated_at of an existing
	// wallet. Returns ErrNotFound if not exists.
	Save(ctx context.Context, w *domain.WalletRecord) error
}

// ThroughputSampleStore provides access to throughput_samples storage.
type ThroughputSampleStore interface {
	// Insert appends a sample.
	Insert(ctx context.Context, s *domain.ThroughputSample) error

	// ListRecent returns up to limit samples, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.ThroughputSample, error)
}

// WalletLocker serialises balance updates to one wallet record.
type WalletLocker interface {
	// Lock blocks until the wallet lock is held or ctx ends. The returned
	// function releases it.
	Lock(ctx context.Context, walletID int64) (unlock func(context.Context) error, err error)
}
