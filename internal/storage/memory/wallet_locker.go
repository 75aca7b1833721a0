package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"solana-wallet-engine/internal/storage"
)

type walletLock struct {
	ch   chan struct{}
	refs int // holders plus waiters
}

// WalletLocker is an in-process implementation of storage.WalletLocker.
// A wallet's entry lives only while someone holds or waits for it.
type WalletLocker struct {
	mu    sync.Mutex
	locks map[int64]*walletLock
}

// NewWalletLocker creates a new in-process wallet locker.
func NewWalletLocker() *WalletLocker {
	return &WalletLocker{locks: make(map[int64]*walletLock)}
}

// Compile-time interface check.
var _ storage.WalletLocker = (*WalletLocker)(nil)

// Lock blocks until the wallet lock is held or ctx ends. A deadline that
// passes while another writer holds the lock returns ErrLockHeld; a
// cancelled ctx returns the context error.
func (l *WalletLocker) Lock(ctx context.Context, walletID int64) (func(context.Context) error, error) {
	l.mu.Lock()
	lock, ok := l.locks[walletID]
	if !ok {
		lock = &walletLock{ch: make(chan struct{}, 1)}
		l.locks[walletID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(walletID, lock)
		return nil, waitError(ctx, walletID)
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			<-lock.ch
			l.release(walletID, lock)
		})
		return nil
	}, nil
}

func (l *WalletLocker) release(walletID int64, lock *walletLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, walletID)
	}
}

func waitError(ctx context.Context, walletID int64) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: wallet %d: %w", storage.ErrLockHeld, walletID, ctx.Err())
	}
	return fmt.Errorf("wait for wallet %d lock: %w", walletID, ctx.Err())
}
