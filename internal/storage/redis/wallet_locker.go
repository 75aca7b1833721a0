// Package redis provides a Redis-backed wallet lock shared across engine
// processes.
package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"solana-wallet-engine/internal/storage"
)

const (
	lockPrefix        = "wallet:lock"
	defaultLockTTL    = 30 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
)

// Deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WalletLocker implements storage.WalletLocker with SET NX leases.
type WalletLocker struct {
	rdb        *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
}

// Option configures a WalletLocker.
type Option func(*WalletLocker)

// WithTTL sets the lease lifetime. A crashed holder's lock expires after ttl.
func WithTTL(ttl time.Duration) Option {
	return func(l *WalletLocker) {
		l.ttl = ttl
	}
}

// WithRetryDelay sets the wait between acquisition attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(l *WalletLocker) {
		l.retryDelay = d
	}
}

// NewWalletLocker creates a Redis wallet locker.
func NewWalletLocker(rdb *redis.Client, opts ...Option) *WalletLocker {
	l := &WalletLocker{
		rdb:        rdb,
		ttl:        defaultLockTTL,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewClient connects to addr and verifies it answers PING.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

// Compile-time interface check.
var _ storage.WalletLocker = (*WalletLocker)(nil)

func (l *WalletLocker) key(walletID int64) string {
	return fmt.Sprintf("%s:%d", lockPrefix, walletID)
}

// Lock retries SET NX until it wins or ctx ends. Returns ErrLockHeld when the
// deadline passes first and the context error when ctx is cancelled.
func (l *WalletLocker) Lock(ctx context.Context, walletID int64) (func(context.Context) error, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	key := l.key(walletID)

	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("redis setnx error: %w", err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
					return fmt.Errorf("redis release error: %w", err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s: %w", storage.ErrLockHeld, key, ctx.Err())
			}
			return nil, fmt.Errorf("wait for %s: %w", key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("lock token: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
