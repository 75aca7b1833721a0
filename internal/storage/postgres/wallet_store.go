package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/storage"
)

// WalletStore implements storage.WalletStore using PostgreSQL.
type WalletStore struct {
	pool *Pool
}

// NewWalletStore creates a new WalletStore.
func NewWalletStore(pool *Pool) *WalletStore {
	return &WalletStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WalletStore = (*WalletStore)(nil)

const walletColumns = `id, user_id, public_key, balance, disabled, created_at, updated_at`

// Insert adds a new wallet and assigns its ID. Returns ErrDuplicateKey if the
// public key is already registered.
func (s *WalletStore) Insert(ctx context.Context, w *domain.WalletRecord) (err error) {
	if w == nil {
		return storage.ErrInvalidInput
	}
	defer observeQuery("insert_wallet", time.Now(), &err)

	query := `
		INSERT INTO wallets (user_id, public_key, balance, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	err = s.pool.QueryRow(ctx, query,
		w.UserID,
		w.PublicKey,
		w.Balance,
		w.Disabled,
		w.CreatedAt,
		w.UpdatedAt,
	).Scan(&w.ID)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		if isCheckViolation(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID retrieves a wallet by its ID. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByID(ctx context.Context, id int64) (_ *domain.WalletRecord, err error) {
	defer observeQuery("get_wallet", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
	w, err := scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByPublicKey retrieves a wallet by address. Returns ErrNotFound if not exists.
func (s *WalletStore) GetByPublicKey(ctx context.Context, publicKey string) (_ *domain.WalletRecord, err error) {
	defer observeQuery("get_wallet_by_key", time.Now(), &err)

	row := s.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE public_key = $1 AND public_key <> ''`, publicKey)
	w, err := scanWallet(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get wallet by public key: %w", err)
	}
	return w, nil
}

// Save persists balance, disabled flag and updated_at. Returns ErrNotFound if
// the wallet does not exist.
func (s *WalletStore) Save(ctx context.Context, w *domain.WalletRecord) (err error) {
	if w == nil {
		return storage.ErrInvalidInput
	}
	defer observeQuery("save_wallet", time.Now(), &err)

	tag, err := s.pool.Exec(ctx, `
		UPDATE wallets
		SET balance = $2, disabled = $3, updated_at = $4
		WHERE id = $1
	`, w.ID, w.Balance, w.Disabled, w.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return storage.ErrInvalidInput
		}
		return fmt.Errorf("save wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.WalletRecord, error) {
	var w domain.WalletRecord
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.PublicKey,
		&w.Balance,
		&w.Disabled,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func observeQuery(operation string, start time.Time, err *error) {
	observability.RecordDBQuery("postgres", operation, time.Since(start).Seconds(), *err)
}
