package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BalanceScale is the number of decimal places a cached balance carries,
// matching the NUMERIC(38, 9) column and the lamport resolution of SOL.
const BalanceScale = 9

// WalletRecord is the local mirror of an on-chain balance.
// Corresponds to the wallets table in PostgreSQL. The record is a cache,
// not a source of truth: the ledger owns the real balance.
type WalletRecord struct {
	ID        int64           // PRIMARY KEY
	UserID    int64           // owning account reference
	PublicKey string          // base58 address (may be empty for off-chain wallets)
	Balance   decimal.Decimal // cached balance, never negative
	Disabled  bool
	CreatedAt int64 // Unix timestamp in milliseconds
	UpdatedAt int64 // Unix timestamp in milliseconds
}

// NewWalletRecord creates an enabled record with a zero balance.
func NewWalletRecord(userID int64, publicKey string) *WalletRecord {
	now := time.Now().UnixMilli()
	return &WalletRecord{
		UserID:    userID,
		PublicKey: publicKey,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyDelta adds amount to the cached balance. Credits are positive,
// debits negative. If the result would be negative the record is left
// untouched and ErrInsufficientFunds is returned. Amounts finer than
// BalanceScale decimal places return ErrInvalidAmount.
func (w *WalletRecord) ApplyDelta(amount decimal.Decimal) error {
	if !amount.Equal(amount.Truncate(BalanceScale)) {
		return fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, amount, BalanceScale)
	}
	next := w.Balance.Add(amount)
	if next.IsNegative() {
		return ErrInsufficientFunds
	}
	w.Balance = next
	w.UpdatedAt = time.Now().UnixMilli()
	return nil
}

// Clone returns a copy of the record.
func (w *WalletRecord) Clone() *WalletRecord {
	c := *w
	return &c
}
