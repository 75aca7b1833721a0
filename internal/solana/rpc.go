package solana

import (
	"context"

	sol "github.com/gagliardetto/solana-go"
)

// LedgerClient defines the Solana RPC operations the wallet engine consumes.
// Every call is a single round-trip; implementations never retry and never
// interpret node errors.
type LedgerClient interface {
	// GetBalance returns the lamport balance of an address.
	GetBalance(ctx context.Context, address sol.PublicKey) (uint64, error)

	// GetLatestBlockhash returns the current reference hash.
	GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error)

	// GetBlock retrieves a block by slot number.
	GetBlock(ctx context.Context, slot uint64) (*Block, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (uint64, error)

	// SendTransaction submits a signed transaction and returns its signature.
	SendTransaction(ctx context.Context, tx *sol.Transaction) (sol.Signature, error)

	// ConfirmTransaction reads the status of a submitted signature.
	ConfirmTransaction(ctx context.Context, signature sol.Signature) (SignatureStatus, error)

	// RequestAirdrop asks the node to credit lamports to an address.
	RequestAirdrop(ctx context.Context, address sol.PublicKey, lamports uint64) (sol.Signature, error)

	// GetAccountInfo returns account info, or nil if the account does not exist.
	GetAccountInfo(ctx context.Context, address sol.PublicKey) (*AccountInfo, error)

	// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for an account of the given size.
	GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error)

	// GetVersion returns the software version the node runs.
	GetVersion(ctx context.Context) (*Version, error)

	// GetSupply returns the cluster's lamport supply.
	GetSupply(ctx context.Context) (*Supply, error)
}
