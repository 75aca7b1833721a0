// Package txbuilder assembles unsigned transactions from high-level intents.
// Every transaction it returns has a zero recent blockhash and no signatures;
// the executor stamps and signs it.
package txbuilder

import (
	"context"
	"fmt"

	sol "github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/solana"
)

// TokenAccountSize is the data length of an SPL token account.
const TokenAccountSize = 165

// Builder builds unsigned transactions. Operations that depend on chain state
// (rent minimum, token account existence) query the ledger client.
type Builder struct {
	ledger solana.LedgerClient
	logger *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder logger.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		b.logger = logger.Named("txbuilder")
	}
}

// New creates a Builder backed by the given ledger client.
func New(ledger solana.LedgerClient, opts ...Option) *Builder {
	b := &Builder{
		ledger: ledger,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Transfer builds a single native transfer paid for by the sender.
func (b *Builder) Transfer(from, to sol.PublicKey, lamports uint64) (*sol.Transaction, error) {
	if err := validateAddresses(from, to); err != nil {
		return nil, err
	}

	ix := system.NewTransferInstruction(lamports, from, to).Build()
	return assemble(from, ix)
}

// CreateAccount builds a create-account instruction funded with the rent-exempt
// minimum for the requested space. The owner may be the system program, whose
// address is all zeros.
func (b *Builder) CreateAccount(ctx context.Context, funder, newAccount, owner sol.PublicKey, space uint64) (*sol.Transaction, error) {
	if err := validateAddresses(funder, newAccount); err != nil {
		return nil, err
	}

	lamports, err := b.ledger.GetMinimumBalanceForRentExemption(ctx, space)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRentExemptionQuery, err)
	}

	ix := system.NewCreateAccountInstruction(lamports, space, owner, funder, newAccount).Build()
	return assemble(funder, ix)
}

// TokenOption adjusts a token transfer.
type TokenOption func(*tokenOptions)

type tokenOptions struct {
	allowOwnerOffCurve bool
}

// AllowOwnerOffCurve accepts a recipient that is a program derived address.
func AllowOwnerOffCurve() TokenOption {
	return func(o *tokenOptions) {
		o.allowOwnerOffCurve = true
	}
}

// TokenTransfer builds a checked SPL token transfer between the owners'
// associated token accounts. When the recipient has no token account yet, a
// create instruction paid by the sender is prepended. A recipient off the
// ed25519 curve has no signer and is refused unless AllowOwnerOffCurve is given.
func (b *Builder) TokenTransfer(ctx context.Context, owner, recipient, mint sol.PublicKey, amount uint64, decimals uint8, opts ...TokenOption) (*sol.Transaction, error) {
	if err := validateAddresses(owner, recipient, mint); err != nil {
		return nil, err
	}
	var o tokenOptions
	for _, opt := range opts {
		opt(&o)
	}
	if !o.allowOwnerOffCurve && !keys.OnCurve(recipient) {
		return nil, fmt.Errorf("%w: recipient %s is off curve", domain.ErrInvalidAddress, recipient)
	}

	source, _, err := sol.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, fmt.Errorf("derive source token account: %w", err)
	}
	destination, _, err := sol.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("derive destination token account: %w", err)
	}

	account, err := b.ledger.GetAccountInfo(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("lookup destination token account: %w", err)
	}

	var ixs []sol.Instruction
	if account == nil {
		b.logger.Debug("destination token account missing, creating",
			zap.String("recipient", recipient.String()),
			zap.String("account", destination.String()))
		ixs = append(ixs, associatedtokenaccount.NewCreateInstruction(owner, recipient, mint).Build())
	}
	ixs = append(ixs, token.NewTransferCheckedInstruction(amount, decimals, source, mint, destination, owner, nil).Build())

	return assemble(owner, ixs...)
}

func assemble(payer sol.PublicKey, ixs ...sol.Instruction) (*sol.Transaction, error) {
	tx, err := sol.NewTransaction(ixs, sol.Hash{}, sol.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}
	return tx, nil
}

func validateAddresses(keys ...sol.PublicKey) error {
	for _, k := range keys {
		if k.IsZero() {
			return fmt.Errorf("%w: zero address", domain.ErrInvalidAddress)
		}
	}
	return nil
}

// ParseAddress parses a base58 address, rejecting malformed and zero keys.
func ParseAddress(text string) (sol.PublicKey, error) {
	key, err := sol.PublicKeyFromBase58(text)
	if err != nil {
		return sol.PublicKey{}, fmt.Errorf("%w: %q: %v", domain.ErrInvalidAddress, text, err)
	}
	if key.IsZero() {
		return sol.PublicKey{}, fmt.Errorf("%w: zero address", domain.ErrInvalidAddress)
	}
	return key, nil
}
