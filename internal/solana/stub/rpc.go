package stub

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"sync"

	sol "github.com/gagliardetto/solana-go"

	"solana-wallet-engine/internal/solana"
)

// ErrNotFound is returned when a block is not found.
var ErrNotFound = errors.New("not found")

// LedgerClient implements solana.LedgerClient for testing.
// Responses are deterministic; errors can be injected per method through Errors.
type LedgerClient struct {
	mu sync.Mutex

	Slot           uint64
	Blocks         map[uint64]*solana.Block
	Balances       map[sol.PublicKey]uint64
	Accounts       map[sol.PublicKey]*solana.AccountInfo
	RentExemptions map[uint64]uint64
	Version        solana.Version
	Supply         solana.Supply

	// Errors maps an RPC method name (e.g. "sendTransaction") to the error it returns.
	Errors map[string]error

	// Statuses maps a signature to the sequence of statuses returned by
	// successive ConfirmTransaction calls. The last entry repeats.
	Statuses map[sol.Signature][]solana.SignatureStatus

	// ConfirmAfter confirms every signature once it has been polled this many
	// times (zero never confirms). Ignored for signatures present in Statuses.
	ConfirmAfter int

	// ConfirmErr, when set, is returned by ConfirmTransaction instead of a status.
	ConfirmErr error

	Sent     []*sol.Transaction
	Airdrops []sol.Signature
	Calls    map[string]int

	blockhashSeq uint64
	polls        map[sol.Signature]int
}

// Compile-time interface check.
var _ solana.LedgerClient = (*LedgerClient)(nil)

// NewLedgerClient creates a new stub ledger client.
func NewLedgerClient() *LedgerClient {
	return &LedgerClient{
		Blocks:         make(map[uint64]*solana.Block),
		Balances:       make(map[sol.PublicKey]uint64),
		Accounts:       make(map[sol.PublicKey]*solana.AccountInfo),
		RentExemptions: make(map[uint64]uint64),
		Errors:         make(map[string]error),
		Statuses:       make(map[sol.Signature][]solana.SignatureStatus),
		Calls:          make(map[string]int),
		polls:          make(map[sol.Signature]int),
	}
}

func (c *LedgerClient) enter(method string) error {
	c.Calls[method]++
	return c.Errors[method]
}

// GetBalance returns the stored balance, zero if unknown.
func (c *LedgerClient) GetBalance(_ context.Context, address sol.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getBalance"); err != nil {
		return 0, err
	}
	return c.Balances[address], nil
}

// GetLatestBlockhash returns a fresh deterministic hash on every call.
func (c *LedgerClient) GetLatestBlockhash(_ context.Context) (*solana.LatestBlockhash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getLatestBlockhash"); err != nil {
		return nil, err
	}
	c.blockhashSeq++
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], c.blockhashSeq)
	return &solana.LatestBlockhash{
		Blockhash:            sol.Hash(sha256.Sum256(seed[:])),
		LastValidBlockHeight: c.blockhashSeq + 150,
	}, nil
}

// GetBlock retrieves a block by slot from the stub store.
func (c *LedgerClient) GetBlock(_ context.Context, slot uint64) (*solana.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getBlock"); err != nil {
		return nil, err
	}
	block, ok := c.Blocks[slot]
	if !ok {
		return nil, ErrNotFound
	}
	return block, nil
}

// GetSlot returns the configured head slot.
func (c *LedgerClient) GetSlot(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getSlot"); err != nil {
		return 0, err
	}
	return c.Slot, nil
}

// SendTransaction records the transaction and returns its first signature.
func (c *LedgerClient) SendTransaction(_ context.Context, tx *sol.Transaction) (sol.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("sendTransaction"); err != nil {
		return sol.Signature{}, err
	}
	if len(tx.Signatures) == 0 {
		return sol.Signature{}, &solana.RPCError{Code: -32602, Message: "transaction is not signed"}
	}
	c.Sent = append(c.Sent, tx)
	return tx.Signatures[0], nil
}

// ConfirmTransaction returns the scripted status for the signature.
func (c *LedgerClient) ConfirmTransaction(_ context.Context, signature sol.Signature) (solana.SignatureStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getSignatureStatuses"); err != nil {
		return solana.SignatureStatus{}, err
	}
	if c.ConfirmErr != nil {
		return solana.SignatureStatus{}, c.ConfirmErr
	}

	n := c.polls[signature]
	c.polls[signature] = n + 1

	if seq, ok := c.Statuses[signature]; ok && len(seq) > 0 {
		if n >= len(seq) {
			n = len(seq) - 1
		}
		return seq[n], nil
	}

	if c.ConfirmAfter > 0 && n+1 >= c.ConfirmAfter {
		return solana.SignatureStatus{Found: true, ConfirmationStatus: "confirmed"}, nil
	}
	return solana.SignatureStatus{}, nil
}

// RequestAirdrop credits the stored balance and returns a deterministic signature.
func (c *LedgerClient) RequestAirdrop(_ context.Context, address sol.PublicKey, lamports uint64) (sol.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("requestAirdrop"); err != nil {
		return sol.Signature{}, err
	}
	c.Balances[address] += lamports

	var seed [40]byte
	copy(seed[:32], address[:])
	binary.LittleEndian.PutUint64(seed[32:], uint64(len(c.Airdrops)+1))
	digest := sha256.Sum256(seed[:])

	var sig sol.Signature
	copy(sig[:32], digest[:])
	copy(sig[32:], digest[:])
	c.Airdrops = append(c.Airdrops, sig)
	return sig, nil
}

// GetAccountInfo returns the stored account, nil if unknown.
func (c *LedgerClient) GetAccountInfo(_ context.Context, address sol.PublicKey) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getAccountInfo"); err != nil {
		return nil, err
	}
	return c.Accounts[address], nil
}

// GetMinimumBalanceForRentExemption returns the stored minimum, or a linear
// approximation of the mainnet rent schedule when unset.
func (c *LedgerClient) GetMinimumBalanceForRentExemption(_ context.Context, space uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getMinimumBalanceForRentExemption"); err != nil {
		return 0, err
	}
	if v, ok := c.RentExemptions[space]; ok {
		return v, nil
	}
	return (space + 128) * 6960, nil
}

// GetVersion returns the configured version.
func (c *LedgerClient) GetVersion(_ context.Context) (*solana.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getVersion"); err != nil {
		return nil, err
	}
	v := c.Version
	return &v, nil
}

// GetSupply returns the configured supply.
func (c *LedgerClient) GetSupply(_ context.Context) (*solana.Supply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enter("getSupply"); err != nil {
		return nil, err
	}
	s := c.Supply
	return &s, nil
}

// AddBlock adds a block to the stub store.
func (c *LedgerClient) AddBlock(block *solana.Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Blocks[block.Slot] = block
}

// CallCount returns how many times a method was invoked.
func (c *LedgerClient) CallCount(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Calls[method]
}

// SentCount returns the number of submitted transactions.
func (c *LedgerClient) SentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}
