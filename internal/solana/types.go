package solana

import (
	sol "github.com/gagliardetto/solana-go"
)

// VoteProgramID is the consensus-voting program. Transactions whose every
// instruction targets it are validator housekeeping.
var VoteProgramID = sol.MustPublicKeyFromBase58("Vote111111111111111111111111111111111111111")

// Block represents a Solana block fetched with getBlock.
type Block struct {
	Slot         uint64
	ParentSlot   uint64
	BlockTime    *int64  // Unix seconds, nil if the node has no estimate
	BlockHeight  *uint64 // nil only at genesis edge cases
	Blockhash    string
	Transactions []Transaction
}

// IsGenesis reports whether the block sits at the genesis height.
func (b *Block) IsGenesis() bool {
	return b.BlockHeight == nil || *b.BlockHeight == 0
}

// Transaction represents a transaction inside a fetched block.
type Transaction struct {
	Slot      uint64
	Signature string
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction outcome.
type TransactionMeta struct {
	Err interface{}
	Fee uint64
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction references its program and accounts by index into AccountKeys.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           string // base58
}

// ProgramIDs returns the target program of every instruction, in order.
// Unresolvable indexes yield an empty string.
func (m *TransactionMessage) ProgramIDs() []string {
	ids := make([]string, len(m.Instructions))
	for i, ix := range m.Instructions {
		if ix.ProgramIDIndex >= 0 && ix.ProgramIDIndex < len(m.AccountKeys) {
			ids[i] = m.AccountKeys[ix.ProgramIDIndex]
		}
	}
	return ids
}

// LatestBlockhash is the recent blockhash and its validity bound.
type LatestBlockhash struct {
	Blockhash            sol.Hash
	LastValidBlockHeight uint64
}

// SignatureStatus is the node's view of a submitted transaction.
type SignatureStatus struct {
	Found              bool
	Slot               uint64
	ConfirmationStatus string      // processed | confirmed | finalized
	Err                interface{} // non-nil when the node rejected the transaction
}

// Confirmed reports whether the status reached at least the confirmed commitment.
func (s SignatureStatus) Confirmed() bool {
	return s.Found && s.Err == nil &&
		(s.ConfirmationStatus == "confirmed" || s.ConfirmationStatus == "finalized")
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Version is the node software version.
type Version struct {
	SolanaCore string `json:"solana-core"`
	FeatureSet uint32 `json:"feature-set"`
}

// Supply is the cluster supply in lamports.
type Supply struct {
	Total          uint64 `json:"total"`
	Circulating    uint64 `json:"circulating"`
	NonCirculating uint64 `json:"nonCirculating"`
}
