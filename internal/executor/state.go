package executor

import (
	"errors"
	"fmt"

	sol "github.com/gagliardetto/solana-go"
)

// ErrInvalidTransition is returned when an operation is attempted from a
// state that does not allow it.
var ErrInvalidTransition = errors.New("invalid state transition")

// State is the lifecycle position of a transaction.
type State int

const (
	StateBuilt State = iota
	StateSigned
	StateSubmitted
	StateConfirmed
	StateExpired
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateSigned:
		return "signed"
	case StateSubmitted:
		return "submitted"
	case StateConfirmed:
		return "confirmed"
	case StateExpired:
		return "expired"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateExpired || s == StateFailed
}

var transitions = map[State][]State{
	StateBuilt:     {StateSigned},
	StateSigned:    {StateSubmitted, StateFailed},
	StateSubmitted: {StateConfirmed, StateExpired, StateFailed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Flight is one transaction moving through the lifecycle. It is single-use:
// once terminal, a new transaction with a fresh blockhash is required.
type Flight struct {
	Kind      string
	Tx        *sol.Transaction
	State     State
	Signature sol.Signature
	Reason    string
	Polls     int

	submitAttempted bool
}

// NewFlight wraps an unsigned transaction in the Built state.
func NewFlight(kind string, tx *sol.Transaction) *Flight {
	return &Flight{Kind: kind, Tx: tx, State: StateBuilt}
}

// trackedFlight follows a transaction submitted outside the executor,
// such as a faucet airdrop, from its signature alone.
func trackedFlight(kind string, signature sol.Signature) *Flight {
	return &Flight{Kind: kind, State: StateSubmitted, Signature: signature, submitAttempted: true}
}

func (f *Flight) moveTo(to State) error {
	if !canTransition(f.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, f.State, to)
	}
	f.State = to
	return nil
}
