package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/solana"
	"solana-wallet-engine/internal/solana/stub"
)

func newKeypair(t *testing.T) keys.Keypair {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	return kp
}

func unsignedTransfer(t *testing.T, from sol.PublicKey) *sol.Transaction {
	t.Helper()
	tx, err := sol.NewTransaction(
		[]sol.Instruction{system.NewTransferInstruction(1_000, from, sol.NewWallet().PublicKey()).Build()},
		sol.Hash{},
		sol.TransactionPayer(from),
	)
	require.NoError(t, err)
	return tx
}

func TestExecute_Confirms(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.ConfirmAfter = 3
	payer := newKeypair(t)

	exec := New(ledger, WithPollInterval(5*time.Millisecond))
	f, err := exec.Execute(context.Background(), "transfer", unsignedTransfer(t, payer.PublicKey()), time.Second, payer)
	require.NoError(t, err)

	assert.Equal(t, StateConfirmed, f.State)
	assert.Equal(t, 3, f.Polls)
	assert.Equal(t, 1, ledger.SentCount())
	assert.False(t, f.Tx.Message.RecentBlockhash.IsZero())
	require.Len(t, f.Tx.Signatures, 1)
	assert.Equal(t, f.Tx.Signatures[0], f.Signature)
}

// Scenario C: the node never confirms within the budget.
func TestExecute_ExpiresWithinBudget(t *testing.T) {
	ledger := stub.NewLedgerClient()
	payer := newKeypair(t)

	exec := New(ledger, WithPollInterval(100*time.Millisecond))
	start := time.Now()
	f, err := exec.Execute(context.Background(), "transfer", unsignedTransfer(t, payer.PublicKey()), 500*time.Millisecond, payer)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, domain.ErrExpired)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, StateExpired, f.State)
	assert.LessOrEqual(t, f.Polls, 5)
	assert.GreaterOrEqual(t, f.Polls, 1)
	assert.Less(t, elapsed, 500*time.Millisecond+250*time.Millisecond)
	assert.Equal(t, 1, ledger.SentCount(), "no resubmission")

	// Single use: an expired flight can neither be re-signed, resubmitted nor confirmed.
	assert.ErrorIs(t, exec.Sign(context.Background(), f, payer), ErrInvalidTransition)
	assert.ErrorIs(t, exec.Submit(context.Background(), f), ErrInvalidTransition)

	ledger.ConfirmAfter = 1
	assert.ErrorIs(t, exec.AwaitConfirmation(context.Background(), f, time.Second), ErrInvalidTransition)
	assert.Equal(t, StateExpired, f.State)
	assert.Equal(t, 1, ledger.SentCount())
}

func TestSign_MissingSigner(t *testing.T) {
	ledger := stub.NewLedgerClient()
	payer := newKeypair(t)
	stranger := newKeypair(t)

	exec := New(ledger)
	f := NewFlight("transfer", unsignedTransfer(t, payer.PublicKey()))

	err := exec.Sign(context.Background(), f, stranger)
	require.ErrorIs(t, err, domain.ErrSigning)
	assert.True(t, domain.IsPermanent(err))
	assert.Equal(t, StateBuilt, f.State)
	assert.Empty(t, f.Tx.Signatures)
	assert.Equal(t, 0, ledger.CallCount("getLatestBlockhash"))
}

func TestSign_FreshBlockhashEachTime(t *testing.T) {
	ledger := stub.NewLedgerClient()
	payer := newKeypair(t)
	exec := New(ledger)

	a := NewFlight("transfer", unsignedTransfer(t, payer.PublicKey()))
	b := NewFlight("transfer", unsignedTransfer(t, payer.PublicKey()))
	require.NoError(t, exec.Sign(context.Background(), a, payer))
	require.NoError(t, exec.Sign(context.Background(), b, payer))

	assert.NotEqual(t, a.Tx.Message.RecentBlockhash, b.Tx.Message.RecentBlockhash)
	assert.Equal(t, StateSigned, a.State)
}

func TestSubmit_NodeRejection(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.Errors["sendTransaction"] = &solana.RPCError{Code: -32002, Message: "insufficient funds for fee"}
	payer := newKeypair(t)

	exec := New(ledger)
	f, err := exec.Execute(context.Background(), "transfer", unsignedTransfer(t, payer.PublicKey()), time.Second, payer)

	var failed *domain.FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "insufficient funds for fee", failed.Reason)
	assert.Equal(t, StateFailed, f.State)
	assert.Equal(t, 0, ledger.CallCount("getSignatureStatuses"))
}

func TestSubmit_TransportErrorNotRetried(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.Errors["sendTransaction"] = &domain.TransportError{Op: "sendTransaction", Err: errors.New("connection reset")}
	payer := newKeypair(t)

	exec := New(ledger)
	f, err := exec.Execute(context.Background(), "transfer", unsignedTransfer(t, payer.PublicKey()), time.Second, payer)
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, StateSigned, f.State)
	assert.Equal(t, 1, ledger.CallCount("sendTransaction"))

	delete(ledger.Errors, "sendTransaction")
	assert.ErrorIs(t, exec.Submit(context.Background(), f), ErrInvalidTransition)
	assert.Equal(t, 1, ledger.CallCount("sendTransaction"))
}

func TestAwait_FailedStatusStopsPolling(t *testing.T) {
	ledger := stub.NewLedgerClient()
	payer := newKeypair(t)
	exec := New(ledger, WithPollInterval(time.Millisecond))

	f := NewFlight("transfer", unsignedTransfer(t, payer.PublicKey()))
	require.NoError(t, exec.Sign(context.Background(), f, payer))
	ledger.Statuses[f.Tx.Signatures[0]] = []solana.SignatureStatus{
		{},
		{Found: true, ConfirmationStatus: "processed", Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}},
	}
	require.NoError(t, exec.Submit(context.Background(), f))

	err := exec.AwaitConfirmation(context.Background(), f, time.Second)
	var failed *domain.FailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, failed.Reason, "InstructionError")
	assert.Equal(t, StateFailed, f.State)
	assert.Equal(t, 2, f.Polls)
}

func TestAwait_PollErrorsArePending(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.ConfirmErr = &domain.TransportError{Op: "getSignatureStatuses", Err: errors.New("timeout")}
	payer := newKeypair(t)

	exec := New(ledger, WithPollInterval(10*time.Millisecond))
	f, err := exec.Execute(context.Background(), "transfer", unsignedTransfer(t, payer.PublicKey()), 100*time.Millisecond, payer)

	require.ErrorIs(t, err, domain.ErrExpired)
	assert.Equal(t, StateExpired, f.State)
	assert.Greater(t, f.Polls, 1)
}

func TestAwait_ContextCancelLeavesSubmitted(t *testing.T) {
	ledger := stub.NewLedgerClient()
	payer := newKeypair(t)
	exec := New(ledger, WithPollInterval(20*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f, err := exec.Execute(ctx, "transfer", unsignedTransfer(t, payer.PublicKey()), 10*time.Second, payer)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StateSubmitted, f.State)
	assert.NotEqual(t, sol.Signature{}, f.Signature)
}

func TestTrack_Airdrop(t *testing.T) {
	ledger := stub.NewLedgerClient()
	ledger.ConfirmAfter = 2
	addr := sol.NewWallet().PublicKey()

	sig, err := ledger.RequestAirdrop(context.Background(), addr, 1_000_000_000)
	require.NoError(t, err)

	f, err := New(ledger, WithPollInterval(time.Millisecond)).Track(context.Background(), "airdrop", sig, time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, f.State)
	assert.Equal(t, sig, f.Signature)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, canTransition(StateBuilt, StateSigned))
	assert.True(t, canTransition(StateSubmitted, StateConfirmed))
	assert.False(t, canTransition(StateExpired, StateConfirmed))
	assert.False(t, canTransition(StateConfirmed, StateFailed))
	assert.False(t, canTransition(StateBuilt, StateSubmitted))

	for _, s := range []State{StateConfirmed, StateExpired, StateFailed} {
		assert.True(t, s.IsTerminal(), s.String())
	}
	assert.False(t, StateSubmitted.IsTerminal())
}
