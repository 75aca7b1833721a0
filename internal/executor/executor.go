// Package executor drives transactions from Built to a terminal state:
// stamp a recent blockhash, sign, submit once and poll for confirmation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	sol "github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/solana"
)

// DefaultPollInterval is the delay between confirmation polls.
const DefaultPollInterval = 100 * time.Millisecond

// Executor runs the transaction state machine against a ledger client.
// It holds no per-transaction state and is safe for concurrent use.
type Executor struct {
	ledger     solana.LedgerClient
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger.Named("tx-executor")
	}
}

// WithPollInterval sets a constant delay between confirmation polls.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) {
		e.newBackOff = func() backoff.BackOff { return backoff.NewConstantBackOff(d) }
	}
}

// WithBackOff sets the poll cadence policy. A fresh policy is created for
// every confirmation wait.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(e *Executor) {
		e.newBackOff = factory
	}
}

// New creates an Executor.
func New(ledger solana.LedgerClient, opts ...Option) *Executor {
	e := &Executor{
		ledger: ledger,
		logger: zap.NewNop(),
		newBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(DefaultPollInterval)
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute signs, submits and confirms tx within budget. The returned flight
// is non-nil whenever the transaction was accepted for processing, so callers
// can report the signature even when confirmation did not complete.
func (e *Executor) Execute(ctx context.Context, kind string, tx *sol.Transaction, budget time.Duration, signers ...keys.Keypair) (*Flight, error) {
	f := NewFlight(kind, tx)

	if err := e.Sign(ctx, f, signers...); err != nil {
		return f, err
	}
	if err := e.Submit(ctx, f); err != nil {
		return f, err
	}
	return f, e.AwaitConfirmation(ctx, f, budget)
}

// Track waits for a transaction that was submitted elsewhere.
func (e *Executor) Track(ctx context.Context, kind string, signature sol.Signature, budget time.Duration) (*Flight, error) {
	f := trackedFlight(kind, signature)
	return f, e.AwaitConfirmation(ctx, f, budget)
}

// Sign stamps a fresh blockhash and signs with every required signer,
// fee payer first. A missing signer leaves the flight in Built.
func (e *Executor) Sign(ctx context.Context, f *Flight, signers ...keys.Keypair) error {
	if f.State != StateBuilt {
		return fmt.Errorf("%w: sign from %s", ErrInvalidTransition, f.State)
	}
	if f.Tx == nil {
		return fmt.Errorf("%w: no transaction", domain.ErrSigning)
	}

	index := keys.NewSigners(signers...)
	msg := &f.Tx.Message
	required := int(msg.Header.NumRequiredSignatures)
	if required == 0 || required > len(msg.AccountKeys) {
		return fmt.Errorf("%w: message declares %d signers", domain.ErrSigning, required)
	}
	for _, key := range msg.AccountKeys[:required] {
		if _, ok := index[key]; !ok {
			return fmt.Errorf("%w: missing signer %s", domain.ErrSigning, key)
		}
	}

	latest, err := e.ledger.GetLatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("fetch blockhash: %w", err)
	}
	msg.RecentBlockhash = latest.Blockhash

	f.Tx.Signatures = nil
	if _, err := f.Tx.Sign(index.Get); err != nil {
		f.Tx.Signatures = nil
		return fmt.Errorf("%w: %v", domain.ErrSigning, err)
	}

	return f.moveTo(StateSigned)
}

// Submit sends the signed transaction exactly once. A node rejection moves the
// flight to Failed; a transport failure leaves it Signed and spent.
func (e *Executor) Submit(ctx context.Context, f *Flight) error {
	if f.State != StateSigned || f.submitAttempted {
		return fmt.Errorf("%w: submit from %s", ErrInvalidTransition, f.State)
	}
	f.submitAttempted = true

	sig, err := e.ledger.SendTransaction(ctx, f.Tx)
	if err != nil {
		var rpcErr *solana.RPCError
		if errors.As(err, &rpcErr) {
			if len(f.Tx.Signatures) > 0 {
				f.Signature = f.Tx.Signatures[0]
			}
			f.Reason = rpcErr.Message
			if mvErr := f.moveTo(StateFailed); mvErr != nil {
				return mvErr
			}
			observability.RecordTransaction(f.Kind, f.State.String())
			return &domain.FailedError{Signature: f.signatureText(), Reason: f.Reason}
		}
		return fmt.Errorf("submit transaction: %w", err)
	}

	f.Signature = sig
	e.logger.Debug("transaction submitted",
		zap.String("kind", f.Kind),
		zap.String("signature", sig.String()))
	return f.moveTo(StateSubmitted)
}

// AwaitConfirmation polls the node until the transaction is confirmed, the
// node reports a failure, or the budget runs out. Poll errors count as
// pending. Cancelling ctx leaves the flight in Submitted.
func (e *Executor) AwaitConfirmation(ctx context.Context, f *Flight, budget time.Duration) error {
	if f.State != StateSubmitted {
		return fmt.Errorf("%w: await from %s", ErrInvalidTransition, f.State)
	}

	start := time.Now()
	deadline := start.Add(budget)
	bo := e.newBackOff()
	bo.Reset()

	defer func() {
		observability.RecordConfirmation(f.Polls, time.Since(start).Seconds())
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		status, err := e.ledger.ConfirmTransaction(ctx, f.Signature)
		f.Polls++
		switch {
		case err != nil:
			e.logger.Debug("status poll failed, treating as pending",
				zap.String("signature", f.Signature.String()),
				zap.Int("poll", f.Polls),
				zap.Error(err))
		case status.Found && status.Err != nil:
			f.Reason = fmt.Sprint(status.Err)
			return e.finish(f, StateFailed, &domain.FailedError{Signature: f.signatureText(), Reason: f.Reason})
		case status.Confirmed():
			return e.finish(f, StateConfirmed, nil)
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop || !time.Now().Add(wait).Before(deadline) {
			return e.finish(f, StateExpired,
				fmt.Errorf("%w: %s after %d polls", domain.ErrExpired, f.Signature, f.Polls))
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (e *Executor) finish(f *Flight, to State, result error) error {
	if err := f.moveTo(to); err != nil {
		return err
	}
	observability.RecordTransaction(f.Kind, to.String())

	fields := []zap.Field{
		zap.String("kind", f.Kind),
		zap.String("signature", f.Signature.String()),
		zap.String("state", to.String()),
		zap.Int("polls", f.Polls),
	}
	if result != nil {
		e.logger.Info("transaction did not confirm", append(fields, zap.Error(result))...)
	} else {
		e.logger.Info("transaction confirmed", fields...)
	}
	return result
}

func (f *Flight) signatureText() string {
	if f.Signature == (sol.Signature{}) {
		return ""
	}
	return f.Signature.String()
}
