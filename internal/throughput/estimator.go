// Package throughput estimates user-originated transactions per second by
// walking the chain backward from the head block.
package throughput

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/solana"
)

// ErrInvalidWindow is returned for a negative window.
var ErrInvalidWindow = errors.New("invalid throughput window")

// Window accumulates the totals of one backward walk.
type Window struct {
	HeadSlot        uint64
	NewestTimestamp int64
	OldestTimestamp int64
	UserCount       uint64
	VoteCount       uint64
	Blocks          int
}

// Rate returns user transactions per second over the window. A zero or
// negative span, or a non-finite quotient, yields 0.
func (w Window) Rate() float64 {
	var span int64
	if w.NewestTimestamp > w.OldestTimestamp {
		span = w.NewestTimestamp - w.OldestTimestamp
	}
	if span == 0 {
		return 0
	}
	rate := float64(w.UserCount) / float64(span)
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
		return 0
	}
	return rate
}

// Estimator walks blocks through a ledger client.
type Estimator struct {
	ledger solana.LedgerClient
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the estimator logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger.Named("throughput")
	}
}

// WithClock sets the clock used to stamp samples.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		e.now = now
	}
}

// New creates an Estimator.
func New(ledger solana.LedgerClient, opts ...Option) *Estimator {
	e := &Estimator{
		ledger: ledger,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate walks back from the head until a parent block is at or before
// newest-window, or reaches genesis. Any fetch error aborts the walk.
func (e *Estimator) Estimate(ctx context.Context, windowSeconds int64) (domain.ThroughputSample, error) {
	w, err := e.Walk(ctx, windowSeconds)
	if err != nil {
		observability.RecordThroughputError()
		return domain.ThroughputSample{}, err
	}

	rate := w.Rate()
	observability.RecordThroughput(rate, w.Blocks)
	e.logger.Debug("throughput estimated",
		zap.Uint64("head_slot", w.HeadSlot),
		zap.Int64("window", windowSeconds),
		zap.Int("blocks", w.Blocks),
		zap.Uint64("user_txs", w.UserCount),
		zap.Uint64("vote_txs", w.VoteCount),
		zap.Float64("rate", rate))

	return domain.ThroughputSample{
		HeadSlot:         w.HeadSlot,
		WindowSeconds:    windowSeconds,
		NewestTimestamp:  w.NewestTimestamp,
		OldestTimestamp:  w.OldestTimestamp,
		UserTransactions: w.UserCount,
		VoteTransactions: w.VoteCount,
		BlocksScanned:    w.Blocks,
		Rate:             rate,
		RecordedAt:       e.now().UnixMilli(),
	}, nil
}

// Walk performs the backward block walk and returns the raw totals.
func (e *Estimator) Walk(ctx context.Context, windowSeconds int64) (Window, error) {
	if windowSeconds < 0 {
		return Window{}, fmt.Errorf("%w: %d", ErrInvalidWindow, windowSeconds)
	}

	head, err := e.ledger.GetSlot(ctx)
	if err != nil {
		return Window{}, fmt.Errorf("get head slot: %w", err)
	}
	current, err := e.fetch(ctx, head)
	if err != nil {
		return Window{}, err
	}

	newest, err := blockTime(current)
	if err != nil {
		return Window{}, err
	}
	threshold := newest - windowSeconds

	w := Window{HeadSlot: head, NewestTimestamp: newest, OldestTimestamp: newest}
	if current.IsGenesis() {
		return w, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return Window{}, err
		}

		parent, err := e.fetch(ctx, current.ParentSlot)
		if err != nil {
			return Window{}, err
		}

		users, votes := Classify(current)
		w.UserCount += users
		w.VoteCount += votes
		w.Blocks++

		parentTime, err := blockTime(parent)
		if err != nil {
			return Window{}, err
		}
		if parentTime <= threshold || parent.IsGenesis() {
			w.OldestTimestamp = parentTime
			return w, nil
		}
		current = parent
	}
}

func (e *Estimator) fetch(ctx context.Context, slot uint64) (*solana.Block, error) {
	block, err := e.ledger.GetBlock(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", slot, err)
	}
	if block == nil {
		return nil, &domain.ProtocolError{Op: "getBlock", Err: fmt.Errorf("block %d missing", slot)}
	}
	return block, nil
}

func blockTime(b *solana.Block) (int64, error) {
	if b.BlockTime == nil {
		return 0, &domain.ProtocolError{Op: "getBlock", Err: fmt.Errorf("block %d has no block time", b.Slot)}
	}
	return *b.BlockTime, nil
}

// Classify splits a block's transactions into user-originated and vote-only.
// A transaction is vote-only when every instruction targets the vote program.
// The two counts always sum to the number of transactions in the block.
func Classify(b *solana.Block) (users, votes uint64) {
	vote := solana.VoteProgramID.String()
	for i := range b.Transactions {
		if isVoteOnly(&b.Transactions[i], vote) {
			votes++
		} else {
			users++
		}
	}
	return users, votes
}

func isVoteOnly(tx *solana.Transaction, vote string) bool {
	if tx.Message == nil {
		return true
	}
	for _, program := range tx.Message.ProgramIDs() {
		if program != vote {
			return false
		}
	}
	return true
}
