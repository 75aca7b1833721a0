package swap

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/txbuilder"
)

// Result is the outcome of a swap: the quote that was executed and the
// transaction flight.
type Result struct {
	Quote  *Quote
	Flight *executor.Flight
}

// Orchestrator fetches a quote, decodes its envelope and executes it with the
// caller as sole signer.
type Orchestrator struct {
	quotes   QuoteSource
	executor *executor.Executor
	budget   time.Duration
	logger   *zap.Logger
}

// NewOrchestrator creates a swap orchestrator. budget bounds the confirmation wait.
func NewOrchestrator(quotes QuoteSource, exec *executor.Executor, budget time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		quotes:   quotes,
		executor: exec,
		budget:   budget,
		logger:   logger.Named("swap"),
	}
}

// Swap converts amount of from into to, accepting at most slippage percent.
// A quote that goes stale before execution surfaces as a node rejection.
func (o *Orchestrator) Swap(ctx context.Context, kp keys.Keypair, from, to string, amount, slippage decimal.Decimal) (*Result, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: swap amount must be positive", domain.ErrInvalidAmount)
	}
	if slippage.IsNegative() {
		return nil, fmt.Errorf("%w: slippage must not be negative", domain.ErrInvalidAmount)
	}
	if kp.IsZero() {
		return nil, fmt.Errorf("%w: no keypair", domain.ErrSigning)
	}

	quote, err := o.quotes.GetQuote(ctx, QuoteRequest{
		From:     from,
		To:       to,
		Amount:   amount,
		Slippage: slippage,
		Payer:    kp.PublicKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("get quote: %w", err)
	}

	tx, err := txbuilder.FromEnvelope(quote.Transaction.SerializedTx, quote.Transaction.TxType)
	if err != nil {
		return &Result{Quote: quote}, err
	}

	flight, err := o.executor.Execute(ctx, "swap", tx, o.budget, kp)
	result := &Result{Quote: quote, Flight: flight}
	if err != nil {
		o.logger.Warn("swap did not complete",
			zap.String("from", from),
			zap.String("to", to),
			zap.String("state", flight.State.String()),
			zap.Error(err))
		return result, err
	}

	o.logger.Info("swap confirmed",
		zap.String("from", from),
		zap.String("to", to),
		zap.String("amount", amount.String()),
		zap.String("signature", flight.Signature.String()))
	return result, nil
}
