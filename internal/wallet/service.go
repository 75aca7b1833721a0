// Package wallet exposes the caller-facing wallet operations: on-chain
// transfers, airdrops, swaps and throughput, plus bookkeeping on the locally
// cached wallet records.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/solana"
	"solana-wallet-engine/internal/storage"
	"solana-wallet-engine/internal/swap"
	"solana-wallet-engine/internal/throughput"
	"solana-wallet-engine/internal/txbuilder"
)

// DefaultConfirmBudget bounds the confirmation wait when none is configured.
const DefaultConfirmBudget = 30 * time.Second

// ErrSwapUnavailable is returned by Swap when no quote service is configured.
var ErrSwapUnavailable = errors.New("swap quote service not configured")

// Service implements the wallet operations over a ledger client and the
// wallet record store.
type Service struct {
	ledger    solana.LedgerClient
	builder   *txbuilder.Builder
	executor  *executor.Executor
	estimator *throughput.Estimator
	swaps     *swap.Orchestrator
	quotes    swap.QuoteSource

	wallets storage.WalletStore
	samples storage.ThroughputSampleStore
	locker  storage.WalletLocker

	budget time.Duration
	logger *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger. Child components log under it.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithExecutor replaces the default transaction executor.
func WithExecutor(exec *executor.Executor) Option {
	return func(s *Service) {
		s.executor = exec
	}
}

// WithConfirmBudget sets how long confirmation is awaited per transaction.
func WithConfirmBudget(d time.Duration) Option {
	return func(s *Service) {
		s.budget = d
	}
}

// WithQuoteSource enables Swap through the given quote service.
func WithQuoteSource(quotes swap.QuoteSource) Option {
	return func(s *Service) {
		s.quotes = quotes
	}
}

// WithSampleStore records every throughput estimate.
func WithSampleStore(samples storage.ThroughputSampleStore) Option {
	return func(s *Service) {
		s.samples = samples
	}
}

// WithLocker serialises balance updates to the same wallet record.
func WithLocker(locker storage.WalletLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// NewService creates a wallet service.
func NewService(ledger solana.LedgerClient, wallets storage.WalletStore, opts ...Option) *Service {
	s := &Service{
		ledger:  ledger,
		wallets: wallets,
		budget:  DefaultConfirmBudget,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.builder = txbuilder.New(ledger, txbuilder.WithLogger(s.logger))
	if s.executor == nil {
		s.executor = executor.New(ledger, executor.WithLogger(s.logger))
	}
	s.estimator = throughput.New(ledger, throughput.WithLogger(s.logger))
	if s.quotes != nil {
		s.swaps = swap.NewOrchestrator(s.quotes, s.executor, s.budget, s.logger)
	}
	s.logger = s.logger.Named("wallet")
	return s
}

// GetBalance returns the on-chain lamport balance of address.
func (s *Service) GetBalance(ctx context.Context, address sol.PublicKey) (uint64, error) {
	if address.IsZero() {
		return 0, domain.ErrInvalidAddress
	}
	return s.ledger.GetBalance(ctx, address)
}

// Transfer moves lamports from the sender to to and waits for confirmation.
func (s *Service) Transfer(ctx context.Context, from keys.Keypair, to sol.PublicKey, lamports uint64) (*executor.Flight, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: transfer of zero lamports", domain.ErrInvalidAmount)
	}
	if from.IsZero() {
		return nil, fmt.Errorf("%w: no sender keypair", domain.ErrSigning)
	}

	tx, err := s.builder.Transfer(from.PublicKey(), to, lamports)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, "transfer", tx, s.budget, from)
}

// Airdrop requests lamports from the cluster faucet and waits for the
// faucet transaction to confirm.
func (s *Service) Airdrop(ctx context.Context, to sol.PublicKey, lamports uint64) (*executor.Flight, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: airdrop of zero lamports", domain.ErrInvalidAmount)
	}
	if to.IsZero() {
		return nil, domain.ErrInvalidAddress
	}

	sig, err := s.ledger.RequestAirdrop(ctx, to, lamports)
	if err != nil {
		if solana.IsRPCError(err) {
			return nil, &domain.FailedError{Reason: err.Error()}
		}
		return nil, fmt.Errorf("request airdrop: %w", err)
	}
	return s.executor.Track(ctx, "airdrop", sig, s.budget)
}

// CreatedAccount is a freshly created system account and its keypair.
type CreatedAccount struct {
	Keypair keys.Keypair
	Flight  *executor.Flight
}

// CreateAccount funds a new rent-exempt account of space bytes owned by owner.
// The new account's keypair co-signs and is returned to the caller.
func (s *Service) CreateAccount(ctx context.Context, funder keys.Keypair, owner sol.PublicKey, space uint64) (*CreatedAccount, error) {
	if funder.IsZero() {
		return nil, fmt.Errorf("%w: no funder keypair", domain.ErrSigning)
	}
	account, err := keys.Generate()
	if err != nil {
		return nil, err
	}

	tx, err := s.builder.CreateAccount(ctx, funder.PublicKey(), account.PublicKey(), owner, space)
	if err != nil {
		return nil, err
	}
	flight, err := s.executor.Execute(ctx, "create_account", tx, s.budget, funder, account)
	return &CreatedAccount{Keypair: account, Flight: flight}, err
}

// TransferToken moves amount base units of mint from the owner's token
// account to the recipient's, creating the recipient account if needed.
func (s *Service) TransferToken(ctx context.Context, owner keys.Keypair, recipient, mint sol.PublicKey, amount uint64, decimals uint8, opts ...txbuilder.TokenOption) (*executor.Flight, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: token transfer of zero", domain.ErrInvalidAmount)
	}
	if owner.IsZero() {
		return nil, fmt.Errorf("%w: no owner keypair", domain.ErrSigning)
	}

	tx, err := s.builder.TokenTransfer(ctx, owner.PublicKey(), recipient, mint, amount, decimals, opts...)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, "token_transfer", tx, s.budget, owner)
}

// ClusterInfo is the node version and the cluster clock.
type ClusterInfo struct {
	Version       string
	FeatureSet    uint32
	Slot          uint64
	UnixTimestamp int64
}

// Time returns the cluster clock as UTC time.
func (c *ClusterInfo) Time() time.Time {
	return time.Unix(c.UnixTimestamp, 0).UTC()
}

// ClusterInfo reads the node version and the Clock sysvar.
func (s *Service) ClusterInfo(ctx context.Context) (*ClusterInfo, error) {
	version, err := s.ledger.GetVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	account, err := s.ledger.GetAccountInfo(ctx, sol.SysVarClockPubkey)
	if err != nil {
		return nil, fmt.Errorf("get clock sysvar: %w", err)
	}
	if account == nil {
		return nil, &domain.ProtocolError{Op: "getAccountInfo", Err: errors.New("clock sysvar missing")}
	}
	clock, err := solana.DecodeClock(account.Data)
	if err != nil {
		return nil, err
	}
	return &ClusterInfo{
		Version:       version.SolanaCore,
		FeatureSet:    version.FeatureSet,
		Slot:          clock.Slot,
		UnixTimestamp: clock.UnixTimestamp,
	}, nil
}

// GetSupply returns total, circulating and non-circulating lamports.
func (s *Service) GetSupply(ctx context.Context) (*solana.Supply, error) {
	return s.ledger.GetSupply(ctx)
}

// Swap converts amount of from into to through the quote service.
func (s *Service) Swap(ctx context.Context, kp keys.Keypair, from, to string, amount, slippage decimal.Decimal) (*swap.Result, error) {
	if s.swaps == nil {
		return nil, ErrSwapUnavailable
	}
	return s.swaps.Swap(ctx, kp, from, to, amount, slippage)
}

// EstimateThroughput measures user transactions per second over the last
// windowSeconds of block time and records the sample when a store is set.
func (s *Service) EstimateThroughput(ctx context.Context, windowSeconds int64) (domain.ThroughputSample, error) {
	sample, err := s.estimator.Estimate(ctx, windowSeconds)
	if err != nil {
		return domain.ThroughputSample{}, err
	}
	if s.samples != nil {
		if err := s.samples.Insert(ctx, &sample); err != nil {
			return sample, fmt.Errorf("record throughput sample: %w", err)
		}
	}
	return sample, nil
}

// ThroughputHistory lists up to limit recorded estimates, newest first.
func (s *Service) ThroughputHistory(ctx context.Context, limit int) ([]*domain.ThroughputSample, error) {
	if s.samples == nil {
		return nil, nil
	}
	return s.samples.ListRecent(ctx, limit)
}

// CreateWallet generates a keypair and registers a zero-balance wallet
// record for userID. The secret key is returned and never stored.
func (s *Service) CreateWallet(ctx context.Context, userID int64) (*domain.WalletRecord, keys.Keypair, error) {
	kp, err := keys.Generate()
	if err != nil {
		return nil, keys.Keypair{}, err
	}

	w := domain.NewWalletRecord(userID, kp.PublicKey().String())
	if err := s.wallets.Insert(ctx, w); err != nil {
		return nil, keys.Keypair{}, fmt.Errorf("insert wallet: %w", err)
	}

	s.logger.Info("wallet created",
		zap.Int64("wallet_id", w.ID),
		zap.Int64("user_id", userID),
		zap.String("public_key", w.PublicKey))
	return w, kp, nil
}

// GetWallet returns a wallet record. Returns ErrWalletNotFound if not exists.
func (s *Service) GetWallet(ctx context.Context, walletID int64) (*domain.WalletRecord, error) {
	w, err := s.wallets.GetByID(ctx, walletID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", domain.ErrWalletNotFound, walletID)
	}
	return w, err
}

// Deposit applies a signed amount to the cached balance of a wallet record.
// A negative amount that would overdraw the record returns
// ErrInsufficientFunds and leaves the stored balance unchanged.
func (s *Service) Deposit(ctx context.Context, walletID int64, amount decimal.Decimal) (*domain.WalletRecord, error) {
	return s.updateBalance(ctx, "deposit", walletID, amount)
}

// Withdraw debits amount from the cached balance of a wallet record. The
// record is left untouched when the balance is insufficient.
func (s *Service) Withdraw(ctx context.Context, walletID int64, amount decimal.Decimal) (*domain.WalletRecord, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: withdrawal must be positive", domain.ErrInvalidAmount)
	}
	return s.updateBalance(ctx, "withdraw", walletID, amount.Neg())
}

func (s *Service) updateBalance(ctx context.Context, op string, walletID int64, delta decimal.Decimal) (w *domain.WalletRecord, err error) {
	defer func() { observability.RecordBalanceUpdate(op, err) }()

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, walletID)
		if err != nil {
			return nil, fmt.Errorf("lock wallet %d: %w", walletID, err)
		}
		defer func() {
			if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
				s.logger.Warn("wallet unlock failed", zap.Int64("wallet_id", walletID), zap.Error(uerr))
			}
		}()
	}

	w, err = s.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.Disabled {
		return nil, fmt.Errorf("%w: %d", domain.ErrWalletDisabled, walletID)
	}
	if err := w.ApplyDelta(delta); err != nil {
		return nil, err
	}
	if err := s.wallets.Save(ctx, w); err != nil {
		return nil, fmt.Errorf("save wallet %d: %w", walletID, err)
	}

	s.logger.Debug("balance updated",
		zap.String("operation", op),
		zap.Int64("wallet_id", walletID),
		zap.String("delta", delta.String()),
		zap.String("balance", w.Balance.String()))
	return w, nil
}
