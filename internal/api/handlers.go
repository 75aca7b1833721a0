package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/txbuilder"
)

const (
	defaultWindowSeconds = 60
	maxWindowSeconds     = 600
	defaultHistoryLimit  = 20
	maxHistoryLimit      = 1000
)

var errBadRequest = errors.New("bad request")

// TransferRequest moves lamports between two addresses.
type TransferRequest struct {
	SecretKey string `json:"secret_key"` // base58 or JSON byte array
	To        string `json:"to"`
	Lamports  uint64 `json:"lamports"`
}

// AirdropRequest asks the faucet for lamports.
type AirdropRequest struct {
	Address  string `json:"address"`
	Lamports uint64 `json:"lamports"`
}

// SwapRequest converts one asset into another.
type SwapRequest struct {
	SecretKey string          `json:"secret_key"`
	From      string          `json:"from"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Slippage  decimal.Decimal `json:"slippage"`
}

// CreateWalletRequest registers a new wallet for a user.
type CreateWalletRequest struct {
	UserID int64 `json:"user_id"`
}

// BalanceChangeRequest carries a deposit or withdrawal amount.
type BalanceChangeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// FlightView is the API form of a transaction outcome.
type FlightView struct {
	Signature string `json:"signature,omitempty"`
	State     string `json:"state"`
	Polls     int    `json:"polls"`
	Reason    string `json:"reason,omitempty"`
}

func flightView(f *executor.Flight) *FlightView {
	if f == nil {
		return nil
	}
	v := &FlightView{State: f.State.String(), Polls: f.Polls, Reason: f.Reason}
	if f.Signature != (sol.Signature{}) {
		v.Signature = f.Signature.String()
	}
	return v
}

// WalletView is the API form of a wallet record.
type WalletView struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	PublicKey string          `json:"public_key"`
	Balance   decimal.Decimal `json:"balance"`
	Disabled  bool            `json:"disabled"`
	CreatedAt int64           `json:"created_at"`
	UpdatedAt int64           `json:"updated_at"`
}

func walletView(w *domain.WalletRecord) WalletView {
	return WalletView{
		ID:        w.ID,
		UserID:    w.UserID,
		PublicKey: w.PublicKey,
		Balance:   w.Balance,
		Disabled:  w.Disabled,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func walletID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: wallet id: %v", errBadRequest, err)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	text := r.URL.Query().Get(name)
	if text == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", errBadRequest, name, err)
	}
	return v, nil
}

func (s *Server) balanceHandler(rw http.ResponseWriter, r *http.Request) {
	address, err := txbuilder.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		fail(rw, err)
		return
	}
	lamports, err := s.svc.GetBalance(r.Context(), address)
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, map[string]interface{}{
		"address":  address.String(),
		"lamports": lamports,
		"sol":      lamportsView(lamports).SOL,
	})
}

func (s *Server) transferHandler(rw http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := decode(r, &req); err != nil {
		fail(rw, err)
		return
	}
	kp, err := keys.Parse(req.SecretKey)
	if err != nil {
		fail(rw, fmt.Errorf("%w: %v", domain.ErrSigning, err))
		return
	}
	to, err := txbuilder.ParseAddress(req.To)
	if err != nil {
		fail(rw, err)
		return
	}

	flight, err := s.svc.Transfer(r.Context(), kp, to, req.Lamports)
	s.replyFlight(rw, "transfer", flight, err)
}

func (s *Server) airdropHandler(rw http.ResponseWriter, r *http.Request) {
	var req AirdropRequest
	if err := decode(r, &req); err != nil {
		fail(rw, err)
		return
	}
	to, err := txbuilder.ParseAddress(req.Address)
	if err != nil {
		fail(rw, err)
		return
	}

	flight, err := s.svc.Airdrop(r.Context(), to, req.Lamports)
	s.replyFlight(rw, "airdrop", flight, err)
}

func (s *Server) swapHandler(rw http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := decode(r, &req); err != nil {
		fail(rw, err)
		return
	}
	kp, err := keys.Parse(req.SecretKey)
	if err != nil {
		fail(rw, fmt.Errorf("%w: %v", domain.ErrSigning, err))
		return
	}

	res, err := s.svc.Swap(r.Context(), kp, req.From, req.To, req.Amount, req.Slippage)
	if err != nil {
		if res != nil && res.Flight != nil {
			s.logger.Warn("swap failed after submission",
				zap.String("signature", res.Flight.Signature.String()),
				zap.Error(err))
		}
		fail(rw, err)
		return
	}
	ok(rw, map[string]interface{}{
		"flight":       flightView(res.Flight),
		"swap_details": res.Quote.SwapDetails,
		"token_info":   res.Quote.TokenInfo,
	})
}

func (s *Server) throughputHandler(rw http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", defaultWindowSeconds)
	if err != nil {
		fail(rw, err)
		return
	}
	if window > maxWindowSeconds {
		fail(rw, fmt.Errorf("%w: window must be at most %d seconds", errBadRequest, maxWindowSeconds))
		return
	}
	sample, err := s.svc.EstimateThroughput(r.Context(), window)
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, sampleView(&sample))
}

func (s *Server) clusterHandler(rw http.ResponseWriter, r *http.Request) {
	info, err := s.svc.ClusterInfo(r.Context())
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, map[string]interface{}{
		"version":        info.Version,
		"feature_set":    info.FeatureSet,
		"slot":           info.Slot,
		"unix_timestamp": info.UnixTimestamp,
		"time":           info.Time().Format(time.RFC3339),
	})
}

func (s *Server) supplyHandler(rw http.ResponseWriter, r *http.Request) {
	supply, err := s.svc.GetSupply(r.Context())
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, map[string]interface{}{
		"total":           lamportsView(supply.Total),
		"circulating":     lamportsView(supply.Circulating),
		"non_circulating": lamportsView(supply.NonCirculating),
	})
}

// LamportsView carries an amount in lamports and in SOL.
type LamportsView struct {
	Lamports uint64          `json:"lamports"`
	SOL      decimal.Decimal `json:"sol"`
}

func lamportsView(lamports uint64) LamportsView {
	return LamportsView{Lamports: lamports, SOL: decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -9)}
}

func (s *Server) historyHandler(rw http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistoryLimit)
	if err != nil {
		fail(rw, err)
		return
	}
	if limit <= 0 || limit > maxHistoryLimit {
		fail(rw, fmt.Errorf("%w: limit must be in 1..%d", errBadRequest, maxHistoryLimit))
		return
	}

	samples, err := s.svc.ThroughputHistory(r.Context(), int(limit))
	if err != nil {
		fail(rw, err)
		return
	}
	views := make([]SampleView, 0, len(samples))
	for _, sample := range samples {
		views = append(views, sampleView(sample))
	}
	ok(rw, views)
}

func (s *Server) createWalletHandler(rw http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest
	if err := decode(r, &req); err != nil {
		fail(rw, err)
		return
	}
	w, kp, err := s.svc.CreateWallet(r.Context(), req.UserID)
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, map[string]interface{}{
		"wallet":     walletView(w),
		"secret_key": kp.Base58(),
	})
}

func (s *Server) getWalletHandler(rw http.ResponseWriter, r *http.Request) {
	id, err := walletID(r)
	if err != nil {
		fail(rw, err)
		return
	}
	w, err := s.svc.GetWallet(r.Context(), id)
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, walletView(w))
}

func (s *Server) depositHandler(rw http.ResponseWriter, r *http.Request) {
	s.balanceChange(rw, r, s.svc.Deposit)
}

func (s *Server) withdrawHandler(rw http.ResponseWriter, r *http.Request) {
	s.balanceChange(rw, r, s.svc.Withdraw)
}

type balanceOp func(ctx context.Context, walletID int64, amount decimal.Decimal) (*domain.WalletRecord, error)

func (s *Server) balanceChange(rw http.ResponseWriter, r *http.Request, op balanceOp) {
	id, err := walletID(r)
	if err != nil {
		fail(rw, err)
		return
	}
	var req BalanceChangeRequest
	if err := decode(r, &req); err != nil {
		fail(rw, err)
		return
	}
	w, err := op(r.Context(), id, req.Amount)
	if err != nil {
		fail(rw, err)
		return
	}
	ok(rw, walletView(w))
}

func (s *Server) replyFlight(rw http.ResponseWriter, kind string, flight *executor.Flight, err error) {
	if err != nil {
		if flight != nil && flight.Signature != (sol.Signature{}) {
			s.logger.Warn("transaction did not confirm",
				zap.String("kind", kind),
				zap.String("signature", flight.Signature.String()),
				zap.String("state", flight.State.String()),
				zap.Error(err))
		}
		fail(rw, err)
		return
	}
	ok(rw, flightView(flight))
}

// SampleView is the API form of a throughput estimate.
type SampleView struct {
	HeadSlot         uint64  `json:"head_slot"`
	WindowSeconds    int64   `json:"window_seconds"`
	NewestTimestamp  int64   `json:"newest_timestamp"`
	OldestTimestamp  int64   `json:"oldest_timestamp"`
	UserTransactions uint64  `json:"user_transactions"`
	VoteTransactions uint64  `json:"vote_transactions"`
	BlocksScanned    int     `json:"blocks_scanned"`
	TPS              float64 `json:"tps"`
	RecordedAt       int64   `json:"recorded_at"`
}

func sampleView(s *domain.ThroughputSample) SampleView {
	return SampleView{
		HeadSlot:         s.HeadSlot,
		WindowSeconds:    s.WindowSeconds,
		NewestTimestamp:  s.NewestTimestamp,
		OldestTimestamp:  s.OldestTimestamp,
		UserTransactions: s.UserTransactions,
		VoteTransactions: s.VoteTransactions,
		BlocksScanned:    s.BlocksScanned,
		TPS:              s.Rate,
		RecordedAt:       s.RecordedAt,
	}
}
