// Package api serves the wallet operations over a JSON REST interface.
package api

import (
	"context"
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
	"solana-wallet-engine/internal/observability"
	"solana-wallet-engine/internal/solana"
	"solana-wallet-engine/internal/swap"
	"solana-wallet-engine/internal/wallet"
)

const timeout = 15 * time.Second

// WalletService is the set of wallet operations the API exposes.
type WalletService interface {
	GetBalance(ctx context.Context, address sol.PublicKey) (uint64, error)
	Transfer(ctx context.Context, from keys.Keypair, to sol.PublicKey, lamports uint64) (*executor.Flight, error)
	Airdrop(ctx context.Context, to sol.PublicKey, lamports uint64) (*executor.Flight, error)
	Swap(ctx context.Context, kp keys.Keypair, from, to string, amount, slippage decimal.Decimal) (*swap.Result, error)
	EstimateThroughput(ctx context.Context, windowSeconds int64) (domain.ThroughputSample, error)
	ThroughputHistory(ctx context.Context, limit int) ([]*domain.ThroughputSample, error)
	CreateWallet(ctx context.Context, userID int64) (*domain.WalletRecord, keys.Keypair, error)
	GetWallet(ctx context.Context, walletID int64) (*domain.WalletRecord, error)
	Deposit(ctx context.Context, walletID int64, amount decimal.Decimal) (*domain.WalletRecord, error)
	Withdraw(ctx context.Context, walletID int64, amount decimal.Decimal) (*domain.WalletRecord, error)
	ClusterInfo(ctx context.Context) (*wallet.ClusterInfo, error)
	GetSupply(ctx context.Context) (*solana.Supply, error)
}

// Server routes API requests to a WalletService.
type Server struct {
	svc    WalletService
	logger *zap.Logger
	router *mux.Router
}

// NewServer creates the API server and registers its routes.
func NewServer(svc WalletService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{svc: svc, logger: logger.Named("api")}

	r := mux.NewRouter()
	r.HandleFunc("/balance/{address}", s.balanceHandler).Methods(http.MethodGet)
	r.HandleFunc("/transfer", s.transferHandler).Methods(http.MethodPost)
	r.HandleFunc("/airdrop", s.airdropHandler).Methods(http.MethodPost)
	r.HandleFunc("/swap", s.swapHandler).Methods(http.MethodPost)
	r.HandleFunc("/throughput", s.throughputHandler).Methods(http.MethodGet)
	r.HandleFunc("/throughput/history", s.historyHandler).Methods(http.MethodGet)
	r.HandleFunc("/cluster", s.clusterHandler).Methods(http.MethodGet)
	r.HandleFunc("/supply", s.supplyHandler).Methods(http.MethodGet)
	r.HandleFunc("/wallets", s.createWalletHandler).Methods(http.MethodPost)
	r.HandleFunc("/wallets/{id:[0-9]+}", s.getWalletHandler).Methods(http.MethodGet)
	r.HandleFunc("/wallets/{id:[0-9]+}/deposit", s.depositHandler).Methods(http.MethodPost)
	r.HandleFunc("/wallets/{id:[0-9]+}/withdraw", s.withdrawHandler).Methods(http.MethodPost)
	r.Use(s.instrument)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(rw, r)
}

// HTTPServer wraps the router in an http.Server with read and write timeouts.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Handler:      s,
		Addr:         addr,
		WriteTimeout: timeout + time.Minute,
		ReadTimeout:  timeout,
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		observability.RecordHTTPRequest(route, strconv.Itoa(rec.status))
		s.logger.Debug("httpreq",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", rec.status),
			zap.String("remote", r.RemoteAddr),
			zap.Duration("took", time.Since(start)))
	})
}
