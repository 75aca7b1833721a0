package swap

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/executor"
	"solana-wallet-engine/internal/keys"
	"solana-wallet-engine/internal/solana/stub"
)

const (
	wsolMint = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

type fixedQuotes struct {
	quote *Quote
	err   error
	calls int
}

func (f *fixedQuotes) GetQuote(_ context.Context, _ QuoteRequest) (*Quote, error) {
	f.calls++
	return f.quote, f.err
}

// encodedEnvelope returns a base64 legacy transaction paid by payer, already
// carrying a stale signature from the quote service.
func encodedEnvelope(t *testing.T, payer sol.PublicKey) string {
	t.Helper()
	tx, err := sol.NewTransaction(
		[]sol.Instruction{system.NewTransferInstruction(42, payer, sol.NewWallet().PublicKey()).Build()},
		sol.Hash{7},
		sol.TransactionPayer(payer),
	)
	require.NoError(t, err)
	tx.Signatures = []sol.Signature{{1, 2, 3}}

	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

func newKeypair(t *testing.T) keys.Keypair {
	t.Helper()
	kp, err := keys.Generate()
	require.NoError(t, err)
	return kp
}

func TestOrchestrator_Swap(t *testing.T) {
	kp := newKeypair(t)
	ledger := stub.NewLedgerClient()
	ledger.ConfirmAfter = 1

	quotes := &fixedQuotes{quote: &Quote{Transaction: Envelope{
		SerializedTx: encodedEnvelope(t, kp.PublicKey()),
		TxType:       "legacy",
	}}}

	exec := executor.New(ledger, executor.WithPollInterval(time.Millisecond))
	o := NewOrchestrator(quotes, exec, time.Second, nil)

	res, err := o.Swap(context.Background(), kp, wsolMint, usdcMint,
		decimal.RequireFromString("0.5"), decimal.NewFromInt(1))
	require.NoError(t, err)

	assert.Equal(t, executor.StateConfirmed, res.Flight.State)
	require.Equal(t, 1, ledger.SentCount())
	sent := ledger.Sent[0]
	require.Len(t, sent.Signatures, 1)
	assert.NotEqual(t, sol.Signature{1, 2, 3}, sent.Signatures[0], "stale signature discarded")
	assert.NotEqual(t, sol.Hash{7}, sent.Message.RecentBlockhash, "fresh blockhash stamped")
}

// Scenario E: unknown envelope version never reaches the network.
func TestOrchestrator_UnsupportedEnvelope(t *testing.T) {
	kp := newKeypair(t)
	ledger := stub.NewLedgerClient()

	quotes := &fixedQuotes{quote: &Quote{Transaction: Envelope{
		SerializedTx: encodedEnvelope(t, kp.PublicKey()),
		TxType:       "v9",
	}}}
	o := NewOrchestrator(quotes, executor.New(ledger), time.Second, nil)

	_, err := o.Swap(context.Background(), kp, wsolMint, usdcMint,
		decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrUnsupportedSwapEnvelope)
	assert.Equal(t, 0, ledger.SentCount())
	assert.Equal(t, 0, ledger.CallCount("sendTransaction"))
	assert.Equal(t, 0, ledger.CallCount("getLatestBlockhash"))
}

func TestOrchestrator_EnvelopeForAnotherPayer(t *testing.T) {
	kp := newKeypair(t)
	other := newKeypair(t)
	ledger := stub.NewLedgerClient()

	quotes := &fixedQuotes{quote: &Quote{Transaction: Envelope{
		SerializedTx: encodedEnvelope(t, other.PublicKey()),
		TxType:       "legacy",
	}}}
	o := NewOrchestrator(quotes, executor.New(ledger), time.Second, nil)

	_, err := o.Swap(context.Background(), kp, wsolMint, usdcMint,
		decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.ErrorIs(t, err, domain.ErrSigning)
	assert.Equal(t, 0, ledger.SentCount())
}

func TestOrchestrator_RejectsNonPositiveAmount(t *testing.T) {
	quotes := &fixedQuotes{}
	o := NewOrchestrator(quotes, executor.New(stub.NewLedgerClient()), time.Second, nil)

	_, err := o.Swap(context.Background(), newKeypair(t), "a", "b", decimal.Zero, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.Equal(t, 0, quotes.calls)
}

func TestQuoteClient_GetQuote(t *testing.T) {
	payer := sol.NewWallet().PublicKey()
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"transaction": map[string]string{"serializedTx": "AQID", "txType": "v0"},
			"swapDetails": map[string]interface{}{"rate": 12.5},
			"tokenInfo":   map[string]interface{}{"symbol": "USDC"},
		})
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL+"/swap", DefaultBreakerConfig())
	quote, err := client.GetQuote(context.Background(), QuoteRequest{
		From:     wsolMint,
		To:       usdcMint,
		Amount:   decimal.RequireFromString("1.25"),
		Slippage: decimal.NewFromInt(10),
		Payer:    payer,
	})
	require.NoError(t, err)

	assert.Equal(t, "v0", quote.Transaction.TxType)
	assert.Equal(t, "AQID", quote.Transaction.SerializedTx)
	assert.JSONEq(t, `{"rate":12.5}`, string(quote.SwapDetails))
	assert.Equal(t, map[string]string{
		"from":   wsolMint,
		"to":     usdcMint,
		"amount": "1.25",
		"slip":   "10",
		"payer":  payer.String(),
	}, gotQuery)
}

func TestQuoteClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error is transport",
			status: http.StatusBadGateway,
			body:   "bad gateway",
			check: func(t *testing.T, err error) {
				var te *domain.TransportError
				assert.ErrorAs(t, err, &te)
			},
		},
		{
			name:   "bad request is protocol",
			status: http.StatusBadRequest,
			body:   `{"error":"unknown mint"}`,
			check: func(t *testing.T, err error) {
				var pe *domain.ProtocolError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name:   "malformed body is protocol",
			status: http.StatusOK,
			body:   `{"transaction":`,
			check: func(t *testing.T, err error) {
				var pe *domain.ProtocolError
				assert.ErrorAs(t, err, &pe)
			},
		},
		{
			name:   "missing transaction is protocol",
			status: http.StatusOK,
			body:   `{"swapDetails":{}}`,
			check: func(t *testing.T, err error) {
				var pe *domain.ProtocolError
				assert.ErrorAs(t, err, &pe)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewQuoteClient(server.URL, DefaultBreakerConfig()).GetQuote(context.Background(), QuoteRequest{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestQuoteClient_BreakerOpens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewQuoteClient(server.URL, BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute})
	for i := 0; i < 2; i++ {
		_, err := client.GetQuote(context.Background(), QuoteRequest{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := client.GetQuote(context.Background(), QuoteRequest{})
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.True(t, domain.IsRetryable(err))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
