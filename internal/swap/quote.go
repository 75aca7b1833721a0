// Package swap converts one asset into another through an external quote
// service that returns a pre-built transaction, then executes it.
package swap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/observability"
)

// QuoteRequest describes the conversion to price.
type QuoteRequest struct {
	From     string          // input asset mint
	To       string          // output asset mint
	Amount   decimal.Decimal // input amount in asset units
	Slippage decimal.Decimal // maximum acceptable slippage, percent
	Payer    sol.PublicKey
}

// Envelope is the pre-built transaction carried by a quote.
type Envelope struct {
	SerializedTx string `json:"serializedTx"`
	TxType       string `json:"txType"`
}

// Quote is the quote service response.
type Quote struct {
	Transaction Envelope        `json:"transaction"`
	SwapDetails json.RawMessage `json:"swapDetails,omitempty"`
	TokenInfo   json.RawMessage `json:"tokenInfo,omitempty"`
}

// QuoteSource prices a swap and returns the transaction that performs it.
type QuoteSource interface {
	GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

// BreakerConfig controls when the quote client stops calling a failing service.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // how long the breaker stays open
}

// DefaultBreakerConfig returns the default breaker thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, OpenTimeout: 30 * time.Second}
}

// QuoteClient fetches quotes over HTTP behind a circuit breaker.
type QuoteClient struct {
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// QuoteOption configures a QuoteClient.
type QuoteOption func(*QuoteClient)

// WithQuoteTimeout sets the HTTP client timeout.
func WithQuoteTimeout(d time.Duration) QuoteOption {
	return func(c *QuoteClient) {
		c.httpClient.Timeout = d
	}
}

// WithQuoteHTTPClient sets a custom HTTP client.
func WithQuoteHTTPClient(client *http.Client) QuoteOption {
	return func(c *QuoteClient) {
		c.httpClient = client
	}
}

// WithQuoteLogger sets the client logger.
func WithQuoteLogger(logger *zap.Logger) QuoteOption {
	return func(c *QuoteClient) {
		c.logger = logger.Named("swap-quote")
	}
}

// NewQuoteClient creates a quote client for the given endpoint.
func NewQuoteClient(endpoint string, breaker BreakerConfig, opts ...QuoteOption) *QuoteClient {
	c := &QuoteClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	maxFailures := breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultBreakerConfig().MaxFailures
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "swap-quote",
		Timeout: breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.SetSwapBreakerState(int(to))
			switch {
			case to == gobreaker.StateOpen:
				c.logger.Warn("quote service seems down, stop allowing requests", zap.String("breaker", name))
			case from == gobreaker.StateOpen && to == gobreaker.StateHalfOpen:
				c.logger.Info("checking quote service status", zap.String("breaker", name))
			case from == gobreaker.StateHalfOpen && to == gobreaker.StateClosed:
				c.logger.Info("quote service seems ok, restart allowing requests", zap.String("breaker", name))
			}
		},
	})
	return c
}

// BreakerState returns the current breaker state.
func (c *QuoteClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// GetQuote requests a quote. The envelope version is not interpreted here.
func (c *QuoteClient) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, req)
	})
	if err != nil {
		observability.RecordSwapQuote("error")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.TransportError{Op: "quote", Err: err}
		}
		return nil, err
	}
	observability.RecordSwapQuote("ok")
	return result.(*Quote), nil
}

func (c *QuoteClient) fetch(ctx context.Context, req QuoteRequest) (*Quote, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse quote endpoint: %w", err)
	}
	q := u.Query()
	q.Set("from", req.From)
	q.Set("to", req.To)
	q.Set("amount", req.Amount.String())
	q.Set("slip", req.Slippage.String())
	q.Set("payer", req.Payer.String())
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create quote request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.TransportError{Op: "quote", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.TransportError{Op: "quote", Err: err}
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return nil, &domain.TransportError{Op: "quote", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body))}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ProtocolError{Op: "quote", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body))}
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, &domain.ProtocolError{Op: "quote", Err: err}
	}
	if quote.Transaction.SerializedTx == "" {
		return nil, &domain.ProtocolError{Op: "quote", Err: errors.New("quote carries no transaction")}
	}

	c.logger.Debug("quote received",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.String("tx_type", quote.Transaction.TxType),
		zap.Int("envelope_bytes", len(quote.Transaction.SerializedTx)))
	return &quote, nil
}

func truncate(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..." + strconv.Itoa(len(body)-limit) + " more bytes"
	}
	return string(body)
}
