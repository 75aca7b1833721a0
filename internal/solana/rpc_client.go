package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"go.uber.org/ratelimit"

	"solana-wallet-engine/internal/domain"
	"solana-wallet-engine/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultCommitment = "confirmed"
)

// HTTPClient implements LedgerClient using HTTP JSON-RPC 2.0.
// It is safe for concurrent use; each call is an independent request.
type HTTPClient struct {
	endpoint   string
	client     *http.Client
	commitment string
	limiter    ratelimit.Limiter
	requestID  atomic.Uint64
}

// Compile-time interface check.
var _ LedgerClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// WithCommitment sets the commitment level used for reads and confirmation.
func WithCommitment(commitment string) ClientOption {
	return func(c *HTTPClient) {
		c.commitment = commitment
	}
}

// WithRateLimit paces outgoing requests to at most rps per second.
// Zero or negative disables pacing.
func WithRateLimit(rps int) ClientOption {
	return func(c *HTTPClient) {
		if rps > 0 {
			c.limiter = ratelimit.New(rps)
		} else {
			c.limiter = ratelimit.NewUnlimited()
		}
	}
}

// NewHTTPClient creates a new Solana RPC HTTP client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		client:     &http.Client{Timeout: DefaultTimeout},
		commitment: DefaultCommitment,
		limiter:    ratelimit.NewUnlimited(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rpcRequest represents a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// rpcResponse represents a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is an error object reported by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsRPCError reports whether err carries a node-reported error object.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}

// call performs exactly one JSON-RPC round-trip.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqBody := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return &domain.ProtocolError{Op: method, Err: fmt.Errorf("marshal request: %w", err)}
	}

	c.limiter.Take()
	start := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &domain.TransportError{Op: method, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.TransportError{Op: method, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: method, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.TransportError{Op: method, Err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return &domain.TransportError{Op: method, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return &domain.ProtocolError{Op: method, Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return &domain.ProtocolError{Op: method, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if rpcResp.Error != nil {
		observability.RecordRPCError(method)
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return &domain.ProtocolError{Op: method, Err: fmt.Errorf("unmarshal result: %w", err)}
		}
	}

	return nil
}

func (c *HTTPClient) commitmentConfig() map[string]interface{} {
	return map[string]interface{}{"commitment": c.commitment}
}

// GetBalance returns the lamport balance of an address.
func (c *HTTPClient) GetBalance(ctx context.Context, address sol.PublicKey) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []interface{}{address.String(), c.commitmentConfig()}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// GetLatestBlockhash returns the current reference hash.
func (c *HTTPClient) GetLatestBlockhash(ctx context.Context) (*LatestBlockhash, error) {
	var result struct {
		Value *struct {
			Blockhash            string `json:"blockhash"`
			LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getLatestBlockhash", []interface{}{c.commitmentConfig()}, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, &domain.ProtocolError{Op: "getLatestBlockhash", Err: errors.New("missing value")}
	}

	hash, err := sol.HashFromBase58(result.Value.Blockhash)
	if err != nil {
		return nil, &domain.ProtocolError{Op: "getLatestBlockhash", Err: fmt.Errorf("parse blockhash: %w", err)}
	}

	return &LatestBlockhash{
		Blockhash:            hash,
		LastValidBlockHeight: result.Value.LastValidBlockHeight,
	}, nil
}

// GetBlock retrieves a block by slot number.
func (c *HTTPClient) GetBlock(ctx context.Context, slot uint64) (*Block, error) {
	params := []interface{}{
		slot,
		map[string]interface{}{
			"encoding":                       "json",
			"transactionDetails":             "full",
			"rewards":                        false,
			"maxSupportedTransactionVersion": 0,
			"commitment":                     c.commitment,
		},
	}

	var result *getBlockResult
	if err := c.call(ctx, "getBlock", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, &domain.ProtocolError{Op: "getBlock", Err: fmt.Errorf("block %d not available", slot)}
	}

	block := &Block{
		Slot:        slot,
		ParentSlot:  result.ParentSlot,
		BlockTime:   result.BlockTime,
		BlockHeight: result.BlockHeight,
		Blockhash:   result.Blockhash,
	}

	for _, txWrapper := range result.Transactions {
		tx := Transaction{
			Slot: slot,
		}

		// Extract signature from transaction
		if len(txWrapper.Transaction.Signatures) > 0 {
			tx.Signature = txWrapper.Transaction.Signatures[0]
		}

		if txWrapper.Meta != nil {
			tx.Meta = &TransactionMeta{
				Err: txWrapper.Meta.Err,
				Fee: txWrapper.Meta.Fee,
			}
		}

		if msg := txWrapper.Transaction.Message; msg != nil {
			tx.Message = &TransactionMessage{
				AccountKeys:  msg.AccountKeys,
				Instructions: make([]CompiledInstruction, len(msg.Instructions)),
			}
			for i, ix := range msg.Instructions {
				tx.Message.Instructions[i] = CompiledInstruction{
					ProgramIDIndex: ix.ProgramIDIndex,
					Accounts:       ix.Accounts,
					Data:           ix.Data,
				}
			}
		}

		block.Transactions = append(block.Transactions, tx)
	}

	return block, nil
}

// getBlockResult is the raw RPC response for getBlock.
type getBlockResult struct {
	Blockhash    string              `json:"blockhash"`
	ParentSlot   uint64              `json:"parentSlot"`
	BlockTime    *int64              `json:"blockTime"`
	BlockHeight  *uint64             `json:"blockHeight"`
	Transactions []getBlockTxWrapper `json:"transactions"`
}

type getBlockTxWrapper struct {
	Transaction getBlockTx    `json:"transaction"`
	Meta        *getBlockMeta `json:"meta"`
}

type getBlockMeta struct {
	Err interface{} `json:"err"`
	Fee uint64      `json:"fee"`
}

type getBlockTx struct {
	Signatures []string            `json:"signatures"`
	Message    *getBlockTxMessage `json:"message"`
}

type getBlockTxMessage struct {
	AccountKeys  []string              `json:"accountKeys"`
	Instructions []getBlockInstruction `json:"instructions"`
}

type getBlockInstruction struct {
	ProgramIDIndex int    `json:"programIdIndex"`
	Accounts       []int  `json:"accounts"`
	Data           string `json:"data"`
}

// GetSlot retrieves the current slot.
func (c *HTTPClient) GetSlot(ctx context.Context) (uint64, error) {
	var result uint64
	if err := c.call(ctx, "getSlot", []interface{}{c.commitmentConfig()}, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// SendTransaction submits a signed transaction in base64 wire form.
func (c *HTTPClient) SendTransaction(ctx context.Context, tx *sol.Transaction) (sol.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return sol.Signature{}, &domain.ProtocolError{Op: "sendTransaction", Err: fmt.Errorf("serialize transaction: %w", err)}
	}

	params := []interface{}{
		base64.StdEncoding.EncodeToString(raw),
		map[string]interface{}{
			"encoding":            "base64",
			"preflightCommitment": c.commitment,
			"maxRetries":          0,
		},
	}

	var result string
	if err := c.call(ctx, "sendTransaction", params, &result); err != nil {
		return sol.Signature{}, err
	}

	sig, err := sol.SignatureFromBase58(result)
	if err != nil {
		return sol.Signature{}, &domain.ProtocolError{Op: "sendTransaction", Err: fmt.Errorf("parse signature: %w", err)}
	}
	return sig, nil
}

// ConfirmTransaction reads the status of a submitted signature via getSignatureStatuses.
func (c *HTTPClient) ConfirmTransaction(ctx context.Context, signature sol.Signature) (SignatureStatus, error) {
	params := []interface{}{
		[]string{signature.String()},
		map[string]interface{}{"searchTransactionHistory": false},
	}

	var result struct {
		Value []*struct {
			Slot               uint64      `json:"slot"`
			Err                interface{} `json:"err"`
			ConfirmationStatus string      `json:"confirmationStatus"`
		} `json:"value"`
	}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return SignatureStatus{}, err
	}

	if len(result.Value) == 0 || result.Value[0] == nil {
		return SignatureStatus{}, nil
	}

	v := result.Value[0]
	return SignatureStatus{
		Found:              true,
		Slot:               v.Slot,
		ConfirmationStatus: v.ConfirmationStatus,
		Err:                v.Err,
	}, nil
}

// RequestAirdrop asks the node to credit lamports to an address.
func (c *HTTPClient) RequestAirdrop(ctx context.Context, address sol.PublicKey, lamports uint64) (sol.Signature, error) {
	params := []interface{}{address.String(), lamports, c.commitmentConfig()}

	var result string
	if err := c.call(ctx, "requestAirdrop", params, &result); err != nil {
		return sol.Signature{}, err
	}

	sig, err := sol.SignatureFromBase58(result)
	if err != nil {
		return sol.Signature{}, &domain.ProtocolError{Op: "requestAirdrop", Err: fmt.Errorf("parse signature: %w", err)}
	}
	return sig, nil
}

// GetAccountInfo retrieves account info by public key.
// Returns nil if account not found.
func (c *HTTPClient) GetAccountInfo(ctx context.Context, address sol.PublicKey) (*AccountInfo, error) {
	params := []interface{}{
		address.String(),
		map[string]interface{}{
			"encoding":   "base64",
			"commitment": c.commitment,
		},
	}

	var result getAccountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}

	if result.Value == nil {
		return nil, nil
	}

	info := &AccountInfo{
		Lamports:   result.Value.Lamports,
		Owner:      result.Value.Owner,
		Executable: result.Value.Executable,
		RentEpoch:  result.Value.RentEpoch,
	}

	if len(result.Value.Data) >= 1 {
		info.Data = result.Value.Data[0]
	}

	return info, nil
}

type getAccountInfoResult struct {
	Value *getAccountInfoValue `json:"value"`
}

type getAccountInfoValue struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for an account of the given size.
func (c *HTTPClient) GetMinimumBalanceForRentExemption(ctx context.Context, space uint64) (uint64, error) {
	var result uint64
	if err := c.call(ctx, "getMinimumBalanceForRentExemption", []interface{}{space}, &result); err != nil {
		return 0, err
	}
	return result, nil
}

// GetVersion returns the software version the node runs.
func (c *HTTPClient) GetVersion(ctx context.Context) (*Version, error) {
	var result Version
	if err := c.call(ctx, "getVersion", nil, &result); err != nil {
		return nil, err
	}
	if result.SolanaCore == "" {
		return nil, &domain.ProtocolError{Op: "getVersion", Err: errors.New("missing solana-core")}
	}
	return &result, nil
}

// GetSupply returns the cluster supply without the non-circulating account list.
func (c *HTTPClient) GetSupply(ctx context.Context) (*Supply, error) {
	params := []interface{}{
		map[string]interface{}{
			"commitment":                        c.commitment,
			"excludeNonCirculatingAccountsList": true,
		},
	}
	var result struct {
		Value *Supply `json:"value"`
	}
	if err := c.call(ctx, "getSupply", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, &domain.ProtocolError{Op: "getSupply", Err: errors.New("missing value")}
	}
	return result.Value, nil
}
