package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RPCClient is a JSON-RPC 2.0 client for an EVM node endpoint.
type RPCClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	requestID   atomic.Uint64
}

// RPCOption configures RPCClient.
type RPCOption func(*RPCClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) RPCOption {
	return func(c *RPCClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) RPCOption {
	return func(c *RPCClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) RPCOption {
	return func(c *RPCClient) {
		c.client = client
	}
}

// NewRPCClient creates a new EVM JSON-RPC HTTP client.
func NewRPCClient(endpoint string, opts ...RPCOption) *RPCClient {
	c := &RPCClient{
		endpoint:    endpoint,
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
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
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC 2.0 error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Call performs a JSON-RPC call with retries and exponential backoff.
// RPC-level errors (reverts, bad params) are returned without retry;
// transport failures and rate limits retry up to maxRetries.
func (c *RPCClient) Call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	reqID := c.requestID.Add(1)
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		var rpcResp rpcResponse
		if err := json.Unmarshal(respBody, &rpcResp); err != nil {
			lastErr = fmt.Errorf("unmarshal response: %w", err)
			continue
		}

		if rpcResp.Error != nil {
			// RPC errors are not retried
			return rpcResp.Error
		}

		if result != nil && rpcResp.Result != nil {
			if err := json.Unmarshal(rpcResp.Result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// BlockNumber returns the latest block number.
func (c *RPCClient) BlockNumber(ctx context.Context) (uint64, error) {
	var result string
	if err := c.Call(ctx, "eth_blockNumber", nil, &result); err != nil {
		return 0, err
	}
	return hexToUint64(result)
}

// CallContract performs eth_call against a contract at the given block
// tag ("latest" or a hex quantity) and returns the raw return data.
func (c *RPCClient) CallContract(ctx context.Context, to string, data []byte, blockTag string) ([]byte, error) {
	if blockTag == "" {
		blockTag = "latest"
	}
	params := []interface{}{
		map[string]interface{}{
			"to":   to,
			"data": bytesToHex(data),
		},
		blockTag,
	}

	var result string
	if err := c.Call(ctx, "eth_call", params, &result); err != nil {
		return nil, err
	}
	return hexToBytes(result)
}

// TransactionCount returns the account nonce at the latest block.
func (c *RPCClient) TransactionCount(ctx context.Context, address string) (uint64, error) {
	var result string
	if err := c.Call(ctx, "eth_getTransactionCount", []interface{}{address, "latest"}, &result); err != nil {
		return 0, err
	}
	return hexToUint64(result)
}

// GasPrice returns the node's suggested gas price in wei.
func (c *RPCClient) GasPrice(ctx context.Context) (uint64, error) {
	var result string
	if err := c.Call(ctx, "eth_gasPrice", nil, &result); err != nil {
		return 0, err
	}
	return hexToUint64(result)
}

// SendRawTransaction broadcasts a signed transaction, returning its hash.
func (c *RPCClient) SendRawTransaction(ctx context.Context, rawTx []byte) (string, error) {
	var result string
	if err := c.Call(ctx, "eth_sendRawTransaction", []interface{}{bytesToHex(rawTx)}, &result); err != nil {
		return "", err
	}
	return result, nil
}

// receiptResult is the subset of eth_getTransactionReceipt we consume.
type receiptResult struct {
	TransactionHash string `json:"transactionHash"`
	BlockNumber     string `json:"blockNumber"`
	Status          string `json:"status"`
}

// TransactionReceipt returns the receipt for a transaction, or nil while
// the transaction is still pending.
func (c *RPCClient) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	var result *receiptResult
	if err := c.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash}, &result); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	block, err := hexToUint64(result.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("parse receipt block: %w", err)
	}
	return &Receipt{
		TxHash:      result.TransactionHash,
		BlockNumber: block,
		Success:     result.Status == "0x1",
	}, nil
}
