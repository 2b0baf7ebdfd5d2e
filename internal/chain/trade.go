package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// Trade client defaults.
const (
	DefaultGasLimit        = 300000
	DefaultReceiptInterval = 3 * time.Second
	DefaultReceiptTimeout  = 2 * time.Minute
)

// TxParams carries everything a signer needs to produce a signed raw
// transaction.
type TxParams struct {
	To       string
	Value    *big.Int
	Data     []byte
	Nonce    uint64
	GasLimit uint64
	GasPrice uint64
	ChainID  uint64
}

// Signer turns unsigned transaction parameters into signed raw bytes.
// Key custody lives entirely behind this interface.
type Signer interface {
	// Address returns the account address transactions are sent from.
	Address() string

	// SignTx returns the RLP-encoded signed transaction.
	SignTx(ctx context.Context, tx *TxParams) ([]byte, error)
}

// RouterTradeClient implements TradeClient against a UniswapV2-style
// router contract via JSON-RPC.
type RouterTradeClient struct {
	rpc             *RPCClient
	signer          Signer
	router          string
	chainID         uint64
	gasLimit        uint64
	receiptInterval time.Duration
	receiptTimeout  time.Duration
}

// TradeOption configures RouterTradeClient.
type TradeOption func(*RouterTradeClient)

// WithGasLimit sets the gas limit attached to swap transactions.
func WithGasLimit(limit uint64) TradeOption {
	return func(c *RouterTradeClient) {
		c.gasLimit = limit
	}
}

// WithReceiptPolicy sets the receipt polling interval and wait window.
func WithReceiptPolicy(interval, timeout time.Duration) TradeOption {
	return func(c *RouterTradeClient) {
		c.receiptInterval = interval
		c.receiptTimeout = timeout
	}
}

// NewRouterTradeClient creates a trade client for one router contract.
func NewRouterTradeClient(rpc *RPCClient, signer Signer, router string, chainID uint64, opts ...TradeOption) *RouterTradeClient {
	c := &RouterTradeClient{
		rpc:             rpc,
		signer:          signer,
		router:          router,
		chainID:         chainID,
		gasLimit:        DefaultGasLimit,
		receiptInterval: DefaultReceiptInterval,
		receiptTimeout:  DefaultReceiptTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ TradeClient = (*RouterTradeClient)(nil)

// SubmitSwap builds, signs and broadcasts a swap along path.
// Buys carry amountIn as transaction value; sells pass it as calldata and
// require a prior Approve on the input token.
func (c *RouterTradeClient) SubmitSwap(ctx context.Context, dir SwapDirection, path []string, amountIn, minOut *big.Int, recipient string, deadline int64) (string, error) {
	data, err := packSwap(dir, amountIn, minOut, path, recipient, deadline)
	if err != nil {
		return "", fmt.Errorf("pack swap: %w", err)
	}

	value := big.NewInt(0)
	if dir == DirectionBuy {
		value = amountIn
	}
	return c.send(ctx, c.router, value, data)
}

// Approve grants spender an ERC-20 allowance on token.
func (c *RouterTradeClient) Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error) {
	spenderWord, err := addressWord(spender)
	if err != nil {
		return "", err
	}
	data, err := callData(selApprove, spenderWord, uintWord(amount))
	if err != nil {
		return "", err
	}
	return c.send(ctx, token, big.NewInt(0), data)
}

// TokenBalance returns owner's balance of an ERC-20 token.
func (c *RouterTradeClient) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	ownerWord, err := addressWord(owner)
	if err != nil {
		return nil, err
	}
	data, err := callData(selBalanceOf, ownerWord)
	if err != nil {
		return nil, err
	}
	ret, err := c.rpc.CallContract(ctx, token, data, "latest")
	if err != nil {
		return nil, err
	}
	word, err := wordAt(ret, 0)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(word), nil
}

// WaitForReceipt polls for the transaction receipt until it confirms,
// reverts, or the wait window elapses.
func (c *RouterTradeClient) WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	deadline := time.Now().Add(c.receiptTimeout)
	ticker := time.NewTicker(c.receiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.rpc.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			if !receipt.Success {
				return receipt, fmt.Errorf("%w: %s", ErrTxFailed, txHash)
			}
			return receipt, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrReceiptTimeout, txHash)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// send signs and broadcasts one transaction.
func (c *RouterTradeClient) send(ctx context.Context, to string, value *big.Int, data []byte) (string, error) {
	nonce, err := c.rpc.TransactionCount(ctx, c.signer.Address())
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.rpc.GasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch gas price: %w", err)
	}

	rawTx, err := c.signer.SignTx(ctx, &TxParams{
		To:       to,
		Value:    value,
		Data:     data,
		Nonce:    nonce,
		GasLimit: c.gasLimit,
		GasPrice: gasPrice,
		ChainID:  c.chainID,
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	hash, err := c.rpc.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return "", fmt.Errorf("broadcast transaction: %w", err)
	}
	return hash, nil
}
