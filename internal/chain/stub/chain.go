// Package stub provides in-memory chain collaborators for tests.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"bsc-token-sniper/internal/chain"
	"bsc-token-sniper/internal/domain"
)

// PairReader is a scriptable in-memory chain.PairReader.
type PairReader struct {
	mu       sync.Mutex
	reserves map[string]*domain.PairReserves // keyed by pair address
	history  map[uint64]map[string]*domain.PairReserves
	block    uint64

	// Err, when set, is returned from every read.
	Err error
}

// NewPairReader creates an empty stub reader.
func NewPairReader() *PairReader {
	return &PairReader{
		reserves: make(map[string]*domain.PairReserves),
		history:  make(map[uint64]map[string]*domain.PairReserves),
		block:    1000,
	}
}

// SetReserves sets the latest reserves for a pair.
func (r *PairReader) SetReserves(res *domain.PairReserves) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reserves[res.PairAddress] = res
}

// SetReservesAt sets historical reserves for a pair at a block.
func (r *PairReader) SetReservesAt(block uint64, res *domain.PairReserves) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.history[block] == nil {
		r.history[block] = make(map[string]*domain.PairReserves)
	}
	r.history[block][res.PairAddress] = res
}

// SetBlock sets the latest block number.
func (r *PairReader) SetBlock(block uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.block = block
}

// Reserves returns the configured latest reserves.
func (r *PairReader) Reserves(_ context.Context, pairAddress string) (*domain.PairReserves, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	res, ok := r.reserves[pairAddress]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrNotPair, pairAddress)
	}
	return res, nil
}

// ReservesAt returns configured historical reserves, falling back to the
// latest reserves when no sample exists for the block.
func (r *PairReader) ReservesAt(_ context.Context, pairAddress string, block uint64) (*domain.PairReserves, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if byPair, ok := r.history[block]; ok {
		if res, ok := byPair[pairAddress]; ok {
			return res, nil
		}
	}
	res, ok := r.reserves[pairAddress]
	if !ok {
		return nil, fmt.Errorf("%w: %s", chain.ErrNotPair, pairAddress)
	}
	return res, nil
}

// BlockNumber returns the configured latest block.
func (r *PairReader) BlockNumber(_ context.Context) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	return r.block, nil
}

var _ chain.PairReader = (*PairReader)(nil)

// LockChecker is a scriptable in-memory chain.LockChecker.
type LockChecker struct {
	LockerName string
	Locked     map[string]*big.Int // lpToken -> locked amount
	Err        error
}

// NewLockChecker creates a stub checker reporting the given locks.
func NewLockChecker(name string) *LockChecker {
	return &LockChecker{LockerName: name, Locked: make(map[string]*big.Int)}
}

// Name identifies the locker.
func (c *LockChecker) Name() string { return c.LockerName }

// LockedAmount returns the configured locked amount, zero by default.
func (c *LockChecker) LockedAmount(_ context.Context, lpToken string) (*big.Int, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if amount, ok := c.Locked[lpToken]; ok {
		return amount, nil
	}
	return big.NewInt(0), nil
}

var _ chain.LockChecker = (*LockChecker)(nil)

// TradeClient is a scriptable in-memory chain.TradeClient. It records
// submitted swaps and can be told to fail at submission or receipt.
type TradeClient struct {
	mu sync.Mutex

	// SubmitErr fails SubmitSwap when set.
	SubmitErr error
	// ReceiptErr fails WaitForReceipt when set.
	ReceiptErr error
	// Balances returned by TokenBalance, keyed by token address.
	Balances map[string]*big.Int

	Swaps    []SubmittedSwap
	Approves []string // token addresses approved

	nextTx int
}

// SubmittedSwap records one SubmitSwap call.
type SubmittedSwap struct {
	Direction chain.SwapDirection
	Path      []string
	AmountIn  *big.Int
	MinOut    *big.Int
	TxHash    string
}

// NewTradeClient creates an empty stub trade client.
func NewTradeClient() *TradeClient {
	return &TradeClient{Balances: make(map[string]*big.Int)}
}

// SubmitSwap records the swap and returns a synthetic tx hash.
func (c *TradeClient) SubmitSwap(_ context.Context, dir chain.SwapDirection, path []string, amountIn, minOut *big.Int, _ string, _ int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	c.nextTx++
	hash := fmt.Sprintf("0xtx%04d", c.nextTx)
	c.Swaps = append(c.Swaps, SubmittedSwap{
		Direction: dir,
		Path:      append([]string(nil), path...),
		AmountIn:  amountIn,
		MinOut:    minOut,
		TxHash:    hash,
	})
	return hash, nil
}

// WaitForReceipt confirms immediately unless ReceiptErr is set.
func (c *TradeClient) WaitForReceipt(_ context.Context, txHash string) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ReceiptErr != nil {
		return nil, c.ReceiptErr
	}
	return &chain.Receipt{TxHash: txHash, BlockNumber: 1, Success: true}, nil
}

// TokenBalance returns the configured balance, zero by default.
func (c *TradeClient) TokenBalance(_ context.Context, token, _ string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if balance, ok := c.Balances[token]; ok {
		return balance, nil
	}
	return big.NewInt(0), nil
}

// Approve records the approval and returns a synthetic tx hash.
func (c *TradeClient) Approve(_ context.Context, token, _ string, _ *big.Int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SubmitErr != nil {
		return "", c.SubmitErr
	}
	c.Approves = append(c.Approves, token)
	c.nextTx++
	return fmt.Sprintf("0xtx%04d", c.nextTx), nil
}

// SwapCount reports how many swaps were submitted.
func (c *TradeClient) SwapCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Swaps)
}

var _ chain.TradeClient = (*TradeClient)(nil)
