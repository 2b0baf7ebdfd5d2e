// Package chain provides read and write access to the BSC chain: a
// JSON-RPC client, a UniswapV2-style pair reader, liquidity-lock checks,
// and swap submission.
package chain

import (
	"context"
	"errors"
	"math/big"

	"bsc-token-sniper/internal/domain"
)

// Well-known BSC contract addresses.
const (
	WBNB            = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	PancakeRouterV2 = "0x10ED43C718714eb63d5aA57B78B54704E256024E"
)

// Chain errors.
var (
	// ErrNotPair is returned when an address does not behave like a
	// UniswapV2-style pair contract.
	ErrNotPair = errors.New("address is not a pair contract")

	// ErrTxFailed is returned when a transaction receipt reports revert.
	ErrTxFailed = errors.New("transaction reverted")

	// ErrReceiptTimeout is returned when a receipt never confirms within
	// the configured wait window.
	ErrReceiptTimeout = errors.New("timed out waiting for receipt")
)

// SwapDirection selects which side of a swap is being submitted.
type SwapDirection int

const (
	// DirectionBuy swaps an exact native amount for tokens.
	DirectionBuy SwapDirection = iota
	// DirectionSell swaps an exact token amount for native currency.
	DirectionSell
)

// Receipt is the confirmed result of a submitted transaction.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Success     bool
}

// PairReader reads on-chain pair state. It is the "on-chain market
// reader" collaborator of the filter's cross-check gate.
type PairReader interface {
	// Reserves reads reserves and token ordering at the latest block.
	Reserves(ctx context.Context, pairAddress string) (*domain.PairReserves, error)

	// ReservesAt reads reserves at a specific historical block.
	ReservesAt(ctx context.Context, pairAddress string, block uint64) (*domain.PairReserves, error)

	// BlockNumber returns the latest known block number.
	BlockNumber(ctx context.Context) (uint64, error)
}

// LockChecker reports how much of an LP token one locker contract holds.
// A nonzero amount across any configured checker means the pair's
// liquidity is locked.
type LockChecker interface {
	// Name identifies the locker for logging.
	Name() string

	// LockedAmount returns the LP token balance held by the locker.
	LockedAmount(ctx context.Context, lpToken string) (*big.Int, error)
}

// TradeClient submits swaps and reads balances. Transaction building and
// key custody sit behind this boundary; every call may fail and callers
// treat failure as "abort this trade for this cycle", never as fatal.
type TradeClient interface {
	// SubmitSwap builds, signs and broadcasts a swap along path,
	// returning the transaction hash.
	SubmitSwap(ctx context.Context, dir SwapDirection, path []string, amountIn, minOut *big.Int, recipient string, deadline int64) (string, error)

	// WaitForReceipt blocks until the transaction confirms or the wait
	// window elapses.
	WaitForReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// TokenBalance returns owner's balance of an ERC-20 token.
	TokenBalance(ctx context.Context, token, owner string) (*big.Int, error)

	// Approve grants spender an ERC-20 allowance and returns the tx hash.
	Approve(ctx context.Context, token, spender string, amount *big.Int) (string, error)
}

// weiPerEther is the fixed-point scale of 18-decimal tokens.
var weiPerEther = new(big.Float).SetFloat64(1e18)

// ToUnits converts a raw 18-decimal amount to token units.
func ToUnits(raw *big.Int) float64 {
	if raw == nil {
		return 0
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), weiPerEther).Float64()
	return f
}

// FromUnits converts token units to a raw 18-decimal amount, truncating
// sub-wei precision.
func FromUnits(units float64) *big.Int {
	f := new(big.Float).Mul(new(big.Float).SetFloat64(units), weiPerEther)
	raw, _ := f.Int(nil)
	return raw
}
