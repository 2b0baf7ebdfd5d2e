// Package trader executes buys and sells through the router and records
// every confirmed trade.
package trader

import (
	"context"
	"fmt"
	"log"
	"math/big"
	"time"

	"bsc-token-sniper/internal/chain"
	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/idhash"
	"bsc-token-sniper/internal/storage"
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultSlippageBps  = 500 // 5%
	DefaultDeadlineSecs = 120
)

// Pancake v2 charges 0.25% per swap.
const (
	feeNumerator   = 9975
	feeDenominator = 10000
)

// Options configures a Trader.
type Options struct {
	// Client submits swaps and reads balances. Required.
	Client chain.TradeClient

	// Reader reads pair reserves for output estimation. Required.
	Reader chain.PairReader

	// Store records confirmed trades. Required.
	Store storage.TradeStore

	// WalletAddress receives swap output. Required.
	WalletAddress string

	// AmountToSpend is the BNB spent per buy, in BNB units.
	AmountToSpend float64

	// SlippageBps is the tolerated shortfall below the estimated output,
	// in basis points. Defaults to DefaultSlippageBps.
	SlippageBps int

	// DeadlineSecs bounds how long a submitted swap stays valid.
	// Defaults to DefaultDeadlineSecs.
	DeadlineSecs int64

	// QuoteToken is the native-wrapped token the sniper trades against.
	// Defaults to chain.WBNB.
	QuoteToken string

	// Router is the spender approved before sells. Defaults to
	// chain.PancakeRouterV2.
	Router string

	// Logger receives trade progress lines. Defaults to the standard logger.
	Logger *log.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Trader turns accepted candidates into positions and open positions
// back into BNB. Every method treats chain failure as "abort this trade",
// leaving the ledger for the caller to reconcile.
type Trader struct {
	client       chain.TradeClient
	reader       chain.PairReader
	store        storage.TradeStore
	wallet       string
	spend        float64
	slippageBps  int64
	deadlineSecs int64
	quoteToken   string
	router       string
	logger       *log.Logger
	now          func() time.Time
}

// New creates a Trader from options.
func New(opts Options) (*Trader, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("trader: Client is required")
	}
	if opts.Reader == nil {
		return nil, fmt.Errorf("trader: Reader is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("trader: Store is required")
	}
	if opts.WalletAddress == "" {
		return nil, fmt.Errorf("trader: WalletAddress is required")
	}
	if opts.AmountToSpend <= 0 {
		return nil, fmt.Errorf("trader: AmountToSpend must be positive")
	}
	if opts.SlippageBps == 0 {
		opts.SlippageBps = DefaultSlippageBps
	}
	if opts.DeadlineSecs == 0 {
		opts.DeadlineSecs = DefaultDeadlineSecs
	}
	if opts.QuoteToken == "" {
		opts.QuoteToken = chain.WBNB
	}
	if opts.Router == "" {
		opts.Router = chain.PancakeRouterV2
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Trader{
		client:       opts.Client,
		reader:       opts.Reader,
		store:        opts.Store,
		wallet:       opts.WalletAddress,
		spend:        opts.AmountToSpend,
		slippageBps:  int64(opts.SlippageBps),
		deadlineSecs: opts.DeadlineSecs,
		quoteToken:   opts.QuoteToken,
		router:       opts.Router,
		logger:       opts.Logger,
		now:          opts.Now,
	}, nil
}

// Buy swaps the configured BNB amount into the snapshot's base token and
// returns the resulting position. No position is created on any failure.
func (t *Trader) Buy(ctx context.Context, snap *domain.PairSnapshot) (*domain.Position, error) {
	token := snap.BaseToken.Address
	amountIn := chain.FromUnits(t.spend)

	minOut, err := t.estimateOut(ctx, snap.PairAddress, token, amountIn, chain.DirectionBuy)
	if err != nil {
		return nil, fmt.Errorf("estimate buy output for %s: %w", token, err)
	}

	path := []string{t.quoteToken, token}
	deadline := t.now().Unix() + t.deadlineSecs

	txHash, err := t.client.SubmitSwap(ctx, chain.DirectionBuy, path, amountIn, minOut, t.wallet, deadline)
	if err != nil {
		return nil, fmt.Errorf("submit buy for %s: %w", token, err)
	}
	t.logger.Printf("buy submitted token=%s tx=%s spend=%.6f BNB", token, txHash, t.spend)

	receipt, err := t.client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("await buy receipt %s: %w", txHash, err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("buy %s: %w", txHash, chain.ErrTxFailed)
	}

	balance, err := t.client.TokenBalance(ctx, token, t.wallet)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", token, err)
	}
	held := chain.ToUnits(balance)

	executedAt := t.now().UnixMilli()
	record := &domain.TradeRecord{
		TradeID:      idhash.ComputeTradeID(token, snap.PairAddress, domain.SideBuy, executedAt),
		TokenAddress: token,
		PairAddress:  snap.PairAddress,
		Side:         domain.SideBuy,
		PriceUsd:     snap.PriceUsd,
		AmountToken:  held,
		AmountNative: t.spend,
		TxHash:       txHash,
		ExecutedAt:   executedAt,
	}
	if err := t.store.Insert(ctx, record); err != nil {
		// The swap confirmed; a history write failure must not orphan
		// the tokens. Log and carry on with the position.
		t.logger.Printf("record buy trade %s: %v", record.TradeID, err)
	}

	t.logger.Printf("buy confirmed token=%s tx=%s held=%.6f price=%.8f USD",
		token, txHash, held, snap.PriceUsd)

	return &domain.Position{
		TokenAddress:      token,
		PairAddress:       snap.PairAddress,
		BuyPriceUsd:       snap.PriceUsd,
		BuyTime:           executedAt,
		AmountHeld:        held,
		EntryLiquidityUsd: snap.LiquidityUsd,
	}, nil
}

// Sell swaps the position's full token balance back to BNB and records
// the exit. On any failure the position stays open; the caller retries
// on a later cycle.
func (t *Trader) Sell(ctx context.Context, pos *domain.Position, currentPriceUsd float64, exitReason string) (*domain.TradeRecord, error) {
	token := pos.TokenAddress

	balance, err := t.client.TokenBalance(ctx, token, t.wallet)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", token, err)
	}
	if balance.Sign() <= 0 {
		return nil, fmt.Errorf("sell %s: no balance held", token)
	}

	if _, err := t.client.Approve(ctx, token, t.router, balance); err != nil {
		return nil, fmt.Errorf("approve %s: %w", token, err)
	}

	minOut, err := t.estimateOut(ctx, pos.PairAddress, token, balance, chain.DirectionSell)
	if err != nil {
		return nil, fmt.Errorf("estimate sell output for %s: %w", token, err)
	}

	path := []string{token, t.quoteToken}
	deadline := t.now().Unix() + t.deadlineSecs

	txHash, err := t.client.SubmitSwap(ctx, chain.DirectionSell, path, balance, minOut, t.wallet, deadline)
	if err != nil {
		return nil, fmt.Errorf("submit sell for %s: %w", token, err)
	}
	t.logger.Printf("sell submitted token=%s tx=%s reason=%s", token, txHash, exitReason)

	receipt, err := t.client.WaitForReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("await sell receipt %s: %w", txHash, err)
	}
	if !receipt.Success {
		return nil, fmt.Errorf("sell %s: %w", txHash, chain.ErrTxFailed)
	}

	executedAt := t.now().UnixMilli()
	record := &domain.TradeRecord{
		TradeID:      idhash.ComputeTradeID(token, pos.PairAddress, domain.SideSell, executedAt),
		TokenAddress: token,
		PairAddress:  pos.PairAddress,
		Side:         domain.SideSell,
		PriceUsd:     currentPriceUsd,
		AmountToken:  chain.ToUnits(balance),
		AmountNative: chain.ToUnits(minOut),
		TxHash:       txHash,
		ExitReason:   exitReason,
		ExecutedAt:   executedAt,
	}
	if err := t.store.Insert(ctx, record); err != nil {
		t.logger.Printf("record sell trade %s: %v", record.TradeID, err)
	}

	t.logger.Printf("sell confirmed token=%s tx=%s reason=%s price=%.8f USD",
		token, txHash, exitReason, currentPriceUsd)

	return record, nil
}

// estimateOut computes the minimum acceptable output for a swap from the
// pair's current reserves, after the swap fee and slippage tolerance.
func (t *Trader) estimateOut(ctx context.Context, pairAddress, token string, amountIn *big.Int, dir chain.SwapDirection) (*big.Int, error) {
	reserves, err := t.reader.Reserves(ctx, pairAddress)
	if err != nil {
		return nil, err
	}

	_, reserveToken, reserveQuote, ok := reserves.Oriented(t.quoteToken)
	if !ok {
		return nil, fmt.Errorf("pair %s does not contain quote token", pairAddress)
	}

	var reserveIn, reserveOut *big.Int
	if dir == chain.DirectionBuy {
		reserveIn, reserveOut = reserveQuote, reserveToken
	} else {
		reserveIn, reserveOut = reserveToken, reserveQuote
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, fmt.Errorf("pair %s has empty reserves", pairAddress)
	}

	out := getAmountOut(amountIn, reserveIn, reserveOut)

	// Apply slippage tolerance.
	minOut := new(big.Int).Mul(out, big.NewInt(feeDenominator-t.slippageBps))
	minOut.Div(minOut, big.NewInt(feeDenominator))
	return minOut, nil
}

// getAmountOut is the UniswapV2 constant-product output formula with the
// 0.25% Pancake fee applied to the input.
func getAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeNumerator))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, amountInWithFee)
	return numerator.Div(numerator, denominator)
}
