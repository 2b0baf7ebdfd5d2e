// Package filter applies the candidate gate battery to market snapshots.
package filter

import (
	"context"
	"log"
	"time"

	"bsc-token-sniper/internal/chain"
	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/history"
	"bsc-token-sniper/internal/indicator"
)

// Reason explains why a candidate was accepted or rejected.
type Reason string

// Rejection reasons, one per gate. Gates short-circuit, so a decision
// carries the first failing gate's reason only.
const (
	ReasonOK                      Reason = "OK"
	ReasonWrongChain              Reason = "WRONG_CHAIN"
	ReasonLowLiquidity            Reason = "LOW_LIQUIDITY"
	ReasonLiquidityNotLocked      Reason = "LIQUIDITY_NOT_LOCKED"
	ReasonMarketCapTooHigh        Reason = "MARKET_CAP_TOO_HIGH"
	ReasonVolumeTooLow            Reason = "VOLUME_TOO_LOW"
	ReasonVolumeToMarketCapTooLow Reason = "VOLUME_TO_MCAP_TOO_LOW"
	ReasonTooOld                  Reason = "TOO_OLD"
	ReasonRsiNotOversold          Reason = "RSI_NOT_OVERSOLD"
	ReasonDataMismatch            Reason = "DATA_MISMATCH"
)

// Decision is the outcome of evaluating one candidate. RSI is populated
// when the RSI gate ran and produced a signal, so the selector can score
// without recomputing.
type Decision struct {
	Accept bool
	Reason Reason
	RSI    float64
	HasRSI bool
}

func accept(rsi float64, hasRSI bool) Decision {
	return Decision{Accept: true, Reason: ReasonOK, RSI: rsi, HasRSI: hasRSI}
}

func reject(reason Reason) Decision {
	return Decision{Reason: reason}
}

// Default thresholds.
const (
	DefaultMinLiquidityUsd = 10000.0
	DefaultMaxMarketCapUsd = 5_000_000.0
	DefaultMinVolume24hUsd = 50000.0
	DefaultMinVolMcapRatio = 0.02
	DefaultMaxPairAge      = 48 * time.Hour
	DefaultBuyRSIThreshold = 30.0
	DefaultQuotePriceUsd   = 300.0
)

// Config holds the gate thresholds.
type Config struct {
	// ChainID is the target chain; candidates elsewhere are rejected.
	ChainID string
	// MinLiquidityUsd rejects pairs below this feed or on-chain liquidity.
	MinLiquidityUsd float64
	// MaxMarketCapUsd rejects pairs above this market cap. 0 disables.
	MaxMarketCapUsd float64
	// MinVolume24hUsd rejects pairs below this 24h volume.
	MinVolume24hUsd float64
	// MinVolMcapRatio rejects pairs with volume/mcap below this ratio.
	MinVolMcapRatio float64
	// MaxPairAge rejects pairs older than this. 0 disables the gate.
	MaxPairAge time.Duration
	// BuyRSIThreshold requires RSI strictly below this value. <= 0
	// disables the gate.
	BuyRSIThreshold float64
	// QuoteTokenAddress orients reserves (WBNB on BSC).
	QuoteTokenAddress string
	// QuotePriceUsd converts quote reserves to USD for the on-chain
	// liquidity check.
	QuotePriceUsd float64
}

// DefaultConfig returns the default BSC gate configuration.
func DefaultConfig() Config {
	return Config{
		ChainID:           "bsc",
		MinLiquidityUsd:   DefaultMinLiquidityUsd,
		MaxMarketCapUsd:   DefaultMaxMarketCapUsd,
		MinVolume24hUsd:   DefaultMinVolume24hUsd,
		MinVolMcapRatio:   DefaultMinVolMcapRatio,
		MaxPairAge:        DefaultMaxPairAge,
		BuyRSIThreshold:   DefaultBuyRSIThreshold,
		QuoteTokenAddress: chain.WBNB,
		QuotePriceUsd:     DefaultQuotePriceUsd,
	}
}

// Evaluator runs the gate battery. Gates are ordered cheapest first; the
// on-chain and RSI gates sit last because they cost external calls, and
// any collaborator error there rejects the candidate rather than
// propagating.
type Evaluator struct {
	config  Config
	reader  chain.PairReader
	lockers []chain.LockChecker
	history history.Source
	logger  *log.Logger
	now     func() time.Time
}

// Options contains configuration for creating an Evaluator.
type Options struct {
	Config Config
	// Reader performs the on-chain cross-check. Nil skips the gate.
	Reader chain.PairReader
	// Lockers are queried in priority order; first nonzero lock wins.
	// An empty list skips the lock gate.
	Lockers []chain.LockChecker
	// History feeds the RSI gate. Nil with a positive threshold rejects
	// every candidate at that gate.
	History history.Source
	Logger  *log.Logger
	// Now overrides the clock for tests.
	Now func() time.Time
}

// NewEvaluator creates a gate evaluator.
func NewEvaluator(opts Options) *Evaluator {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Evaluator{
		config:  opts.Config,
		reader:  opts.Reader,
		lockers: opts.Lockers,
		history: opts.History,
		logger:  logger,
		now:     now,
	}
}

// Evaluate runs every gate against one snapshot, short-circuiting at the
// first failure.
func (e *Evaluator) Evaluate(ctx context.Context, snap *domain.PairSnapshot) Decision {
	cfg := e.config

	if snap.ChainID != cfg.ChainID {
		return reject(ReasonWrongChain)
	}

	if snap.LiquidityUsd < cfg.MinLiquidityUsd {
		return reject(ReasonLowLiquidity)
	}

	if len(e.lockers) > 0 && !e.liquidityLocked(ctx, snap) {
		return reject(ReasonLiquidityNotLocked)
	}

	if cfg.MaxMarketCapUsd > 0 && snap.MarketCapUsd > cfg.MaxMarketCapUsd {
		return reject(ReasonMarketCapTooHigh)
	}

	if snap.Volume24hUsd < cfg.MinVolume24hUsd {
		return reject(ReasonVolumeTooLow)
	}

	ratio := 0.0
	if snap.MarketCapUsd > 0 {
		ratio = snap.Volume24hUsd / snap.MarketCapUsd
	}
	if ratio < cfg.MinVolMcapRatio {
		return reject(ReasonVolumeToMarketCapTooLow)
	}

	if cfg.MaxPairAge > 0 {
		age := snap.AgeMs(e.now().UnixMilli())
		if age >= 0 && age > cfg.MaxPairAge.Milliseconds() {
			return reject(ReasonTooOld)
		}
	}

	if e.reader != nil {
		if reason, ok := e.crossCheck(ctx, snap); !ok {
			return reject(reason)
		}
	}

	if cfg.BuyRSIThreshold > 0 {
		rsi, ok := e.candidateRSI(ctx, snap)
		if !ok || rsi >= cfg.BuyRSIThreshold {
			return reject(ReasonRsiNotOversold)
		}
		return accept(rsi, true)
	}

	return accept(0, false)
}

// liquidityLocked queries configured lockers in priority order; the first
// nonzero locked amount wins. Locker errors are logged and treated as
// "not locked by this locker".
func (e *Evaluator) liquidityLocked(ctx context.Context, snap *domain.PairSnapshot) bool {
	for _, locker := range e.lockers {
		amount, err := locker.LockedAmount(ctx, snap.PairAddress)
		if err != nil {
			e.logger.Printf("lock check %s for %s failed: %v", locker.Name(), snap.PairAddress, err)
			continue
		}
		if amount != nil && amount.Sign() > 0 {
			return true
		}
	}
	return false
}

// crossCheck verifies the feed record against on-chain reserves: the pair
// must contain the advertised base token, and the quote-side reserves
// converted to USD must clear the liquidity floor independently of the
// feed's own figure.
func (e *Evaluator) crossCheck(ctx context.Context, snap *domain.PairSnapshot) (Reason, bool) {
	res, err := e.reader.Reserves(ctx, snap.PairAddress)
	if err != nil {
		e.logger.Printf("reserve read for %s failed: %v", snap.PairAddress, err)
		return ReasonDataMismatch, false
	}

	tokenAddr, _, reserveQuote, ok := res.Oriented(e.config.QuoteTokenAddress)
	if !ok || !domain.AddrEqual(tokenAddr, snap.BaseToken.Address) {
		return ReasonDataMismatch, false
	}

	onchainLiquidity := chain.ToUnits(reserveQuote) * e.config.QuotePriceUsd
	if onchainLiquidity < e.config.MinLiquidityUsd {
		return ReasonLowLiquidity, false
	}
	return ReasonOK, true
}

// candidateRSI derives RSI from the configured history source. Any
// history failure or short series means no signal.
func (e *Evaluator) candidateRSI(ctx context.Context, snap *domain.PairSnapshot) (float64, bool) {
	if e.history == nil {
		return 0, false
	}
	prices, err := e.history.Prices(ctx, snap)
	if err != nil {
		e.logger.Printf("price history for %s failed: %v", snap.PairAddress, err)
		return 0, false
	}
	return indicator.RSI(prices)
}
