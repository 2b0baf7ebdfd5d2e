// Package engine runs the trading loop: monitor open positions, scan the
// market for one new candidate, trade, sleep, repeat.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/feed"
	"bsc-token-sniper/internal/history"
	"bsc-token-sniper/internal/indicator"
	"bsc-token-sniper/internal/ledger"
	"bsc-token-sniper/internal/observability"
	"bsc-token-sniper/internal/scan"
	"bsc-token-sniper/internal/storage"
)

// Defaults applied by NewRunner when the corresponding option is zero.
const (
	DefaultCheckInterval        = 60 * time.Second
	DefaultSellRSIThreshold     = 70.0
	DefaultTakeProfitMultiplier = 2.0
	DefaultQuery                = "WBNB"
)

// TradeExecutor turns decisions into transactions. Implemented by
// trader.Trader; stubbed in tests.
type TradeExecutor interface {
	// Buy opens a position in the snapshot's base token. No position
	// exists on error.
	Buy(ctx context.Context, snap *domain.PairSnapshot) (*domain.Position, error)

	// Sell liquidates a position. The position survives on error.
	Sell(ctx context.Context, pos *domain.Position, currentPriceUsd float64, exitReason string) (*domain.TradeRecord, error)
}

// Options configures a Runner.
type Options struct {
	// Feed supplies market snapshots. Required.
	Feed feed.MarketFeed

	// Selector reduces each batch to at most one candidate. Required.
	Selector *scan.Selector

	// Ledger tracks open positions. Required.
	Ledger *ledger.Ledger

	// Trader executes buys and sells. Required.
	Trader TradeExecutor

	// History feeds the exit RSI check. Nil disables the RSI exit rule.
	History history.Source

	// Archive receives each cycle's snapshot batch, best-effort. Optional.
	Archive storage.SnapshotArchive

	// Metrics receives loop counters. Optional.
	Metrics *observability.Metrics

	// ChainID scopes position lookups on the feed. Defaults to "bsc".
	ChainID string

	// Query is the feed search term. Defaults to DefaultQuery.
	Query string

	// CheckInterval is the sleep between cycles; a failed cycle sleeps
	// twice as long. Defaults to DefaultCheckInterval.
	CheckInterval time.Duration

	// SellRSIThreshold exits positions whose RSI reaches this value.
	// <= 0 disables the rule.
	SellRSIThreshold float64

	// TakeProfitMultiplier exits positions whose price reaches
	// buy price times this value. <= 0 disables the rule.
	TakeProfitMultiplier float64

	Logger *log.Logger

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Runner owns the trading loop. One goroutine calls Run; everything the
// loop touches is reached from there, so per-cycle state needs no locks.
type Runner struct {
	feed       feed.MarketFeed
	selector   *scan.Selector
	ledger     *ledger.Ledger
	trader     TradeExecutor
	history    history.Source
	archive    storage.SnapshotArchive
	metrics    *observability.Metrics
	chainID    string
	query      string
	interval   time.Duration
	sellRSI    float64
	takeProfit float64
	logger     *log.Logger
	now        func() time.Time
}

// NewRunner creates a Runner from options.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Feed == nil {
		return nil, fmt.Errorf("engine: Feed is required")
	}
	if opts.Selector == nil {
		return nil, fmt.Errorf("engine: Selector is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("engine: Ledger is required")
	}
	if opts.Trader == nil {
		return nil, fmt.Errorf("engine: Trader is required")
	}
	if opts.ChainID == "" {
		opts.ChainID = "bsc"
	}
	if opts.Query == "" {
		opts.Query = DefaultQuery
	}
	if opts.CheckInterval == 0 {
		opts.CheckInterval = DefaultCheckInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		feed:       opts.Feed,
		selector:   opts.Selector,
		ledger:     opts.Ledger,
		trader:     opts.Trader,
		history:    opts.History,
		archive:    opts.Archive,
		metrics:    opts.Metrics,
		chainID:    opts.ChainID,
		query:      opts.Query,
		interval:   opts.CheckInterval,
		sellRSI:    opts.SellRSIThreshold,
		takeProfit: opts.TakeProfitMultiplier,
		logger:     opts.Logger,
		now:        opts.Now,
	}, nil
}

// Run loops until ctx is cancelled. A cycle failure never escapes: it is
// logged and the loop sleeps twice the interval before trying again.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Printf("trading loop started interval=%s query=%q", r.interval, r.query)

	for {
		sleep := r.interval
		if err := r.runCycleSafe(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Printf("cycle failed: %v", err)
			if r.metrics != nil {
				r.metrics.CycleErrors.Inc()
			}
			sleep = 2 * r.interval
		}

		select {
		case <-ctx.Done():
			r.logger.Printf("trading loop stopped: %v", ctx.Err())
			return ctx.Err()
		case <-time.After(sleep):
		}
	}
}

// RunCycle executes one monitor+scan pass. Exposed so callers can drive
// the loop themselves (tests, one-shot mode).
func (r *Runner) RunCycle(ctx context.Context) error {
	return r.runCycleSafe(ctx)
}

// runCycleSafe converts a cycle panic into an error so one poisoned
// candidate cannot kill the loop.
func (r *Runner) runCycleSafe(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cycle panic: %v", rec)
		}
	}()
	return r.runCycle(ctx)
}

func (r *Runner) runCycle(ctx context.Context) error {
	started := r.now()
	if r.metrics != nil {
		r.metrics.CyclesTotal.Inc()
	}

	r.monitorPositions(ctx)

	if err := r.scanAndBuy(ctx); err != nil {
		return err
	}

	if r.metrics != nil {
		r.metrics.CycleDuration.Observe(time.Since(started).Seconds())
		r.metrics.LastSuccessfulCycle.SetToCurrentTime()
		r.metrics.OpenPositions.Set(float64(r.ledger.Len()))
	}
	return nil
}

// monitorPositions checks every open position against the exit rules.
// Per-position failures are logged and skipped; a position only leaves
// the ledger after a confirmed sell.
func (r *Runner) monitorPositions(ctx context.Context) {
	for _, pos := range r.ledger.ListOpen() {
		snap, err := r.feed.GetPair(ctx, r.chainID, pos.PairAddress)
		if err != nil {
			r.logger.Printf("monitor %s: fetch pair: %v", pos.TokenAddress, err)
			continue
		}
		if snap == nil {
			r.logger.Printf("monitor %s: pair %s unknown to feed", pos.TokenAddress, pos.PairAddress)
			continue
		}

		reason, ok := r.exitReason(ctx, pos, snap)
		if !ok {
			continue
		}

		if _, err := r.trader.Sell(ctx, pos, snap.PriceUsd, reason); err != nil {
			r.logger.Printf("sell %s failed, keeping position: %v", pos.TokenAddress, err)
			if r.metrics != nil {
				r.metrics.TradeFailures.WithLabelValues(domain.SideSell).Inc()
			}
			continue
		}
		if err := r.ledger.Close(pos.TokenAddress); err != nil {
			r.logger.Printf("close position %s: %v", pos.TokenAddress, err)
		}
		if r.metrics != nil {
			r.metrics.SellsTotal.WithLabelValues(reason).Inc()
		}
	}
}

// exitReason decides whether a position should be sold and why. The RSI
// rule is checked first, then take-profit.
func (r *Runner) exitReason(ctx context.Context, pos *domain.Position, snap *domain.PairSnapshot) (string, bool) {
	if r.sellRSI > 0 && r.history != nil {
		prices, err := r.history.Prices(ctx, snap)
		if err != nil {
			r.logger.Printf("monitor %s: price history: %v", pos.TokenAddress, err)
		} else if rsi, ok := indicator.RSI(prices); ok && rsi >= r.sellRSI {
			r.logger.Printf("exit %s: RSI %.1f >= %.1f", pos.TokenAddress, rsi, r.sellRSI)
			return domain.ExitReasonRSIOverbought, true
		}
	}

	if r.takeProfit > 0 && pos.BuyPriceUsd > 0 && snap.PriceUsd >= pos.BuyPriceUsd*r.takeProfit {
		r.logger.Printf("exit %s: price %.8f reached %.1fx of %.8f",
			pos.TokenAddress, snap.PriceUsd, r.takeProfit, pos.BuyPriceUsd)
		return domain.ExitReasonTakeProfit, true
	}

	return "", false
}

// scanAndBuy fetches one feed batch, selects the best candidate and buys
// it unless the token is already held.
func (r *Runner) scanAndBuy(ctx context.Context) error {
	snaps, err := r.feed.Search(ctx, r.query)
	if err != nil {
		if r.metrics != nil && errors.Is(err, feed.ErrRateLimited) {
			r.metrics.FeedRateLimited.Inc()
		}
		return fmt.Errorf("feed search: %w", err)
	}
	r.logger.Printf("scan: %d records for %q", len(snaps), r.query)

	if r.archive != nil {
		if err := r.archive.InsertBatch(ctx, r.now().UnixMilli(), snaps); err != nil {
			// Archiving is best-effort; the trading path goes on.
			r.logger.Printf("archive snapshots: %v", err)
		}
	}
	if r.metrics != nil {
		r.metrics.CandidatesEvaluated.Add(float64(len(snaps)))
	}

	candidate := r.selector.SelectBest(ctx, snaps)
	if candidate == nil {
		r.logger.Printf("scan: no candidate passed")
		return nil
	}
	if r.ledger.Has(candidate.TokenAddress) {
		r.logger.Printf("scan: already holding %s, skipping", candidate.TokenAddress)
		return nil
	}

	snap := snapshotFor(snaps, candidate.PairAddress)
	if snap == nil {
		return fmt.Errorf("selected pair %s missing from batch", candidate.PairAddress)
	}

	pos, err := r.trader.Buy(ctx, snap)
	if err != nil {
		if r.metrics != nil {
			r.metrics.TradeFailures.WithLabelValues(domain.SideBuy).Inc()
		}
		return fmt.Errorf("buy %s: %w", candidate.TokenAddress, err)
	}
	if err := r.ledger.Open(pos); err != nil {
		return fmt.Errorf("open position %s: %w", pos.TokenAddress, err)
	}
	if r.metrics != nil {
		r.metrics.BuysTotal.Inc()
	}
	r.logger.Printf("opened position token=%s price=%.8f held=%.6f",
		pos.TokenAddress, pos.BuyPriceUsd, pos.AmountHeld)
	return nil
}

// snapshotFor finds the batch record for a pair address.
func snapshotFor(snaps []*domain.PairSnapshot, pairAddress string) *domain.PairSnapshot {
	for _, snap := range snaps {
		if domain.AddrEqual(snap.PairAddress, pairAddress) {
			return snap
		}
	}
	return nil
}
