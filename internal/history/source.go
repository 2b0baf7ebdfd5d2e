// Package history supplies ordered price series for RSI evaluation.
//
// Two sources exist: Chain samples real reserves at past blocks, and
// Synthetic fabricates a decay series from the current price alone. The
// synthetic mode is inherited from deployments without archive access and
// materially changes what RSI means; it is selected only by explicit
// configuration.
package history

import (
	"context"
	"math/big"

	"bsc-token-sniper/internal/chain"
	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/indicator"
)

// Source produces an ordered price series (oldest first) for a pair.
type Source interface {
	Prices(ctx context.Context, snap *domain.PairSnapshot) ([]float64, error)
}

// BlockSource reports the latest known block number. The chain WS block
// watcher satisfies this; a zero Latest falls back to an RPC read.
type BlockSource interface {
	Latest() uint64
}

// Defaults for chain sampling.
const (
	DefaultSamples   = 14
	DefaultBlockStep = 100
	DefaultDecayPct  = 0.01
)

// Chain samples pair reserves at evenly spaced past blocks.
type Chain struct {
	reader     chain.PairReader
	blocks     BlockSource
	quoteToken string
	samples    int
	blockStep  uint64
}

// NewChain creates an on-chain history source. blocks may be nil, in
// which case the latest block is fetched over RPC each call.
func NewChain(reader chain.PairReader, blocks BlockSource, quoteToken string, samples int, blockStep uint64) *Chain {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if blockStep == 0 {
		blockStep = DefaultBlockStep
	}
	return &Chain{
		reader:     reader,
		blocks:     blocks,
		quoteToken: quoteToken,
		samples:    samples,
		blockStep:  blockStep,
	}
}

var _ Source = (*Chain)(nil)

// Prices reads the pair's quote-denominated price at samples past blocks,
// oldest first. Samples that fail to read (pruned state, flaky node)
// repeat the latest price instead of aborting the series, matching the
// tolerant behavior the scan loop needs.
func (c *Chain) Prices(ctx context.Context, snap *domain.PairSnapshot) ([]float64, error) {
	var head uint64
	if c.blocks != nil {
		head = c.blocks.Latest()
	}
	if head == 0 {
		var err error
		head, err = c.reader.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
	}

	current, err := c.priceAt(ctx, snap.PairAddress, head)
	if err != nil {
		return nil, err
	}

	prices := make([]float64, c.samples)
	for i := 0; i < c.samples; i++ {
		// i=0 is the oldest sample
		offset := uint64(c.samples-1-i) * c.blockStep
		if offset >= head {
			prices[i] = current
			continue
		}
		p, err := c.priceAt(ctx, snap.PairAddress, head-offset)
		if err != nil {
			prices[i] = current
			continue
		}
		prices[i] = p
	}
	return prices, nil
}

// priceAt derives the token price in quote units from reserves at block.
func (c *Chain) priceAt(ctx context.Context, pairAddress string, block uint64) (float64, error) {
	res, err := c.reader.ReservesAt(ctx, pairAddress, block)
	if err != nil {
		return 0, err
	}
	_, reserveToken, reserveQuote, ok := res.Oriented(c.quoteToken)
	if !ok || reserveToken.Sign() == 0 {
		return 0, chain.ErrNotPair
	}
	price, _ := new(big.Float).Quo(
		new(big.Float).SetInt(reserveQuote),
		new(big.Float).SetInt(reserveToken),
	).Float64()
	return price, nil
}

// Synthetic fabricates a decay series from the snapshot's current price.
type Synthetic struct {
	samples  int
	decayPct float64
}

// NewSynthetic creates the degraded-mode source.
func NewSynthetic(samples int, decayPct float64) *Synthetic {
	if samples <= 0 {
		samples = DefaultSamples
	}
	if decayPct <= 0 {
		decayPct = DefaultDecayPct
	}
	return &Synthetic{samples: samples, decayPct: decayPct}
}

var _ Source = (*Synthetic)(nil)

// Prices returns indicator.DecaySeries over the feed's USD price.
func (s *Synthetic) Prices(_ context.Context, snap *domain.PairSnapshot) ([]float64, error) {
	return indicator.DecaySeries(snap.PriceUsd, s.samples, s.decayPct), nil
}
