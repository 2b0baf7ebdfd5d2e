package domain

// TokenRef identifies one side of a trading pair.
type TokenRef struct {
	Address string
	Symbol  string
}

// PairSnapshot is one market-feed record for a DEX pair.
// Immutable per fetch; the filter and selector only read it.
type PairSnapshot struct {
	PairAddress   string
	ChainID       string
	DexID         string
	BaseToken     TokenRef
	QuoteToken    TokenRef
	PriceUsd      float64
	PriceNative   float64
	MarketCapUsd  float64 // fully diluted valuation reported by the feed
	Volume24hUsd  float64
	LiquidityUsd  float64
	PairCreatedAt int64 // Unix timestamp in milliseconds; 0 when unknown
}

// AgeMs returns the pair age relative to nowMs, or -1 when creation time
// is unknown.
func (p *PairSnapshot) AgeMs(nowMs int64) int64 {
	if p.PairCreatedAt <= 0 {
		return -1
	}
	return nowMs - p.PairCreatedAt
}

// TokenProfile is a lightweight feed record pointing at a token without
// pair-level market data.
type TokenProfile struct {
	TokenAddress string
	ChainID      string
}
