package domain

// Position is an open holding tracked by the ledger: bought, not yet sold.
// At most one open position exists per token address at any time.
type Position struct {
	TokenAddress      string
	PairAddress       string
	BuyPriceUsd       float64
	BuyTime           int64   // Unix timestamp in milliseconds
	AmountHeld        float64 // token units (decimals applied)
	EntryLiquidityUsd float64
}
