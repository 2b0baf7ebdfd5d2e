package domain

// Trade sides.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Exit reasons recorded on sell trades.
const (
	ExitReasonRSIOverbought = "RSI_OVERBOUGHT"
	ExitReasonTakeProfit    = "TAKE_PROFIT"
)

// TradeRecord is one executed (receipt-confirmed) buy or sell.
// Corresponds to the trades table; the in-memory ledger holds live
// positions while trade records are the append-only history.
type TradeRecord struct {
	TradeID      string // PRIMARY KEY, deterministic hash
	TokenAddress string
	PairAddress  string
	Side         string // BUY | SELL
	PriceUsd     float64
	AmountToken  float64
	AmountNative float64 // BNB spent (buys) or received (sells)
	TxHash       string
	ExitReason   string // empty for buys
	ExecutedAt   int64  // Unix timestamp in milliseconds
	CreatedAt    int64  // record creation timestamp (ms)
}
