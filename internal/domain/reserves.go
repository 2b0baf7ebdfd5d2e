package domain

import (
	"math/big"
	"strings"
)

// PairReserves holds the on-chain state of a UniswapV2-style pair contract.
type PairReserves struct {
	PairAddress string
	Token0      string
	Token1      string
	Reserve0    *big.Int
	Reserve1    *big.Int
}

// Oriented splits reserves into token/quote sides given the quote token
// address (WBNB on BSC). ok is false when neither side matches the quote.
func (r *PairReserves) Oriented(quoteToken string) (tokenAddr string, reserveToken, reserveQuote *big.Int, ok bool) {
	switch {
	case AddrEqual(r.Token0, quoteToken):
		return r.Token1, r.Reserve1, r.Reserve0, true
	case AddrEqual(r.Token1, quoteToken):
		return r.Token0, r.Reserve0, r.Reserve1, true
	default:
		return "", nil, nil, false
	}
}

// AddrEqual compares two EVM addresses case-insensitively.
func AddrEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}
