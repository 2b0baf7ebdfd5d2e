package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// 4-byte keccak selectors of the contract functions this client calls.
const (
	selGetReserves           = "0902f1ac" // getReserves()
	selToken0                = "0dfe1681" // token0()
	selToken1                = "d21220a7" // token1()
	selBalanceOf             = "70a08231" // balanceOf(address)
	selApprove               = "095ea7b3" // approve(address,uint256)
	selSwapExactETHForTokens = "7ff36ab5" // swapExactETHForTokens(uint256,address[],address,uint256)
	selSwapExactTokensForETH = "18cbafe5" // swapExactTokensForETH(uint256,uint256,address[],address,uint256)
)

const wordSize = 32

// hexToBytes decodes a 0x-prefixed hex string.
func hexToBytes(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// bytesToHex encodes bytes with a 0x prefix.
func bytesToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// hexToUint64 parses a 0x-prefixed hex quantity.
func hexToUint64(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex quantity")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return 0, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v.Uint64(), nil
}

// uint64ToHex formats a block number as an eth quantity.
func uint64ToHex(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

// addressWord left-pads a 20-byte address into one ABI word.
func addressWord(addr string) ([]byte, error) {
	b, err := hexToBytes(addr)
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", addr, err)
	}
	if len(b) != 20 {
		return nil, fmt.Errorf("address %q is %d bytes, want 20", addr, len(b))
	}
	word := make([]byte, wordSize)
	copy(word[wordSize-20:], b)
	return word, nil
}

// uintWord encodes an unsigned big integer into one ABI word.
func uintWord(v *big.Int) []byte {
	word := make([]byte, wordSize)
	if v != nil {
		v.FillBytes(word)
	}
	return word
}

// wordAt slices word i out of an ABI-encoded return blob.
func wordAt(data []byte, i int) ([]byte, error) {
	start := i * wordSize
	if len(data) < start+wordSize {
		return nil, fmt.Errorf("return data too short: %d bytes, want word %d", len(data), i)
	}
	return data[start : start+wordSize], nil
}

// wordToAddress extracts the trailing 20 bytes of a word as an address.
func wordToAddress(word []byte) string {
	return bytesToHex(word[wordSize-20:])
}

// callData builds selector + packed argument words.
func callData(selector string, words ...[]byte) ([]byte, error) {
	sel, err := hex.DecodeString(selector)
	if err != nil {
		return nil, fmt.Errorf("decode selector: %w", err)
	}
	data := sel
	for _, w := range words {
		data = append(data, w...)
	}
	return data, nil
}

// packSwap encodes router swap calldata. For buys the exact input amount
// travels as tx value, so the argument list starts at amountOutMin; for
// sells amountIn is the first argument. The address array is dynamic:
// head words carry an offset to (length, elements...) in the tail.
func packSwap(dir SwapDirection, amountIn, minOut *big.Int, path []string, recipient string, deadline int64) ([]byte, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("swap path needs at least 2 hops, got %d", len(path))
	}

	to, err := addressWord(recipient)
	if err != nil {
		return nil, err
	}

	var head [][]byte
	selector := selSwapExactETHForTokens
	if dir == DirectionSell {
		selector = selSwapExactTokensForETH
		head = append(head, uintWord(amountIn))
	}
	head = append(head, uintWord(minOut))

	// Offset of the path array: everything in head plus offset word,
	// recipient and deadline.
	offset := (len(head) + 3) * wordSize
	head = append(head, uintWord(big.NewInt(int64(offset))), to,
		uintWord(big.NewInt(deadline)))

	tail := [][]byte{uintWord(big.NewInt(int64(len(path))))}
	for _, hop := range path {
		w, err := addressWord(hop)
		if err != nil {
			return nil, err
		}
		tail = append(tail, w)
	}

	return callData(selector, append(head, tail...)...)
}
