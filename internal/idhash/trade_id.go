// Package idhash computes deterministic identifiers for trade records.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(lower(token_address)|lower(pair_address)|side|executed_at)
// Returns hex-encoded hash (64 characters).
//
// Addresses are lowercased first so checksummed and plain hex forms of
// the same address yield the same ID.
func ComputeTradeID(
	tokenAddress string,
	pairAddress string,
	side string,
	executedAt int64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		strings.ToLower(tokenAddress),
		strings.ToLower(pairAddress),
		side,
		executedAt,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
