package idhash

import (
	"testing"
)

func TestComputeTradeID(t *testing.T) {
	tests := []struct {
		name         string
		tokenAddress string
		pairAddress  string
		side         string
		executedAt   int64
		wantLen      int // hash length should be 64
	}{
		{
			name:         "buy trade",
			tokenAddress: "0x1234567890abcdef1234567890abcdef12345678",
			pairAddress:  "0xfedcba0987654321fedcba0987654321fedcba09",
			side:         "BUY",
			executedAt:   1704067234567,
			wantLen:      64,
		},
		{
			name:         "sell trade",
			tokenAddress: "0x1234567890abcdef1234567890abcdef12345678",
			pairAddress:  "0xfedcba0987654321fedcba0987654321fedcba09",
			side:         "SELL",
			executedAt:   1704067300000,
			wantLen:      64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTradeID(tt.tokenAddress, tt.pairAddress, tt.side, tt.executedAt)

			if len(got) != tt.wantLen {
				t.Errorf("ComputeTradeID() length = %d, want %d", len(got), tt.wantLen)
			}

			// Verify determinism: same inputs should produce same output
			got2 := ComputeTradeID(tt.tokenAddress, tt.pairAddress, tt.side, tt.executedAt)
			if got != got2 {
				t.Errorf("ComputeTradeID() not deterministic: %s != %s", got, got2)
			}
		})
	}
}

func TestComputeTradeID_CaseInsensitiveAddresses(t *testing.T) {
	lower := ComputeTradeID("0xabcdef", "0x123456", "BUY", 1000)
	mixed := ComputeTradeID("0xAbCdEf", "0x123456", "BUY", 1000)
	if lower != mixed {
		t.Errorf("checksummed and lowercase addresses should hash the same: %s != %s", lower, mixed)
	}
}

func TestComputeTradeID_DifferentInputs(t *testing.T) {
	base := ComputeTradeID("0xtoken", "0xpair", "BUY", 1000)

	diffToken := ComputeTradeID("0xother", "0xpair", "BUY", 1000)
	if base == diffToken {
		t.Error("Different token should produce different hash")
	}

	diffPair := ComputeTradeID("0xtoken", "0xotherpair", "BUY", 1000)
	if base == diffPair {
		t.Error("Different pair should produce different hash")
	}

	diffSide := ComputeTradeID("0xtoken", "0xpair", "SELL", 1000)
	if base == diffSide {
		t.Error("Different side should produce different hash")
	}

	diffTime := ComputeTradeID("0xtoken", "0xpair", "BUY", 2000)
	if base == diffTime {
		t.Error("Different executed time should produce different hash")
	}
}
