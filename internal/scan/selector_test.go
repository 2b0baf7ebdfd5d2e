package scan

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bsc-token-sniper/internal/chain"
	chainstub "bsc-token-sniper/internal/chain/stub"
	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/filter"
)

var testNow = time.UnixMilli(1756700000000)

// pairHistory serves a canned price series per pair address.
type pairHistory map[string][]float64

func (h pairHistory) Prices(_ context.Context, snap *domain.PairSnapshot) ([]float64, error) {
	return h[snap.PairAddress], nil
}

// snapshotFor builds a passing snapshot and registers matching reserves.
func snapshotFor(reader *chainstub.PairReader, token, pair string) *domain.PairSnapshot {
	reader.SetReserves(&domain.PairReserves{
		PairAddress: pair,
		Token0:      token,
		Token1:      chain.WBNB,
		Reserve0:    new(big.Int).Mul(big.NewInt(1000), big.NewInt(1_000_000_000_000_000_000)),
		Reserve1:    new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000_000_000_000)),
	})
	return &domain.PairSnapshot{
		PairAddress:   pair,
		ChainID:       "bsc",
		BaseToken:     domain.TokenRef{Address: token},
		QuoteToken:    domain.TokenRef{Address: chain.WBNB},
		PriceUsd:      0.1,
		MarketCapUsd:  1_000_000,
		Volume24hUsd:  150_000,
		LiquidityUsd:  50_000,
		PairCreatedAt: testNow.Add(-time.Hour).UnixMilli(),
	}
}

// fallingSeries returns a 15-sample series ending at base whose RSI is
// determined by how many of the moves fall.
func series(deltas ...float64) []float64 {
	out := []float64{100}
	for _, d := range deltas {
		out = append(out, out[len(out)-1]+d)
	}
	return out
}

func newSelector(t *testing.T, reader *chainstub.PairReader, history pairHistory, strategy ScoreStrategy) *Selector {
	t.Helper()
	cfg := filter.DefaultConfig()
	if strategy == ScoreTurnover {
		cfg.BuyRSIThreshold = 0
	} else {
		cfg.BuyRSIThreshold = 50 // wide enough for mixed fixtures
	}
	evaluator := filter.NewEvaluator(filter.Options{
		Config:  cfg,
		Reader:  reader,
		History: history,
		Now:     func() time.Time { return testNow },
	})
	return NewSelector(Options{Evaluator: evaluator, Strategy: strategy})
}

func TestSelectBest_EmptyBatch(t *testing.T) {
	s := newSelector(t, chainstub.NewPairReader(), nil, ScoreTurnover)
	assert.Nil(t, s.SelectBest(context.Background(), nil))
}

func TestSelectBest_AllRejected(t *testing.T) {
	reader := chainstub.NewPairReader()
	a := snapshotFor(reader, "0xaaaa", "0xpair-a")
	a.ChainID = "eth"
	b := snapshotFor(reader, "0xbbbb", "0xpair-b")
	b.LiquidityUsd = 1

	s := newSelector(t, reader, nil, ScoreTurnover)
	assert.Nil(t, s.SelectBest(context.Background(), []*domain.PairSnapshot{a, b}))
}

func TestSelectBest_LowestRSIWins(t *testing.T) {
	reader := chainstub.NewPairReader()
	a := snapshotFor(reader, "0xaaaa", "0xpair-a")
	b := snapshotFor(reader, "0xbbbb", "0xpair-b")

	history := pairHistory{
		// Mostly falling: low RSI. Fourteen deltas, twelve down.
		"0xpair-a": series(-1, -1, -1, -1, -1, -1, 1, -1, -1, -1, -1, 1, -1, -1),
		// Half falling: middling RSI, still under the 50 threshold.
		"0xpair-b": series(-1, 1, -1, 1, -1, 1, -1, 1, -1, -1, -1, 1, -1, -1),
	}

	s := newSelector(t, reader, history, ScoreRSI)
	best := s.SelectBest(context.Background(), []*domain.PairSnapshot{b, a})
	require.NotNil(t, best)
	assert.Equal(t, "0xaaaa", best.TokenAddress)
}

func TestSelectBest_TurnoverScoring(t *testing.T) {
	reader := chainstub.NewPairReader()
	a := snapshotFor(reader, "0xaaaa", "0xpair-a")
	a.Volume24hUsd = 100_000 // score 10
	b := snapshotFor(reader, "0xbbbb", "0xpair-b")
	b.Volume24hUsd = 500_000 // score 2, wins

	s := newSelector(t, reader, nil, ScoreTurnover)
	best := s.SelectBest(context.Background(), []*domain.PairSnapshot{a, b})
	require.NotNil(t, best)
	assert.Equal(t, "0xbbbb", best.TokenAddress)
	assert.InDelta(t, 2.0, best.Score, 1e-9)
}

func TestSelectBest_TieKeepsEarlier(t *testing.T) {
	reader := chainstub.NewPairReader()
	a := snapshotFor(reader, "0xaaaa", "0xpair-a")
	b := snapshotFor(reader, "0xbbbb", "0xpair-b")
	// Identical figures produce identical turnover scores.

	s := newSelector(t, reader, nil, ScoreTurnover)
	best := s.SelectBest(context.Background(), []*domain.PairSnapshot{a, b})
	require.NotNil(t, best)
	assert.Equal(t, "0xaaaa", best.TokenAddress)
}

func TestSelectBest_BatchCap(t *testing.T) {
	reader := chainstub.NewPairReader()
	inCap := snapshotFor(reader, "0xaaaa", "0xpair-a")
	inCap.Volume24hUsd = 100_000
	beyondCap := snapshotFor(reader, "0xbbbb", "0xpair-b")
	beyondCap.Volume24hUsd = 900_000 // better score, but outside the cap

	cfg := filter.DefaultConfig()
	cfg.BuyRSIThreshold = 0
	evaluator := filter.NewEvaluator(filter.Options{
		Config: cfg,
		Reader: reader,
		Now:    func() time.Time { return testNow },
	})
	s := NewSelector(Options{Evaluator: evaluator, Strategy: ScoreTurnover, MaxBatch: 1})

	best := s.SelectBest(context.Background(), []*domain.PairSnapshot{inCap, beyondCap})
	require.NotNil(t, best)
	assert.Equal(t, "0xaaaa", best.TokenAddress)
}

func TestSelectBest_DecisionHook(t *testing.T) {
	reader := chainstub.NewPairReader()
	a := snapshotFor(reader, "0xaaaa", "0xpair-a")
	rejected := snapshotFor(reader, "0xbbbb", "0xpair-b")
	rejected.ChainID = "eth"

	var reasons []filter.Reason
	cfg := filter.DefaultConfig()
	cfg.BuyRSIThreshold = 0
	evaluator := filter.NewEvaluator(filter.Options{
		Config: cfg,
		Reader: reader,
		Now:    func() time.Time { return testNow },
	})
	s := NewSelector(Options{
		Evaluator: evaluator,
		Strategy:  ScoreTurnover,
		OnDecision: func(_ *domain.PairSnapshot, d filter.Decision) {
			reasons = append(reasons, d.Reason)
		},
	})

	s.SelectBest(context.Background(), []*domain.PairSnapshot{a, rejected})
	assert.Equal(t, []filter.Reason{filter.ReasonOK, filter.ReasonWrongChain}, reasons)
}
