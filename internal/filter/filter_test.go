package filter

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bsc-token-sniper/internal/chain"
	chainstub "bsc-token-sniper/internal/chain/stub"
	"bsc-token-sniper/internal/domain"
)

const (
	tokenAddr = "0x00000000000000000000000000000000000000aa"
	pairAddr  = "0x00000000000000000000000000000000000000bb"
)

var testNow = time.UnixMilli(1756700000000)

// fixedHistory returns a canned price series.
type fixedHistory []float64

func (h fixedHistory) Prices(context.Context, *domain.PairSnapshot) ([]float64, error) {
	return h, nil
}

// errHistory always fails.
type errHistory struct{}

func (errHistory) Prices(context.Context, *domain.PairSnapshot) ([]float64, error) {
	return nil, errors.New("history unavailable")
}

// oversold is a 15-sample falling series (RSI 0).
var oversold = fixedHistory{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

// overbought is a 15-sample rising series (RSI 100).
var overbought = fixedHistory{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func goodSnapshot() *domain.PairSnapshot {
	return &domain.PairSnapshot{
		PairAddress:   pairAddr,
		ChainID:       "bsc",
		BaseToken:     domain.TokenRef{Address: tokenAddr, Symbol: "AAA"},
		QuoteToken:    domain.TokenRef{Address: chain.WBNB, Symbol: "WBNB"},
		PriceUsd:      0.126,
		MarketCapUsd:  1_000_000,
		Volume24hUsd:  150_000,
		LiquidityUsd:  50_000,
		PairCreatedAt: testNow.Add(-2 * time.Hour).UnixMilli(),
	}
}

func goodReader() *chainstub.PairReader {
	reader := chainstub.NewPairReader()
	reader.SetReserves(&domain.PairReserves{
		PairAddress: pairAddr,
		Token0:      tokenAddr,
		Token1:      chain.WBNB,
		Reserve0:    new(big.Int).Mul(big.NewInt(1000), big.NewInt(1_000_000_000_000_000_000)),
		Reserve1:    new(big.Int).Mul(big.NewInt(100), big.NewInt(1_000_000_000_000_000_000)),
	})
	return reader
}

func newEvaluator(opts Options) *Evaluator {
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	return NewEvaluator(opts)
}

func TestEvaluate_AcceptsGoodCandidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyRSIThreshold = 0 // RSI gate disabled

	e := newEvaluator(Options{Config: cfg, Reader: goodReader()})
	d := e.Evaluate(context.Background(), goodSnapshot())

	assert.True(t, d.Accept)
	assert.Equal(t, ReasonOK, d.Reason)
	assert.False(t, d.HasRSI)
}

func TestEvaluate_GateReasons(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyRSIThreshold = 0

	tests := []struct {
		name   string
		mutate func(*domain.PairSnapshot)
		want   Reason
	}{
		{"wrong chain", func(s *domain.PairSnapshot) { s.ChainID = "eth" }, ReasonWrongChain},
		{"low liquidity", func(s *domain.PairSnapshot) { s.LiquidityUsd = 999 }, ReasonLowLiquidity},
		{"market cap too high", func(s *domain.PairSnapshot) { s.MarketCapUsd = 10_000_000 }, ReasonMarketCapTooHigh},
		{"volume too low", func(s *domain.PairSnapshot) { s.Volume24hUsd = 100 }, ReasonVolumeTooLow},
		{"zero mcap means zero ratio", func(s *domain.PairSnapshot) {
			s.MarketCapUsd = 0
		}, ReasonVolumeToMarketCapTooLow},
		{"too old", func(s *domain.PairSnapshot) {
			s.PairCreatedAt = testNow.Add(-72 * time.Hour).UnixMilli()
		}, ReasonTooOld},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEvaluator(Options{Config: cfg, Reader: goodReader()})
			snap := goodSnapshot()
			tt.mutate(snap)
			d := e.Evaluate(context.Background(), snap)
			assert.False(t, d.Accept)
			assert.Equal(t, tt.want, d.Reason)
		})
	}
}

func TestEvaluate_FirstFailingGateWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyRSIThreshold = 0

	// Both chain and liquidity would fail; only the first gate's reason
	// surfaces.
	snap := goodSnapshot()
	snap.ChainID = "eth"
	snap.LiquidityUsd = 1

	e := newEvaluator(Options{Config: cfg, Reader: goodReader()})
	d := e.Evaluate(context.Background(), snap)
	assert.Equal(t, ReasonWrongChain, d.Reason)
}

func TestEvaluate_LockGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyRSIThreshold = 0

	t.Run("not locked anywhere", func(t *testing.T) {
		e := newEvaluator(Options{
			Config:  cfg,
			Reader:  goodReader(),
			Lockers: []chain.LockChecker{chainstub.NewLockChecker("a"), chainstub.NewLockChecker("b")},
		})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.Equal(t, ReasonLiquidityNotLocked, d.Reason)
	})

	t.Run("locked by second locker", func(t *testing.T) {
		second := chainstub.NewLockChecker("b")
		second.Locked[pairAddr] = big.NewInt(1)
		e := newEvaluator(Options{
			Config:  cfg,
			Reader:  goodReader(),
			Lockers: []chain.LockChecker{chainstub.NewLockChecker("a"), second},
		})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.True(t, d.Accept)
	})

	t.Run("locker error falls through to next", func(t *testing.T) {
		broken := chainstub.NewLockChecker("a")
		broken.Err = errors.New("locker unreachable")
		locked := chainstub.NewLockChecker("b")
		locked.Locked[pairAddr] = big.NewInt(5)
		e := newEvaluator(Options{
			Config:  cfg,
			Reader:  goodReader(),
			Lockers: []chain.LockChecker{broken, locked},
		})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.True(t, d.Accept)
	})
}

func TestEvaluate_CrossCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyRSIThreshold = 0

	t.Run("base token mismatch", func(t *testing.T) {
		reader := goodReader()
		snap := goodSnapshot()
		snap.BaseToken.Address = "0x00000000000000000000000000000000000000cc"
		e := newEvaluator(Options{Config: cfg, Reader: reader})
		d := e.Evaluate(context.Background(), snap)
		assert.Equal(t, ReasonDataMismatch, d.Reason)
	})

	t.Run("case-insensitive address match", func(t *testing.T) {
		snap := goodSnapshot()
		snap.BaseToken.Address = "0x00000000000000000000000000000000000000AA"
		e := newEvaluator(Options{Config: cfg, Reader: goodReader()})
		d := e.Evaluate(context.Background(), snap)
		assert.True(t, d.Accept)
	})

	t.Run("onchain liquidity below floor", func(t *testing.T) {
		reader := chainstub.NewPairReader()
		reader.SetReserves(&domain.PairReserves{
			PairAddress: pairAddr,
			Token0:      tokenAddr,
			Token1:      chain.WBNB,
			Reserve0:    big.NewInt(1_000_000_000_000_000_000),
			Reserve1:    big.NewInt(1_000_000_000_000_000_000), // 1 WBNB ≈ $300
		})
		e := newEvaluator(Options{Config: cfg, Reader: reader})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.Equal(t, ReasonLowLiquidity, d.Reason)
	})

	t.Run("reader error rejects, never propagates", func(t *testing.T) {
		reader := chainstub.NewPairReader()
		reader.Err = errors.New("node down")
		e := newEvaluator(Options{Config: cfg, Reader: reader})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.False(t, d.Accept)
		assert.Equal(t, ReasonDataMismatch, d.Reason)
	})
}

func TestEvaluate_RSIGate(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("oversold accepts and carries RSI", func(t *testing.T) {
		e := newEvaluator(Options{Config: cfg, Reader: goodReader(), History: oversold})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.True(t, d.Accept)
		assert.True(t, d.HasRSI)
		assert.Equal(t, 0.0, d.RSI)
	})

	t.Run("overbought rejects", func(t *testing.T) {
		e := newEvaluator(Options{Config: cfg, Reader: goodReader(), History: overbought})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.Equal(t, ReasonRsiNotOversold, d.Reason)
	})

	t.Run("short series is no signal, rejected", func(t *testing.T) {
		e := newEvaluator(Options{Config: cfg, Reader: goodReader(), History: fixedHistory{1, 2, 3}})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.Equal(t, ReasonRsiNotOversold, d.Reason)
	})

	t.Run("history error rejects, never propagates", func(t *testing.T) {
		e := newEvaluator(Options{Config: cfg, Reader: goodReader(), History: errHistory{}})
		d := e.Evaluate(context.Background(), goodSnapshot())
		assert.Equal(t, ReasonRsiNotOversold, d.Reason)
	})
}

func TestEvaluate_UnknownAgeSkipsAgeGate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BuyRSIThreshold = 0

	snap := goodSnapshot()
	snap.PairCreatedAt = 0

	e := newEvaluator(Options{Config: cfg, Reader: goodReader()})
	d := e.Evaluate(context.Background(), snap)
	assert.True(t, d.Accept)
}
