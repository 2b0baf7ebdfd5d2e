package trader

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bsc-token-sniper/internal/chain"
	"bsc-token-sniper/internal/chain/stub"
	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/storage/memory"
)

const (
	testToken  = "0x1111111111111111111111111111111111111111"
	testPair   = "0x2222222222222222222222222222222222222222"
	testWallet = "0x3333333333333333333333333333333333333333"
)

func testSnapshot() *domain.PairSnapshot {
	return &domain.PairSnapshot{
		PairAddress:  testPair,
		ChainID:      "bsc",
		DexID:        "pancakeswap",
		BaseToken:    domain.TokenRef{Address: testToken, Symbol: "TKN"},
		QuoteToken:   domain.TokenRef{Address: chain.WBNB, Symbol: "WBNB"},
		PriceUsd:     0.003,
		LiquidityUsd: 30000,
	}
}

func testReserves() *domain.PairReserves {
	// 100 WBNB against 10M tokens
	return &domain.PairReserves{
		PairAddress: testPair,
		Token0:      chain.WBNB,
		Token1:      testToken,
		Reserve0:    chain.FromUnits(100),
		Reserve1:    chain.FromUnits(10_000_000),
	}
}

func newTestTrader(t *testing.T, client *stub.TradeClient, reader *stub.PairReader) (*Trader, *memory.TradeStore) {
	t.Helper()

	store := memory.NewTradeStore()
	tr, err := New(Options{
		Client:        client,
		Reader:        reader,
		Store:         store,
		WalletAddress: testWallet,
		AmountToSpend: 0.1,
		Logger:        log.New(io.Discard, "", 0),
		Now:           func() time.Time { return time.UnixMilli(1700000000000) },
	})
	require.NoError(t, err)
	return tr, store
}

func TestTrader_BuyOpensPosition(t *testing.T) {
	client := stub.NewTradeClient()
	client.Balances[testToken] = chain.FromUnits(9000)
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, store := newTestTrader(t, client, reader)

	pos, err := tr.Buy(context.Background(), testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, testToken, pos.TokenAddress)
	assert.Equal(t, testPair, pos.PairAddress)
	assert.InDelta(t, 0.003, pos.BuyPriceUsd, 1e-9)
	assert.Equal(t, int64(1700000000000), pos.BuyTime)
	assert.InDelta(t, 9000.0, pos.AmountHeld, 1e-6)
	assert.InDelta(t, 30000.0, pos.EntryLiquidityUsd, 1e-6)

	// One swap along WBNB -> token with the configured spend
	require.Equal(t, 1, client.SwapCount())
	swap := client.Swaps[0]
	assert.Equal(t, chain.DirectionBuy, swap.Direction)
	assert.Equal(t, []string{chain.WBNB, testToken}, swap.Path)
	assert.Equal(t, 0, swap.AmountIn.Cmp(chain.FromUnits(0.1)))
	assert.True(t, swap.MinOut.Sign() > 0, "minOut should be positive")

	// Trade recorded
	trades, err := store.GetByToken(context.Background(), testToken)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.SideBuy, trades[0].Side)
	assert.Equal(t, swap.TxHash, trades[0].TxHash)
	assert.InDelta(t, 0.1, trades[0].AmountNative, 1e-9)
}

func TestTrader_BuyMinOutBelowEstimate(t *testing.T) {
	client := stub.NewTradeClient()
	client.Balances[testToken] = chain.FromUnits(9000)
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, _ := newTestTrader(t, client, reader)

	_, err := tr.Buy(context.Background(), testSnapshot())
	require.NoError(t, err)

	// Spot estimate: 0.1 BNB into 100/10M reserves is just under 10k
	// tokens; minOut must sit below that by the slippage margin.
	swap := client.Swaps[0]
	spot := chain.ToUnits(swap.MinOut)
	assert.Less(t, spot, 10000.0)
	assert.Greater(t, spot, 9000.0)
}

func TestTrader_BuySubmitFails(t *testing.T) {
	client := stub.NewTradeClient()
	client.SubmitErr = errors.New("nonce too low")
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, store := newTestTrader(t, client, reader)

	pos, err := tr.Buy(context.Background(), testSnapshot())
	assert.Error(t, err)
	assert.Nil(t, pos)

	trades, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, trades, "failed buy must not be recorded")
}

func TestTrader_BuyReceiptFails(t *testing.T) {
	client := stub.NewTradeClient()
	client.ReceiptErr = chain.ErrReceiptTimeout
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, _ := newTestTrader(t, client, reader)

	pos, err := tr.Buy(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, chain.ErrReceiptTimeout)
	assert.Nil(t, pos)
}

func TestTrader_BuyUnknownPair(t *testing.T) {
	client := stub.NewTradeClient()
	reader := stub.NewPairReader() // no reserves configured

	tr, _ := newTestTrader(t, client, reader)

	_, err := tr.Buy(context.Background(), testSnapshot())
	assert.ErrorIs(t, err, chain.ErrNotPair)
	assert.Equal(t, 0, client.SwapCount(), "no swap without an estimate")
}

func TestTrader_SellClosesOut(t *testing.T) {
	client := stub.NewTradeClient()
	client.Balances[testToken] = chain.FromUnits(9000)
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, store := newTestTrader(t, client, reader)

	pos := &domain.Position{
		TokenAddress: testToken,
		PairAddress:  testPair,
		BuyPriceUsd:  0.003,
		BuyTime:      1699990000000,
		AmountHeld:   9000,
	}

	record, err := tr.Sell(context.Background(), pos, 0.009, domain.ExitReasonTakeProfit)
	require.NoError(t, err)

	assert.Equal(t, domain.SideSell, record.Side)
	assert.Equal(t, domain.ExitReasonTakeProfit, record.ExitReason)
	assert.InDelta(t, 0.009, record.PriceUsd, 1e-9)
	assert.InDelta(t, 9000.0, record.AmountToken, 1e-6)
	assert.Greater(t, record.AmountNative, 0.0)

	// Router approved before the swap
	require.Len(t, client.Approves, 1)
	assert.Equal(t, testToken, client.Approves[0])

	require.Equal(t, 1, client.SwapCount())
	swap := client.Swaps[0]
	assert.Equal(t, chain.DirectionSell, swap.Direction)
	assert.Equal(t, []string{testToken, chain.WBNB}, swap.Path)
	assert.Equal(t, 0, swap.AmountIn.Cmp(chain.FromUnits(9000)))

	trades, err := store.GetByToken(context.Background(), testToken)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.SideSell, trades[0].Side)
}

func TestTrader_SellNoBalance(t *testing.T) {
	client := stub.NewTradeClient() // zero balances
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, _ := newTestTrader(t, client, reader)

	pos := &domain.Position{TokenAddress: testToken, PairAddress: testPair, AmountHeld: 9000}
	_, err := tr.Sell(context.Background(), pos, 0.009, domain.ExitReasonRSIOverbought)
	assert.Error(t, err)
	assert.Equal(t, 0, client.SwapCount())
}

func TestTrader_SellSubmitFails(t *testing.T) {
	client := stub.NewTradeClient()
	client.Balances[testToken] = chain.FromUnits(9000)
	client.SubmitErr = errors.New("gas too low")
	reader := stub.NewPairReader()
	reader.SetReserves(testReserves())

	tr, store := newTestTrader(t, client, reader)

	pos := &domain.Position{TokenAddress: testToken, PairAddress: testPair, AmountHeld: 9000}
	_, err := tr.Sell(context.Background(), pos, 0.009, domain.ExitReasonRSIOverbought)
	assert.Error(t, err)

	trades, err := store.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, trades, "failed sell must not be recorded")
}

func TestGetAmountOut(t *testing.T) {
	// 1 in against 100/100 reserves: just under 1 out after the fee.
	out := getAmountOut(chain.FromUnits(1), chain.FromUnits(100), chain.FromUnits(100))
	units := chain.ToUnits(out)
	assert.Greater(t, units, 0.985)
	assert.Less(t, units, 0.99)
}

func TestNew_Validation(t *testing.T) {
	client := stub.NewTradeClient()
	reader := stub.NewPairReader()
	store := memory.NewTradeStore()

	_, err := New(Options{Reader: reader, Store: store, WalletAddress: testWallet, AmountToSpend: 0.1})
	assert.Error(t, err)

	_, err = New(Options{Client: client, Store: store, WalletAddress: testWallet, AmountToSpend: 0.1})
	assert.Error(t, err)

	_, err = New(Options{Client: client, Reader: reader, WalletAddress: testWallet, AmountToSpend: 0.1})
	assert.Error(t, err)

	_, err = New(Options{Client: client, Reader: reader, Store: store, AmountToSpend: 0.1})
	assert.Error(t, err)

	_, err = New(Options{Client: client, Reader: reader, Store: store, WalletAddress: testWallet})
	assert.Error(t, err)
}
