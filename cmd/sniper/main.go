// Package main runs the token sniper: a single trading loop that scans
// the DexScreener feed for BSC candidates, gates them against on-chain
// state, buys the best one through the Pancake router and watches open
// positions for exit conditions.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bsc-token-sniper/internal/chain"
	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/engine"
	"bsc-token-sniper/internal/feed"
	"bsc-token-sniper/internal/filter"
	"bsc-token-sniper/internal/history"
	"bsc-token-sniper/internal/ledger"
	"bsc-token-sniper/internal/observability"
	"bsc-token-sniper/internal/scan"
	"bsc-token-sniper/internal/storage"
	chstore "bsc-token-sniper/internal/storage/clickhouse"
	"bsc-token-sniper/internal/storage/memory"
	"bsc-token-sniper/internal/storage/migrations"
	pgstore "bsc-token-sniper/internal/storage/postgres"
	"bsc-token-sniper/internal/trader"
)

// BSC mainnet chain ID.
const bscChainID = 56

func main() {
	// Load .env file if exists
	loadEnvFile()

	// Parse flags (env vars as defaults)
	rpcEndpoint := flag.String("rpc-endpoint", os.Getenv("BSC_RPC_ENDPOINT"), "BSC RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", os.Getenv("BSC_WS_ENDPOINT"), "BSC WebSocket endpoint (optional, enables block watching)")
	walletAddress := flag.String("wallet", os.Getenv("WALLET_ADDRESS"), "Trading wallet address the node can sign for")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, enables snapshot archiving)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	query := flag.String("query", engine.DefaultQuery, "Feed search query")
	score := flag.String("score", "rsi", "Candidate scoring strategy: rsi or turnover")
	historyMode := flag.String("history-mode", "chain", "Price history source: chain or synthetic")
	checkInterval := flag.Duration("check-interval", engine.DefaultCheckInterval, "Sleep between scan cycles")
	metricsAddr := flag.String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	noLockCheck := flag.Bool("no-lock-check", false, "Skip the liquidity lock gate")

	// Thresholds (env vars as defaults)
	minLiquidity := flag.Float64("min-liquidity", envFloat("MIN_LIQUIDITY_USD", filter.DefaultMinLiquidityUsd), "Minimum liquidity in USD")
	maxMarketCap := flag.Float64("max-market-cap", envFloat("MAX_MARKET_CAP_USD", filter.DefaultMaxMarketCapUsd), "Maximum market cap in USD (0 disables)")
	minVolume := flag.Float64("min-volume", envFloat("MIN_VOLUME_USD", filter.DefaultMinVolume24hUsd), "Minimum 24h volume in USD")
	minVolMcap := flag.Float64("min-vol-mcap-ratio", envFloat("MIN_VOL_MCAP_RATIO", filter.DefaultMinVolMcapRatio), "Minimum volume/market-cap ratio")
	maxPairAge := flag.Duration("max-pair-age", envDuration("MAX_PAIR_AGE", filter.DefaultMaxPairAge), "Maximum pair age (0 disables)")
	buyRSI := flag.Float64("buy-rsi", envFloat("RSI_BUY_THRESHOLD", filter.DefaultBuyRSIThreshold), "Buy when RSI is strictly below this (0 disables)")
	sellRSI := flag.Float64("sell-rsi", envFloat("RSI_SELL_THRESHOLD", engine.DefaultSellRSIThreshold), "Sell when RSI reaches this (0 disables)")
	takeProfit := flag.Float64("take-profit", envFloat("TAKE_PROFIT_MULTIPLIER", engine.DefaultTakeProfitMultiplier), "Sell at this multiple of the buy price (0 disables)")
	amountToSpend := flag.Float64("amount-to-spend", envFloat("AMOUNT_TO_SPEND_BNB", 0.1), "BNB spent per buy")
	quotePriceUsd := flag.Float64("quote-price-usd", envFloat("QUOTE_PRICE_USD", filter.DefaultQuotePriceUsd), "WBNB price in USD for on-chain liquidity checks")
	slippageBps := flag.Int("slippage-bps", int(envFloat("SLIPPAGE_BPS", trader.DefaultSlippageBps)), "Swap slippage tolerance in basis points")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[sniper] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *rpcEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	if *walletAddress == "" {
		logger.Fatal("--wallet is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	strategy, err := scoreStrategy(*score)
	if err != nil {
		logger.Fatal(err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Chain collaborators
	rpc := chain.NewRPCClient(*rpcEndpoint)
	reader := chain.NewRPCPairReader(rpc)
	signer := chain.NewRemoteSigner(rpc, *walletAddress)
	tradeClient := chain.NewRouterTradeClient(rpc, signer, chain.PancakeRouterV2, bscChainID)

	var blocks history.BlockSource
	if *wsEndpoint != "" {
		watcher, err := chain.NewBlockWatcher(ctx, *wsEndpoint, nil, logger)
		if err != nil {
			logger.Fatalf("Failed to start block watcher: %v", err)
		}
		defer watcher.Close()
		blocks = watcher
		logger.Printf("Block watcher connected to %s", *wsEndpoint)
	}

	// Storage
	tradeStore, archive, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *useMemory, logger)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Price history
	var priceHistory history.Source
	switch *historyMode {
	case "chain":
		priceHistory = history.NewChain(reader, blocks, chain.WBNB, 0, 0)
	case "synthetic":
		logger.Printf("WARNING: synthetic price history enabled; RSI reflects a fabricated decay series")
		priceHistory = history.NewSynthetic(0, 0)
	default:
		logger.Fatalf("Unknown history mode %q (want chain or synthetic)", *historyMode)
	}

	// Filter and selector
	cfg := filter.DefaultConfig()
	cfg.MinLiquidityUsd = *minLiquidity
	cfg.MaxMarketCapUsd = *maxMarketCap
	cfg.MinVolume24hUsd = *minVolume
	cfg.MinVolMcapRatio = *minVolMcap
	cfg.MaxPairAge = *maxPairAge
	cfg.BuyRSIThreshold = *buyRSI
	cfg.QuotePriceUsd = *quotePriceUsd

	var lockers []chain.LockChecker
	if !*noLockCheck {
		lockers = chain.DefaultLockCheckers(rpc)
	}

	metrics := observability.DefaultMetrics
	evaluator := filter.NewEvaluator(filter.Options{
		Config:  cfg,
		Reader:  reader,
		Lockers: lockers,
		History: priceHistory,
		Logger:  logger,
	})
	selector := scan.NewSelector(scan.Options{
		Evaluator: evaluator,
		Strategy:  strategy,
		Logger:    logger,
		OnDecision: func(_ *domain.PairSnapshot, decision filter.Decision) {
			if !decision.Accept {
				metrics.CandidatesRejected.WithLabelValues(string(decision.Reason)).Inc()
			}
		},
	})

	// Trading
	marketFeed := feed.NewDexScreenerClient(feed.WithAPIKey(os.Getenv("DEXSCREENER_API_KEY")))
	positions := ledger.New()
	exec, err := trader.New(trader.Options{
		Client:        tradeClient,
		Reader:        reader,
		Store:         tradeStore,
		WalletAddress: *walletAddress,
		AmountToSpend: *amountToSpend,
		SlippageBps:   *slippageBps,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create trader: %v", err)
	}

	runner, err := engine.NewRunner(engine.Options{
		Feed:                 marketFeed,
		Selector:             selector,
		Ledger:               positions,
		Trader:               exec,
		History:              priceHistory,
		Archive:              archive,
		Metrics:              metrics,
		Query:                *query,
		CheckInterval:        *checkInterval,
		SellRSIThreshold:     *sellRSI,
		TakeProfitMultiplier: *takeProfit,
		Logger:               logger,
	})
	if err != nil {
		logger.Fatalf("Failed to create runner: %v", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		}
	}()

	// Start HTTP server for health/metrics/positions
	go startHTTPServer(*metricsAddr, positions, logger)

	err = runner.Run(ctx)
	if err != nil && err != context.Canceled {
		logger.Fatalf("Runner error: %v", err)
	}
	logger.Println("Shutdown complete")
}

// createStores builds the trade store and optional snapshot archive.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, useMemory bool, logger *log.Logger) (storage.TradeStore, storage.SnapshotArchive, func(), error) {
	if useMemory {
		return memory.NewTradeStore(), nil, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	var archive storage.SnapshotArchive
	cleanup := func() { pool.Close() }

	if clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			pool.Close()
			return nil, nil, nil, fmt.Errorf("run clickhouse migrations: %w", err)
		}
		archive = chstore.NewSnapshotStore(conn)
		cleanup = func() {
			conn.Close()
			pool.Close()
		}
	} else {
		logger.Println("No ClickHouse DSN; snapshot archiving disabled")
	}

	return pgstore.NewTradeStore(pool), archive, cleanup, nil
}

// startHTTPServer serves health, metrics and open positions.
func startHTTPServer(addr string, positions *ledger.Ledger, logger *log.Logger) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/positions", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(positions.ListOpen())
	})

	logger.Printf("Starting HTTP server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("HTTP server error: %v", err)
	}
}

// scoreStrategy parses the -score flag.
func scoreStrategy(s string) (scan.ScoreStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rsi":
		return scan.ScoreRSI, nil
	case "turnover":
		return scan.ScoreTurnover, nil
	default:
		return "", fmt.Errorf("unknown score strategy %q (want rsi or turnover)", s)
	}
}

// envFloat reads a float env var, falling back on missing or bad values.
func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration reads a duration env var, falling back on missing or bad values.
func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}

// loadEnvFile loads environment variables from .env file if it exists.
func loadEnvFile() {
	data, err := os.ReadFile(".env")
	if err != nil {
		return // File doesn't exist, use system env vars
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
