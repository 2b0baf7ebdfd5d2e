package clickhouse

import (
	"context"
	"fmt"

	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/storage"
)

// SnapshotStore implements storage.SnapshotArchive using ClickHouse.
// Each scan cycle appends one row per observed pair; the table is an
// append-only MergeTree, so duplicate captures are harmless.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotArchive = (*SnapshotStore)(nil)

// InsertBatch stores one cycle's snapshots stamped with capture time (ms).
func (s *SnapshotStore) InsertBatch(ctx context.Context, capturedAt int64, snaps []*domain.PairSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pair_snapshots (
			captured_at_ms, pair_address, chain_id, dex_id,
			base_token, base_symbol, quote_token, quote_symbol,
			price_usd, price_native, market_cap_usd, volume_24h_usd,
			liquidity_usd, pair_created_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, snap := range snaps {
		err = batch.Append(
			uint64(capturedAt),
			snap.PairAddress, snap.ChainID, snap.DexID,
			snap.BaseToken.Address, snap.BaseToken.Symbol,
			snap.QuoteToken.Address, snap.QuoteToken.Symbol,
			snap.PriceUsd, snap.PriceNative, snap.MarketCapUsd,
			snap.Volume24hUsd, snap.LiquidityUsd,
			uint64(snap.PairCreatedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByPair retrieves archived snapshots for a pair, ordered by capture
// time ASC. Used by offline analysis, not by the trading loop.
func (s *SnapshotStore) GetByPair(ctx context.Context, pairAddress string) ([]*domain.PairSnapshot, []int64, error) {
	query := `
		SELECT captured_at_ms, pair_address, chain_id, dex_id,
		       base_token, base_symbol, quote_token, quote_symbol,
		       price_usd, price_native, market_cap_usd, volume_24h_usd,
		       liquidity_usd, pair_created_at_ms
		FROM pair_snapshots
		WHERE pair_address = ?
		ORDER BY captured_at_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, pairAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("query by pair: %w", err)
	}
	defer rows.Close()

	var (
		snaps    []*domain.PairSnapshot
		captured []int64
	)
	for rows.Next() {
		var (
			capturedAt uint64
			createdAt  uint64
			snap       domain.PairSnapshot
		)
		err := rows.Scan(
			&capturedAt,
			&snap.PairAddress, &snap.ChainID, &snap.DexID,
			&snap.BaseToken.Address, &snap.BaseToken.Symbol,
			&snap.QuoteToken.Address, &snap.QuoteToken.Symbol,
			&snap.PriceUsd, &snap.PriceNative, &snap.MarketCapUsd,
			&snap.Volume24hUsd, &snap.LiquidityUsd,
			&createdAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.PairCreatedAt = int64(createdAt)
		snaps = append(snaps, &snap)
		captured = append(captured, int64(capturedAt))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	return snaps, captured, nil
}
