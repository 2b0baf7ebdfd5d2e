// Package storage defines the persistence interfaces of the sniper.
package storage

import (
	"context"

	"bsc-token-sniper/internal/domain"
)

// TradeStore provides access to the append-only trade history.
type TradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// GetByToken retrieves all trades for a token, ordered by executed_at ASC.
	GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeRecord, error)

	// ListRecent retrieves the most recent trades, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error)
}

// SnapshotArchive records the market snapshots observed each scan cycle
// for later analysis. Archiving is best-effort; the scan loop tolerates
// archive failures.
type SnapshotArchive interface {
	// InsertBatch stores one cycle's snapshots stamped with capture time (ms).
	InsertBatch(ctx context.Context, capturedAt int64, snaps []*domain.PairSnapshot) error
}
