package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			trade_id, token_address, pair_address, side, price_usd,
			amount_token, amount_native, tx_hash, exit_reason, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		t.TradeID,
		t.TokenAddress,
		t.PairAddress,
		t.Side,
		t.PriceUsd,
		t.AmountToken,
		t.AmountNative,
		t.TxHash,
		t.ExitReason,
		t.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	query := `
		SELECT trade_id, token_address, pair_address, side, price_usd,
		       amount_token, amount_native, tx_hash, exit_reason, executed_at, created_at
		FROM trades
		WHERE trade_id = $1
	`

	row := s.pool.QueryRow(ctx, query, tradeID)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByToken retrieves all trades for a token, ordered by executed_at ASC.
func (s *TradeStore) GetByToken(ctx context.Context, tokenAddress string) ([]*domain.TradeRecord, error) {
	query := `
		SELECT trade_id, token_address, pair_address, side, price_usd,
		       amount_token, amount_native, tx_hash, exit_reason, executed_at, created_at
		FROM trades
		WHERE lower(token_address) = lower($1)
		ORDER BY executed_at ASC, trade_id ASC
	`

	rows, err := s.pool.Query(ctx, query, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("get trades by token: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// ListRecent retrieves the most recent trades, newest first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]*domain.TradeRecord, error) {
	query := `
		SELECT trade_id, token_address, pair_address, side, price_usd,
		       amount_token, amount_native, tx_hash, exit_reason, executed_at, created_at
		FROM trades
		ORDER BY executed_at DESC, trade_id DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrade scans a single trade row.
func scanTrade(row pgx.Row) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	err := row.Scan(
		&t.TradeID,
		&t.TokenAddress,
		&t.PairAddress,
		&t.Side,
		&t.PriceUsd,
		&t.AmountToken,
		&t.AmountNative,
		&t.TxHash,
		&t.ExitReason,
		&t.ExecutedAt,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTrades scans all trade rows.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var result []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return result, nil
}
