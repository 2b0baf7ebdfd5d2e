// Package memory provides in-memory storage implementations for tests
// and --use-memory runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{data: make(map[string]*domain.TradeRecord)}
}

var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	tradeCopy := *t
	s.data[t.TradeID] = &tradeCopy
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	tradeCopy := *t
	return &tradeCopy, nil
}

// GetByToken retrieves all trades for a token, ordered by executed_at ASC.
func (s *TradeStore) GetByToken(_ context.Context, tokenAddress string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if strings.EqualFold(t.TokenAddress, tokenAddress) {
			tradeCopy := *t
			result = append(result, &tradeCopy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt < result[j].ExecutedAt
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}

// ListRecent retrieves the most recent trades, newest first.
func (s *TradeStore) ListRecent(_ context.Context, limit int) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeRecord, 0, len(s.data))
	for _, t := range s.data {
		tradeCopy := *t
		result = append(result, &tradeCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt > result[j].ExecutedAt
		}
		return result[i].TradeID > result[j].TradeID
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
