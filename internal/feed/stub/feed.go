// Package stub provides an in-memory MarketFeed for tests and dry runs.
package stub

import (
	"context"
	"sync"

	"bsc-token-sniper/internal/domain"
)

// Feed is a scriptable in-memory market feed.
type Feed struct {
	mu       sync.Mutex
	batches  [][]*domain.PairSnapshot
	pairs    map[string]*domain.PairSnapshot // keyed by pair address
	profiles []*domain.TokenProfile

	// Err, when set, is returned from every call.
	Err error

	searchCalls int
}

// NewFeed creates an empty stub feed.
func NewFeed() *Feed {
	return &Feed{pairs: make(map[string]*domain.PairSnapshot)}
}

// QueueBatch appends a batch returned by a subsequent Search call.
// The last queued batch is repeated once the queue drains.
func (f *Feed) QueueBatch(snaps ...*domain.PairSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, snaps)
	for _, s := range snaps {
		f.pairs[s.PairAddress] = s
	}
}

// SetPair sets the snapshot returned by GetPair for its pair address.
func (f *Feed) SetPair(s *domain.PairSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pairs[s.PairAddress] = s
}

// SetProfiles sets the token profile listing.
func (f *Feed) SetProfiles(profiles ...*domain.TokenProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles = profiles
}

// SearchCalls reports how many Search calls were made.
func (f *Feed) SearchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searchCalls
}

// Search returns the next queued batch.
func (f *Feed) Search(_ context.Context, _ string) ([]*domain.PairSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return batch, nil
}

// GetPair returns the snapshot registered for pairAddress, or nil.
func (f *Feed) GetPair(_ context.Context, _, pairAddress string) (*domain.PairSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.pairs[pairAddress], nil
}

// TokenProfiles returns the configured profile listing.
func (f *Feed) TokenProfiles(_ context.Context) ([]*domain.TokenProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	return f.profiles, nil
}
