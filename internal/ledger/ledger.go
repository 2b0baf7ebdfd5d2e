// Package ledger tracks open positions in memory.
package ledger

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"bsc-token-sniper/internal/domain"
)

// Ledger errors.
var (
	// ErrPositionOpen is returned when opening a token that already has
	// an open position.
	ErrPositionOpen = errors.New("position already open for token")

	// ErrNoPosition is returned when closing a token with no open
	// position.
	ErrNoPosition = errors.New("no open position for token")
)

// Ledger is the in-memory position table. The scan loop is its single
// writer; the mutex keeps auxiliary readers (status endpoint) safe.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position // keyed by lowercase token address
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{positions: make(map[string]*domain.Position)}
}

// Open records a new position. Returns ErrPositionOpen if the token
// already has one; the existing position is left untouched.
func (l *Ledger) Open(p *domain.Position) error {
	if p == nil || p.TokenAddress == "" {
		return errors.New("invalid position")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(p.TokenAddress)
	if _, exists := l.positions[key]; exists {
		return ErrPositionOpen
	}

	// Store a copy to prevent external mutation
	positionCopy := *p
	l.positions[key] = &positionCopy
	return nil
}

// Close removes the position for a token. Returns ErrNoPosition when the
// token is not held.
func (l *Ledger) Close(tokenAddress string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(tokenAddress)
	if _, exists := l.positions[key]; !exists {
		return ErrNoPosition
	}
	delete(l.positions, key)
	return nil
}

// Get returns the open position for a token, or nil.
func (l *Ledger) Get(tokenAddress string) *domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	p, exists := l.positions[strings.ToLower(tokenAddress)]
	if !exists {
		return nil
	}
	positionCopy := *p
	return &positionCopy
}

// Has reports whether a token has an open position.
func (l *Ledger) Has(tokenAddress string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, exists := l.positions[strings.ToLower(tokenAddress)]
	return exists
}

// ListOpen returns a copied snapshot of all open positions, ordered by
// buy time then token address for stable iteration.
func (l *Ledger) ListOpen() []*domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		positionCopy := *p
		out = append(out, &positionCopy)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BuyTime != out[j].BuyTime {
			return out[i].BuyTime < out[j].BuyTime
		}
		return out[i].TokenAddress < out[j].TokenAddress
	})
	return out
}

// Len returns the number of open positions.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}
