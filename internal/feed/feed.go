// Package feed provides access to the external market-data feed.
package feed

import (
	"context"
	"errors"

	"bsc-token-sniper/internal/domain"
)

// ErrRateLimited is returned when the feed rejects a request with HTTP 429.
var ErrRateLimited = errors.New("market feed rate limited")

// MarketFeed is the market-data collaborator consumed by the scan loop.
// Any failure means "no data this cycle"; callers never treat it as fatal.
type MarketFeed interface {
	// Search returns pair snapshots matching a free-text query.
	Search(ctx context.Context, query string) ([]*domain.PairSnapshot, error)

	// GetPair returns the current snapshot for one pair, or nil when the
	// feed does not know the pair.
	GetPair(ctx context.Context, chainID, pairAddress string) (*domain.PairSnapshot, error)

	// TokenProfiles returns the latest token profile listings.
	TokenProfiles(ctx context.Context) ([]*domain.TokenProfile, error)
}
