// Package scan reduces a market-feed batch to the single best candidate.
package scan

import (
	"context"
	"log"
	"math"

	"bsc-token-sniper/internal/domain"
	"bsc-token-sniper/internal/filter"
)

// ScoreStrategy picks how accepted candidates are ranked. Lower scores
// win under both strategies.
type ScoreStrategy string

const (
	// ScoreRSI ranks by raw RSI: more oversold is better.
	ScoreRSI ScoreStrategy = "rsi"
	// ScoreTurnover ranks by inverse volume/market-cap ratio: relatively
	// higher turnover is better.
	ScoreTurnover ScoreStrategy = "turnover"
)

// DefaultMaxBatch bounds how many records are evaluated per cycle, since
// the later gates cost external calls per candidate.
const DefaultMaxBatch = 60

// Candidate is the selected winner of one scan.
type Candidate struct {
	TokenAddress string
	PairAddress  string
	Score        float64
}

// Selector evaluates a snapshot batch through the filter and keeps the
// lowest-scoring accepted candidate.
type Selector struct {
	evaluator  *filter.Evaluator
	strategy   ScoreStrategy
	maxBatch   int
	logger     *log.Logger
	onDecision func(*domain.PairSnapshot, filter.Decision)
}

// Options contains configuration for creating a Selector.
type Options struct {
	Evaluator *filter.Evaluator
	Strategy  ScoreStrategy
	// MaxBatch caps evaluated records per batch. 0 means DefaultMaxBatch.
	MaxBatch int
	Logger   *log.Logger
	// OnDecision, when set, observes every per-candidate decision
	// (metrics hook).
	OnDecision func(*domain.PairSnapshot, filter.Decision)
}

// NewSelector creates a selector.
func NewSelector(opts Options) *Selector {
	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	strategy := opts.Strategy
	if strategy == "" {
		strategy = ScoreRSI
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Selector{
		evaluator:  opts.Evaluator,
		strategy:   strategy,
		maxBatch:   maxBatch,
		logger:     logger,
		onDecision: opts.OnDecision,
	}
}

// SelectBest evaluates up to maxBatch snapshots and returns the accepted
// candidate with the lowest score, or nil when nothing passes. Ties keep
// the earlier-seen candidate, so selection is deterministic under stable
// input ordering.
func (s *Selector) SelectBest(ctx context.Context, snaps []*domain.PairSnapshot) *Candidate {
	if len(snaps) > s.maxBatch {
		snaps = snaps[:s.maxBatch]
	}

	var best *Candidate
	for _, snap := range snaps {
		decision := s.evaluator.Evaluate(ctx, snap)
		if s.onDecision != nil {
			s.onDecision(snap, decision)
		}
		if !decision.Accept {
			continue
		}

		score, ok := s.score(snap, decision)
		if !ok {
			continue
		}
		if best == nil || score < best.Score {
			best = &Candidate{
				TokenAddress: snap.BaseToken.Address,
				PairAddress:  snap.PairAddress,
				Score:        score,
			}
		}
	}
	return best
}

// score computes the strategy score for an accepted candidate.
func (s *Selector) score(snap *domain.PairSnapshot, decision filter.Decision) (float64, bool) {
	switch s.strategy {
	case ScoreRSI:
		if !decision.HasRSI {
			// RSI gate disabled: nothing to rank by under this strategy.
			s.logger.Printf("no RSI signal for %s under rsi scoring, skipping", snap.PairAddress)
			return 0, false
		}
		return decision.RSI, true
	case ScoreTurnover:
		if snap.Volume24hUsd <= 0 {
			return math.Inf(1), true
		}
		return snap.MarketCapUsd / snap.Volume24hUsd, true
	default:
		return 0, false
	}
}
