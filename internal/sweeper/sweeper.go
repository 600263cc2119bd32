// Package sweeper removes listings whose marketplace announce has
// disappeared. Listings are rechecked in staleness tiers: the fresher the
// listing, the more often its announce is probed.
package sweeper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dealfinder/internal/config"
	"dealfinder/internal/domain"
	"dealfinder/internal/metrics"
)

type ListingStore interface {
	ListIDsModifiedBetween(ctx context.Context, from, to time.Time) ([]int64, error)
	DeleteByID(ctx context.Context, id int64) error
}

type LivenessChecker interface {
	CheckLive(ctx context.Context, id int64) (bool, error)
}

type Publisher interface {
	Publish(ctx context.Context, action domain.EventAction, listing *domain.Listing) error
}

type Sweeper struct {
	listings  ListingStore
	checker   LivenessChecker
	publisher Publisher
	tiers     []config.SweepTier
	logger    *slog.Logger
}

func New(
	listings ListingStore,
	checker LivenessChecker,
	publisher Publisher,
	tiers []config.SweepTier,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		listings:  listings,
		checker:   checker,
		publisher: publisher,
		tiers:     tiers,
		logger:    logger.With("component", "sweeper"),
	}
}

// Start runs one loop per tier until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.logger.Info("sweeper started", "tiers", len(s.tiers))

	var wg sync.WaitGroup
	for _, tier := range s.tiers {
		wg.Add(1)
		go func(tier config.SweepTier) {
			defer wg.Done()
			s.runTier(ctx, tier)
		}(tier)
	}
	wg.Wait()

	s.logger.Info("sweeper stopped")
	return ctx.Err()
}

func (s *Sweeper) runTier(ctx context.Context, tier config.SweepTier) {
	logger := s.logger.With("tier_start", tier.StartOffset, "tier_loop", tier.LoopDuration)

	for {
		stats := s.sweepOnce(ctx, tier)
		if ctx.Err() != nil {
			return
		}

		logger.Info("sweep pass completed",
			"checked", stats.Checked,
			"removed", stats.Removed,
			"errors", stats.Errors,
		)

		// The pass itself is paced to take about one LoopDuration; an empty
		// window means there was nothing to pace against, so wait it out.
		if stats.Checked == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(tier.LoopDuration):
			}
		}
	}
}

// sweepOnce probes every listing in the tier's window, spreading the probes
// over the tier's loop duration.
func (s *Sweeper) sweepOnce(ctx context.Context, tier config.SweepTier) *domain.SweepStats {
	stats := &domain.SweepStats{}

	now := time.Now()
	from := now.Add(-tier.StartOffset - tier.Duration)
	to := now.Add(-tier.StartOffset)

	ids, err := s.listings.ListIDsModifiedBetween(ctx, from, to)
	if err != nil {
		s.logger.Error("listing window failed", "error", err)
		stats.Errors++
		return stats
	}
	if len(ids) == 0 {
		return stats
	}

	pace := tier.LoopDuration / time.Duration(len(ids))

	for _, id := range ids {
		if ctx.Err() != nil {
			return stats
		}

		s.checkOne(ctx, id, stats)

		select {
		case <-ctx.Done():
			return stats
		case <-time.After(pace):
		}
	}

	return stats
}

func (s *Sweeper) checkOne(ctx context.Context, id int64, stats *domain.SweepStats) {
	stats.Checked++

	live, err := s.checker.CheckLive(ctx, id)
	if err != nil {
		s.logger.Warn("liveness check failed", "listing_id", id, "error", err)
		stats.Errors++
		return
	}
	if live {
		return
	}

	if err := s.listings.DeleteByID(ctx, id); err != nil {
		s.logger.Error("delete failed", "listing_id", id, "error", err)
		stats.Errors++
		return
	}
	metrics.ListingsDeleted.Inc()
	stats.Removed++

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, domain.EventDeleted, &domain.Listing{ID: id}); err != nil {
			s.logger.Warn("publish failed", "listing_id", id, "error", err)
		}
	}

	s.logger.Info("removed dead listing", "listing_id", id)
}
