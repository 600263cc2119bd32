package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dealfinder/internal/domain"
	"dealfinder/internal/enrich"
	"dealfinder/internal/metrics"
)

// PollService drives one pass over the marketplace feed: known listings get a
// cheap price refresh, unknown ones go through full enrichment. One bad entry
// never aborts the pass.
type PollService struct {
	marketplace Marketplace
	enricher    Enricher
	reconciler  Reconciler
	listings    ListingStore
	logger      *slog.Logger
}

func NewPollService(
	marketplace Marketplace,
	enricher Enricher,
	reconciler Reconciler,
	listings ListingStore,
	logger *slog.Logger,
) *PollService {
	return &PollService{
		marketplace: marketplace,
		enricher:    enricher,
		reconciler:  reconciler,
		listings:    listings,
		logger:      logger.With("component", "poller"),
	}
}

func (s *PollService) Sync(ctx context.Context) (*domain.PollStats, error) {
	startTime := time.Now()
	s.logger.Info("starting poll")

	stubs, err := s.marketplace.Poll(ctx)
	if err != nil {
		return nil, fmt.Errorf("poll feed: %w", err)
	}
	metrics.FeedPolls.Inc()

	s.logger.Info("fetched feed entries", "count", len(stubs))

	ids := make([]int64, len(stubs))
	for i, stub := range stubs {
		ids[i] = stub.ID
	}
	existing, err := s.listings.ExistingLastModified(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("check existing: %w", err)
	}

	stats := &domain.PollStats{Fetched: len(stubs)}

	for _, stub := range stubs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		lastModified, known := existing[stub.ID]
		if known {
			s.refresh(ctx, stub, lastModified, stats)
		} else {
			s.discover(ctx, stub, stats)
		}
	}

	stats.Duration = time.Since(startTime)

	s.logger.Info("poll completed",
		"new", stats.New,
		"updated", stats.Updated,
		"skipped", stats.Skipped,
		"errors", stats.Errors,
		"published", stats.Published,
		"duration", stats.Duration,
	)

	return stats, nil
}

// refresh handles a feed entry whose listing is already stored: nothing to do
// unless the entry is strictly newer, and then only price, timestamp and deal
// move.
func (s *PollService) refresh(ctx context.Context, stub domain.ListingStub, lastModified time.Time, stats *domain.PollStats) {
	if !stub.Updated.After(lastModified) {
		stats.Skipped++
		return
	}

	listing, err := s.listings.GetByID(ctx, stub.ID)
	if err != nil {
		s.logger.Warn("loading listing failed", "listing_id", stub.ID, "error", err)
		stats.Errors++
		return
	}

	listing.Price = stub.Price
	listing.LastModified = stub.Updated
	listing.ComputeDeal()

	if _, err := s.reconciler.Reconcile(ctx, listing); err != nil {
		s.logger.Warn("reconciling listing failed", "listing_id", stub.ID, "error", err)
		stats.Errors++
		return
	}

	stats.Updated++
	stats.Published++
}

// discover handles a feed entry never seen before: full enrichment, then a
// first write.
func (s *PollService) discover(ctx context.Context, stub domain.ListingStub, stats *domain.PollStats) {
	listing, err := s.enricher.Enrich(ctx, stub)
	if errors.Is(err, enrich.ErrInFlight) {
		// A previous pass is still working on it; the next pass will see it
		// in the store or pick it up again.
		stats.Skipped++
		return
	}
	if err != nil {
		s.logger.Warn("enriching listing failed", "listing_id", stub.ID, "error", err)
		stats.Errors++
		return
	}

	if _, err := s.reconciler.Reconcile(ctx, listing); err != nil {
		s.logger.Warn("reconciling listing failed", "listing_id", stub.ID, "error", err)
		stats.Errors++
		return
	}

	stats.New++
	stats.Published++
}
