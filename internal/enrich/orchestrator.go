// Package enrich turns a bare feed stub into a fully enriched listing by
// fanning out to every price and review source concurrently.
package enrich

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"dealfinder/internal/domain"
)

// ErrInFlight is returned when an enrichment for the same listing is already
// running; the caller should drop the request rather than queue it.
var ErrInFlight = errors.New("enrich: listing already in flight")

// DetailFetcher fetches the marketplace's own announce page.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, id int64) (*domain.Listing, error)
}

// PriceSource resolves a game to one shop's price quote. nil, nil means the
// shop does not carry the game.
type PriceSource interface {
	Source() domain.Source
	Lookup(ctx context.Context, name string, barcode *int64) (*domain.Reference, error)
}

// ReviewSource resolves a game to one rating site's note. nil, nil means the
// site has no usable rating for it.
type ReviewSource interface {
	Source() domain.Source
	Lookup(ctx context.Context, name string) (*domain.Reviewer, error)
}

// Orchestrator runs the enrichment fan-out. At most one enrichment per
// listing ID runs at a time.
type Orchestrator struct {
	marketplace DetailFetcher
	prices      []PriceSource
	reviews     []ReviewSource

	mu       sync.Mutex
	inFlight map[int64]struct{}

	logger *slog.Logger
}

func New(marketplace DetailFetcher, prices []PriceSource, reviews []ReviewSource, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		marketplace: marketplace,
		prices:      prices,
		reviews:     reviews,
		inFlight:    make(map[int64]struct{}),
		logger:      logger.With("component", "enrich"),
	}
}

func (o *Orchestrator) acquire(id int64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inFlight[id]; ok {
		return false
	}
	o.inFlight[id] = struct{}{}
	return true
}

func (o *Orchestrator) release(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inFlight, id)
}

// Enrich fetches the announce detail, queries every source concurrently and
// returns the listing with its references, review and deal filled in. A
// failing source only costs its own contribution: the listing still comes
// back with whatever the other sources found.
func (o *Orchestrator) Enrich(ctx context.Context, stub domain.ListingStub) (*domain.Listing, error) {
	if !o.acquire(stub.ID) {
		return nil, ErrInFlight
	}
	defer o.release(stub.ID)

	listing, err := o.marketplace.FetchDetail(ctx, stub.ID)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, src := range o.prices {
		wg.Add(1)
		go func(src PriceSource) {
			defer wg.Done()
			ref, err := src.Lookup(ctx, listing.Name, listing.Barcode)
			if err != nil {
				o.logger.Warn("price lookup failed", "listing_id", listing.ID, "source", string(src.Source()), "error", err)
				return
			}
			if ref == nil {
				return
			}
			mu.Lock()
			listing.References[ref.Source] = *ref
			mu.Unlock()
		}(src)
	}

	for _, src := range o.reviews {
		wg.Add(1)
		go func(src ReviewSource) {
			defer wg.Done()
			reviewer, err := src.Lookup(ctx, listing.Name)
			if err != nil {
				o.logger.Warn("review lookup failed", "listing_id", listing.ID, "source", string(src.Source()), "error", err)
				return
			}
			if reviewer == nil {
				return
			}
			mu.Lock()
			listing.Review.Reviewers[reviewer.Source] = *reviewer
			mu.Unlock()
		}(src)
	}

	wg.Wait()

	listing.ComputeDeal()
	listing.Review.ComputeAverageNote()

	return listing, nil
}
