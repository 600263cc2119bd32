package service

import (
	"context"
	"fmt"
	"log/slog"

	"dealfinder/internal/domain"
	"dealfinder/internal/metrics"
)

// ReconcileService persists enriched listings: unknown IDs become full
// records, known IDs only get their mutable fields refreshed. Each reconcile
// emits a create or update event downstream.
type ReconcileService struct {
	listings  ListingStore
	sellers   SellerStore
	txManager TransactionManager
	publisher Publisher
	logger    *slog.Logger
}

func NewReconcileService(
	listings ListingStore,
	sellers SellerStore,
	txManager TransactionManager,
	publisher Publisher,
	logger *slog.Logger,
) *ReconcileService {
	return &ReconcileService{
		listings:  listings,
		sellers:   sellers,
		txManager: txManager,
		publisher: publisher,
		logger:    logger.With("component", "reconciler"),
	}
}

// Reconcile writes one listing and reports whether it was new. The seller is
// upserted by name in the same transaction, so a seller row always exists
// before the listing references it.
func (r *ReconcileService) Reconcile(ctx context.Context, listing *domain.Listing) (bool, error) {
	existing, err := r.listings.ExistingLastModified(ctx, []int64{listing.ID})
	if err != nil {
		return false, fmt.Errorf("check existing: %w", err)
	}
	_, known := existing[listing.ID]

	err = r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		sellerID, err := r.sellers.UpsertByName(txCtx, &listing.Seller)
		if err != nil {
			return fmt.Errorf("upsert seller: %w", err)
		}

		if known {
			if err := r.listings.Update(txCtx, listing, sellerID); err != nil {
				return fmt.Errorf("update listing: %w", err)
			}
			return nil
		}
		if err := r.listings.Insert(txCtx, listing, sellerID); err != nil {
			return fmt.Errorf("insert listing: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	action := domain.EventUpdated
	if !known {
		action = domain.EventCreated
		metrics.ListingsInserted.Inc()
	} else {
		metrics.ListingsUpdated.Inc()
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, action, listing); err != nil {
			// The record is already durable; a lost event is only noise for
			// downstream consumers.
			r.logger.Warn("publish failed", "listing_id", listing.ID, "action", string(action), "error", err)
		}
	}

	return !known, nil
}
