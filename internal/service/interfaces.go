package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"dealfinder/internal/domain"
)

type ListingStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)
	Insert(ctx context.Context, listing *domain.Listing, sellerID int64) error
	Update(ctx context.Context, listing *domain.Listing, sellerID int64) error
	DeleteByID(ctx context.Context, id int64) error
	ExistingLastModified(ctx context.Context, ids []int64) (map[int64]time.Time, error)
	ListIDsModifiedBetween(ctx context.Context, from, to time.Time) ([]int64, error)
}

type SellerStore interface {
	UpsertByName(ctx context.Context, seller *domain.Seller) (int64, error)
}

type Marketplace interface {
	Poll(ctx context.Context) ([]domain.ListingStub, error)
	CheckLive(ctx context.Context, id int64) (bool, error)
}

type Enricher interface {
	Enrich(ctx context.Context, stub domain.ListingStub) (*domain.Listing, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, listing *domain.Listing) (bool, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, action domain.EventAction, listing *domain.Listing) error
	Close() error
}
