package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dealfinder/internal/domain"
	"dealfinder/internal/enrich"
	"dealfinder/internal/service/mocks"
)

type PollServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	marketplace *mocks.MockMarketplace
	enricher    *mocks.MockEnricher
	reconciler  *mocks.MockReconciler
	listings    *mocks.MockListingStore

	service *PollService
	logger  *slog.Logger
}

func (s *PollServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.marketplace = mocks.NewMockMarketplace(s.ctrl)
	s.enricher = mocks.NewMockEnricher(s.ctrl)
	s.reconciler = mocks.NewMockReconciler(s.ctrl)
	s.listings = mocks.NewMockListingStore(s.ctrl)

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.service = NewPollService(s.marketplace, s.enricher, s.reconciler, s.listings, s.logger)
}

func (s *PollServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestPollServiceTestSuite(t *testing.T) {
	suite.Run(t, new(PollServiceTestSuite))
}

func (s *PollServiceTestSuite) TestSync_NewListing() {
	ctx := context.Background()
	now := time.Now()

	stub := domain.ListingStub{ID: 1, Title: "Wingspan", Price: 40, Updated: now}
	listing := &domain.Listing{ID: 1, Name: "wingspan", Price: 40, LastModified: now}

	s.marketplace.EXPECT().Poll(ctx).Return([]domain.ListingStub{stub}, nil)
	s.listings.EXPECT().ExistingLastModified(ctx, []int64{1}).Return(map[int64]time.Time{}, nil)
	s.enricher.EXPECT().Enrich(ctx, stub).Return(listing, nil)
	s.reconciler.EXPECT().Reconcile(ctx, listing).Return(true, nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Fetched)
	s.Equal(1, stats.New)
	s.Equal(0, stats.Updated)
	s.Equal(0, stats.Skipped)
	s.Equal(1, stats.Published)
}

func (s *PollServiceTestSuite) TestSync_RefreshesNewerKnownListing() {
	ctx := context.Background()
	now := time.Now()
	oldTime := now.Add(-time.Hour)

	stub := domain.ListingStub{ID: 1, Title: "Wingspan", Price: 35, Updated: now}
	stored := &domain.Listing{
		ID:    1,
		Name:  "wingspan",
		Price: 40,
		References: map[domain.Source]domain.Reference{
			domain.SourcePhilibert: {Source: domain.SourcePhilibert, Price: 30},
		},
		LastModified: oldTime,
	}

	s.marketplace.EXPECT().Poll(ctx).Return([]domain.ListingStub{stub}, nil)
	s.listings.EXPECT().ExistingLastModified(ctx, []int64{1}).Return(map[int64]time.Time{1: oldTime}, nil)
	s.listings.EXPECT().GetByID(ctx, int64(1)).Return(stored, nil)
	s.reconciler.EXPECT().Reconcile(ctx, gomock.Any()).DoAndReturn(
		func(ctx context.Context, listing *domain.Listing) (bool, error) {
			// Price moved with the feed, the deal followed.
			s.Equal(35.0, listing.Price)
			s.Equal(now, listing.LastModified)
			s.Equal(domain.Deal{Price: 5, Percentage: 17}, listing.Deal)
			return false, nil
		},
	)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.New)
	s.Equal(1, stats.Updated)
	s.Equal(1, stats.Published)
}

func (s *PollServiceTestSuite) TestSync_SkipsUnchangedListing() {
	ctx := context.Background()
	now := time.Now()

	stub := domain.ListingStub{ID: 1, Updated: now}

	s.marketplace.EXPECT().Poll(ctx).Return([]domain.ListingStub{stub}, nil)
	s.listings.EXPECT().ExistingLastModified(ctx, []int64{1}).Return(map[int64]time.Time{1: now}, nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(0, stats.New)
	s.Equal(0, stats.Updated)
	s.Equal(1, stats.Skipped)
}

func (s *PollServiceTestSuite) TestSync_InFlightListingIsSkipped() {
	ctx := context.Background()

	stub := domain.ListingStub{ID: 1, Updated: time.Now()}

	s.marketplace.EXPECT().Poll(ctx).Return([]domain.ListingStub{stub}, nil)
	s.listings.EXPECT().ExistingLastModified(ctx, []int64{1}).Return(map[int64]time.Time{}, nil)
	s.enricher.EXPECT().Enrich(ctx, stub).Return(nil, enrich.ErrInFlight)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Skipped)
	s.Equal(0, stats.Errors)
}

func (s *PollServiceTestSuite) TestSync_EnrichErrorDoesNotAbortPass() {
	ctx := context.Background()
	now := time.Now()

	stubs := []domain.ListingStub{
		{ID: 1, Updated: now},
		{ID: 2, Updated: now},
	}
	listing := &domain.Listing{ID: 2}

	s.marketplace.EXPECT().Poll(ctx).Return(stubs, nil)
	s.listings.EXPECT().ExistingLastModified(ctx, []int64{1, 2}).Return(map[int64]time.Time{}, nil)
	s.enricher.EXPECT().Enrich(ctx, stubs[0]).Return(nil, errors.New("announce gone"))
	s.enricher.EXPECT().Enrich(ctx, stubs[1]).Return(listing, nil)
	s.reconciler.EXPECT().Reconcile(ctx, listing).Return(true, nil)

	stats, err := s.service.Sync(ctx)

	s.NoError(err)
	s.Equal(1, stats.Errors)
	s.Equal(1, stats.New)
}

func (s *PollServiceTestSuite) TestSync_FeedError() {
	ctx := context.Background()

	s.marketplace.EXPECT().Poll(ctx).Return(nil, errors.New("feed unreachable"))

	stats, err := s.service.Sync(ctx)

	s.Error(err)
	s.Nil(stats)
	s.Contains(err.Error(), "poll feed")
}
