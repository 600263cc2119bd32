package sweeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dealfinder/internal/config"
	"dealfinder/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStore struct {
	mu      sync.Mutex
	ids     []int64
	deleted []int64
	listErr error
}

func (f *fakeStore) ListIDsModifiedBetween(ctx context.Context, from, to time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids, nil
}

func (f *fakeStore) DeleteByID(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) deletedIDs() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.deleted...)
}

type fakeChecker struct {
	mu   sync.Mutex
	dead map[int64]bool
	err  error
}

func (f *fakeChecker) CheckLive(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return !f.dead[id], nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.EventAction
}

func (f *fakePublisher) Publish(ctx context.Context, action domain.EventAction, listing *domain.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, action)
	return nil
}

func testTier() config.SweepTier {
	return config.SweepTier{
		StartOffset:  0,
		Duration:     24 * time.Hour,
		LoopDuration: 10 * time.Millisecond,
	}
}

func TestSweepOnce_RemovesDeadListings(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2, 3}}
	checker := &fakeChecker{dead: map[int64]bool{2: true}}
	publisher := &fakePublisher{}

	s := New(store, checker, publisher, nil, testLogger())

	stats := s.sweepOnce(context.Background(), testTier())

	assert.Equal(t, 3, stats.Checked)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, []int64{2}, store.deletedIDs())
	assert.Equal(t, []domain.EventAction{domain.EventDeleted}, publisher.events)
}

func TestSweepOnce_LiveListingsUntouched(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2}}
	checker := &fakeChecker{}

	s := New(store, checker, nil, nil, testLogger())

	stats := s.sweepOnce(context.Background(), testTier())

	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 0, stats.Removed)
	assert.Empty(t, store.deletedIDs())
}

func TestSweepOnce_CheckErrorCountedNotFatal(t *testing.T) {
	store := &fakeStore{ids: []int64{1, 2}}
	checker := &fakeChecker{err: errors.New("timeout")}

	s := New(store, checker, nil, nil, testLogger())

	stats := s.sweepOnce(context.Background(), testTier())

	assert.Equal(t, 2, stats.Checked)
	assert.Equal(t, 2, stats.Errors)
	assert.Empty(t, store.deletedIDs())
}

func TestSweepOnce_ListErrorCounted(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}

	s := New(store, &fakeChecker{}, nil, nil, testLogger())

	stats := s.sweepOnce(context.Background(), testTier())

	assert.Equal(t, 0, stats.Checked)
	assert.Equal(t, 1, stats.Errors)
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	store := &fakeStore{ids: []int64{1}}
	checker := &fakeChecker{}

	s := New(store, checker, nil, []config.SweepTier{testTier()}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
