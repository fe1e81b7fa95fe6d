package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"carlton/internal/metrics"
	"carlton/internal/model"
)

// ListingStore persists listing snapshots.
type ListingStore interface {
	UpsertListings(ctx context.Context, listings []model.Listing) (int, error)
}

// ListingSyncer copies the upstream inventory into the listing store on a
// cron schedule.
type ListingSyncer struct {
	source   ListingSource
	store    ListingStore
	schedule string
	timeout  time.Duration
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewListingSyncer creates a syncer. An empty schedule disables the cron job;
// SyncOnce still works.
func NewListingSyncer(source ListingSource, store ListingStore, schedule string, timeout time.Duration) *ListingSyncer {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ListingSyncer{
		source:   source,
		store:    store,
		schedule: schedule,
		timeout:  timeout,
		cron:     cron.New(),
	}
}

// SyncOnce fetches the inventory and upserts it. Overlapping runs are skipped.
func (s *ListingSyncer) SyncOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, errors.New("sync already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	start := time.Now()
	listings, err := s.source.FetchListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch listings: %w", err)
	}

	n, err := s.store.UpsertListings(ctx, listings)
	if err != nil {
		return n, fmt.Errorf("failed to store listings: %w", err)
	}

	metrics.SetSyncedListings(n)
	log.Info().Int("listings", n).Dur("took", time.Since(start)).Msg("listing sync complete")
	return n, nil
}

// Start registers the cron job and starts the scheduler.
func (s *ListingSyncer) Start(ctx context.Context) error {
	if s.schedule == "" {
		log.Info().Msg("no listing sync schedule configured")
		return nil
	}

	_, err := s.cron.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		if _, err := s.SyncOnce(runCtx); err != nil {
			log.Warn().Err(err).Msg("scheduled listing sync failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid sync schedule %q: %w", s.schedule, err)
	}

	log.Info().Str("schedule", s.schedule).Msg("starting listing sync")
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *ListingSyncer) Stop() {
	<-s.cron.Stop().Done()
}
