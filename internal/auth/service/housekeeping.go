package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/bartab-accounts/internal/auth/store"
)

// DefaultDeviceRetention is how long an unverified device sighting is kept.
const DefaultDeviceRetention = 30 * 24 * time.Hour

// HousekeepingService periodically drops stale unverified devices and
// clears account locks that have run out.
type HousekeepingService struct {
	Store           store.Store
	Logger          *slog.Logger
	Interval        time.Duration
	DeviceRetention time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval, retention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if retention <= 0 {
		retention = DefaultDeviceRetention
	}

	return &HousekeepingService{
		Store:           store,
		Logger:          logger,
		Interval:        interval,
		DeviceRetention: retention,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each task independently; one failing does not stop the other.
func (s *HousekeepingService) cleanup(ctx context.Context) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	s.Logger.Debug("starting housekeeping cleanup")

	pruned, err := s.Store.Users().PruneDevices(ctx, now.Add(-s.DeviceRetention))
	if err != nil {
		s.Logger.Error("failed to prune stale devices", "error", err)
	}

	unlocked, err := s.Store.Users().UnlockExpired(ctx, now)
	if err != nil {
		s.Logger.Error("failed to clear expired locks", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed", "devices_pruned", pruned, "accounts_unlocked", unlocked)
}
