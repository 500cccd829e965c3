// Package maintenance runs the backend's periodic housekeeping.
package maintenance

import (
	"context"
	"time"

	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/m3rciful/pricewatch/core/logger"
)

const (
	defaultSchedule  = "0 3 * * *"
	defaultStaleDays = 7
	sweepTimeout     = 2 * time.Minute
)

// Config holds the sweep settings.
type Config struct {
	Schedule  string `yaml:"schedule" envconfig:"MAINTENANCE_SCHEDULE"`
	StaleDays int    `yaml:"stale_days" envconfig:"MAINTENANCE_STALE_DAYS"`
}

// TrackDeactivator flips off tracks whose last check predates the cutoff.
type TrackDeactivator interface {
	DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper deactivates tracks the monitor has not touched for a while, so
// listings and monitor ticks stop paying for dead subscriptions.
type Sweeper struct {
	store     TrackDeactivator
	staleDays int
	schedule  string
	cron      *cron.Cron
}

func NewSweeper(store TrackDeactivator, cfg Config) *Sweeper {
	s := &Sweeper{
		store:     store,
		staleDays: cfg.StaleDays,
		schedule:  cfg.Schedule,
	}
	if s.staleDays <= 0 {
		s.staleDays = defaultStaleDays
	}
	if s.schedule == "" {
		s.schedule = defaultSchedule
	}
	return s
}

// Start schedules the sweep and runs it until Stop.
func (s *Sweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info(logger.Background(), "maintenance", "sweeper_started",
		slog.String("schedule", s.schedule),
		slog.Int("stale_days", s.staleDays),
	)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(logger.Background(), sweepTimeout)
	defer cancel()
	s.Sweep(ctx, time.Now().UTC())
}

// Sweep runs one pass against the given reference time.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) {
	cutoff := now.AddDate(0, 0, -s.staleDays)
	n, err := s.store.DeactivateStale(ctx, cutoff)
	if err != nil {
		logger.Error(ctx, "maintenance", "sweep_failed",
			slog.String("err", err.Error()))
		return
	}
	logger.Info(ctx, "maintenance", "sweep_done",
		slog.Int64("deactivated", n),
		slog.Time("cutoff", cutoff),
	)
}
