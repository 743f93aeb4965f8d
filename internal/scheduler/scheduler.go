// Package scheduler drives the periodic pipeline: collection on a fixed
// interval, the daily digest at a fixed local hour, the weekly digest on
// Sunday evening.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/svodkanews/svodka/internal/config"
	"github.com/svodkanews/svodka/internal/logger"
	"github.com/svodkanews/svodka/internal/service"
)

type Scheduler struct {
	cfg *config.Config
	svc *service.Service
	log *slog.Logger
}

func New(cfg *config.Config, svc *service.Service) *Scheduler {
	return &Scheduler{cfg: cfg, svc: svc, log: logger.With("scheduler")}
}

// Run blocks until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	collectTicker := time.NewTicker(s.cfg.CollectInterval)
	defer collectTicker.Stop()

	dailyTimer := time.NewTimer(time.Until(s.nextDaily(time.Now())))
	defer dailyTimer.Stop()
	weeklyTimer := time.NewTimer(time.Until(s.nextWeekly(time.Now())))
	defer weeklyTimer.Stop()

	s.log.Info("scheduler started",
		"collect_interval", s.cfg.CollectInterval,
		"daily_hour", s.cfg.DailyPublishHour,
		"weekly_hour", s.cfg.WeeklyPublishHour,
		"timezone", s.cfg.Timezone)

	// Collect once on startup so a fresh deployment has data before the
	// first publish slot.
	s.runJob(ctx, "collect", s.svc.CollectAndStore)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-collectTicker.C:
			s.runJob(ctx, "collect", s.svc.CollectAndStore)
		case <-dailyTimer.C:
			s.runJob(ctx, "daily digest", s.svc.PublishDaily)
			dailyTimer.Reset(time.Until(s.nextDaily(time.Now())))
		case <-weeklyTimer.C:
			s.runJob(ctx, "weekly digest", s.svc.PublishWeekly)
			weeklyTimer.Reset(time.Until(s.nextWeekly(time.Now())))
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	if err := job(ctx); err != nil {
		s.log.Error("scheduled job failed", "job", name, "error", err)
	}
}

// nextDaily returns the next occurrence of the daily publish hour in the
// configured timezone.
func (s *Scheduler) nextDaily(now time.Time) time.Time {
	local := now.In(s.cfg.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.DailyPublishHour, 0, 0, 0, local.Location())
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextWeekly returns the next Sunday at the weekly publish hour in the
// configured timezone.
func (s *Scheduler) nextWeekly(now time.Time) time.Time {
	local := now.In(s.cfg.Location())
	next := time.Date(local.Year(), local.Month(), local.Day(), s.cfg.WeeklyPublishHour, 0, 0, 0, local.Location())
	daysAhead := (int(time.Sunday) - int(local.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(local) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}
