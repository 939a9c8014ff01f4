package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/saha-club/bookingservice/internal/booking"
	"github.com/saha-club/bookingservice/internal/log"
)

// Scheduler runs the background sweeps: releasing slots held by unpaid
// reservations, flagging no-shows, and optionally reloading pricing rules
// from storage.
type Scheduler struct {
	cron      *cron.Cron
	allocator *booking.Allocator

	// ReloadRules refreshes the in-memory pricing rule set. Optional.
	ReloadRules func(ctx context.Context) error
}

func NewScheduler(allocator *booking.Allocator) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		allocator: allocator,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.expireUnpaid); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("* * * * *", s.flagNoShows); err != nil {
		return err
	}
	if s.ReloadRules != nil {
		if _, err := s.cron.AddFunc("*/5 * * * *", s.reloadRules); err != nil {
			return err
		}
	}
	s.cron.Start()
	log.Info(context.Background(), "background scheduler started")
	return nil
}

// Stop halts the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		log.Warn(context.Background(), "scheduler stop timed out waiting for jobs")
	}
}

func (s *Scheduler) expireUnpaid() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.allocator.ExpireUnpaid(ctx)
	if err != nil {
		log.Error(ctx, "payment timeout sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info(ctx, "expired unpaid reservations", zap.Int("count", n))
	}
}

func (s *Scheduler) flagNoShows() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.allocator.FlagNoShows(ctx)
	if err != nil {
		log.Error(ctx, "no-show sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info(ctx, "flagged no-show reservations", zap.Int("count", n))
	}
}

func (s *Scheduler) reloadRules() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.ReloadRules(ctx); err != nil {
		log.Error(ctx, "pricing rule reload failed", zap.Error(err))
	}
}
