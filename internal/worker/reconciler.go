package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
	"go.uber.org/zap"
)

// Sweeper runs one reconcile pass.
type Sweeper interface {
	Run(ctx context.Context) ([]reconcile.TenantSummary, error)
}

// ReconcileScheduler fires the nightly sweep once a day at a fixed wall-clock time.
type ReconcileScheduler struct {
	sweeper Sweeper
	hour    int
	minute  int
	loc     *time.Location
	log     *zap.Logger
	now     func() time.Time
}

// NewReconcileScheduler parses runAt as "HH:MM" in loc (UTC when nil).
func NewReconcileScheduler(sweeper Sweeper, runAt string, loc *time.Location, log *zap.Logger) (*ReconcileScheduler, error) {
	at, err := time.Parse("15:04", runAt)
	if err != nil {
		return nil, fmt.Errorf("reconcile run_at %q: %w", runAt, err)
	}
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ReconcileScheduler{
		sweeper: sweeper,
		hour:    at.Hour(),
		minute:  at.Minute(),
		loc:     loc,
		log:     log,
		now:     time.Now,
	}, nil
}

// Next returns the first run time strictly after t.
func (s *ReconcileScheduler) Next(t time.Time) time.Time {
	local := t.In(s.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.minute, 0, 0, s.loc)
	}
	return next
}

// Run blocks until ctx is cancelled. A failed sweep is logged and retried the next day.
func (s *ReconcileScheduler) Run(ctx context.Context) error {
	for {
		next := s.Next(s.now())
		s.log.Info("next reconcile scheduled", zap.Time("at", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}

		s.RunOnce(ctx)
	}
}

func (s *ReconcileScheduler) RunOnce(ctx context.Context) {
	start := s.now()
	sums, err := s.sweeper.Run(ctx)
	total := 0
	for _, sum := range sums {
		total += sum.Reset
	}
	if err != nil {
		s.log.Error("reconcile sweep finished with errors", zap.Int("tenants", len(sums)), zap.Error(err))
		return
	}
	s.log.Info("reconcile sweep done",
		zap.Int("tenants", len(sums)),
		zap.Int("reset", total),
		zap.Duration("took", s.now().Sub(start)),
	)
}
