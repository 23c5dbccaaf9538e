// Package reconcile zeroes streaks that can no longer be continued. The decision is the
// one a check-in at the same instant would make.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/streak"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/herwingx/nexogym-sub000/internal/service/reconcile")

type TenantSummary struct {
	TenantID  int64 `json:"tenant_id"`
	Scanned   int   `json:"scanned"`
	Reset     int   `json:"reset"`
	Preserved int   `json:"preserved"`
	// Raced counts resets skipped because a check-in moved the streak first.
	Raced int `json:"raced"`
}

type Service struct {
	store             repository.Store
	reactivationGrace time.Duration
	log               *zap.Logger
	now               func() time.Time
}

func New(store repository.Store, reactivationGrace time.Duration, log *zap.Logger) *Service {
	if reactivationGrace <= 0 {
		reactivationGrace = streak.DefaultReactivationGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, reactivationGrace: reactivationGrace, log: log, now: time.Now}
}

// WithClock replaces the time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run sweeps every active tenant with gamification enabled. A failing tenant is logged
// and skipped; the error reports the first failure after all tenants were visited.
func (s *Service) Run(ctx context.Context) ([]TenantSummary, error) {
	ctx, span := tracer.Start(ctx, "reconcile.Run")
	defer span.End()

	tenants, err := s.store.ListActiveTenants(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list tenants: %w", err)
	}

	now := s.now()
	var (
		out      []TenantSummary
		firstErr error
	)
	for i := range tenants {
		t := &tenants[i]
		if !access.TenantCapabilities(t).Enabled(model.CapGamification) {
			continue
		}
		sum, err := s.RunTenant(ctx, t, now)
		if err != nil {
			s.log.Error("reconcile tenant failed", zap.Int64("tenant_id", t.ID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, sum)
	}
	return out, firstErr
}

// RunTenant sweeps one tenant as of now.
func (s *Service) RunTenant(ctx context.Context, t *model.Tenant, now time.Time) (TenantSummary, error) {
	ctx, span := tracer.Start(ctx, "reconcile.RunTenant")
	defer span.End()
	span.SetAttributes(attribute.Int64("tenant.id", t.ID))

	sum := TenantSummary{TenantID: t.ID}
	rules := streak.RulesFor(t, s.reactivationGrace)
	yesterday := streak.Day(now, rules.Location).AddDate(0, 0, -1)

	candidates, err := s.store.ListStreakCandidates(ctx, t.ID, yesterday)
	if err != nil {
		return sum, fmt.Errorf("list candidates: %w", err)
	}

	for _, c := range candidates {
		sum.Scanned++
		state := streak.State{
			CurrentStreak:  c.CurrentStreak,
			LastCreditDate: c.LastCreditDate,
			FreezeUntil:    c.StreakFreezeUntil,
		}
		if !streak.WouldReset(state, now, rules) {
			sum.Preserved++
			metrics.ReconcileIdentitiesTotal.WithLabelValues("preserved").Inc()
			continue
		}

		ok, err := s.store.ResetStreak(ctx, c.ID, c.CurrentStreak, *c.LastCreditDate)
		if err != nil {
			return sum, fmt.Errorf("reset identity %d: %w", c.ID, err)
		}
		if !ok {
			sum.Raced++
			metrics.ReconcileIdentitiesTotal.WithLabelValues("raced").Inc()
			continue
		}
		sum.Reset++
		metrics.ReconcileIdentitiesTotal.WithLabelValues("reset").Inc()
	}

	span.SetAttributes(
		attribute.Int("reconcile.scanned", sum.Scanned),
		attribute.Int("reconcile.reset", sum.Reset),
	)
	s.log.Info("reconcile tenant done",
		zap.Int64("tenant_id", t.ID),
		zap.Int("scanned", sum.Scanned),
		zap.Int("reset", sum.Reset),
		zap.Int("preserved", sum.Preserved),
		zap.Int("raced", sum.Raced),
	)
	return sum, nil
}
