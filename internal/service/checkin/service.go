package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/reward"
	"github.com/herwingx/nexogym-sub000/internal/streak"
	"github.com/herwingx/nexogym-sub000/internal/util"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	DefaultGraceFreeze   = 72 * time.Hour
	DefaultNotifyTimeout = 5 * time.Second
	DefaultAuditTopic    = "nexogym.audit"
)

var tracer = otel.Tracer("github.com/herwingx/nexogym-sub000/internal/service/checkin")

// Notifier receives post-commit events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev model.Event) error
}

type Config struct {
	GraceFreeze       time.Duration
	ReactivationGrace time.Duration
	NotifyTimeout     time.Duration
	AuditTopic        string
}

func (c Config) withDefaults() Config {
	if c.GraceFreeze <= 0 {
		c.GraceFreeze = DefaultGraceFreeze
	}
	if c.ReactivationGrace <= 0 {
		c.ReactivationGrace = streak.DefaultReactivationGrace
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
	if c.AuditTopic == "" {
		c.AuditTopic = DefaultAuditTopic
	}
	return c
}

// Service decides whether an identity may enter and applies the streak side effects of
// an admission in one transaction.
type Service struct {
	store     repository.Store
	validator *access.SubscriptionValidator
	replay    *access.ReplayGuard
	qr        *access.QRTokenCodec
	notifier  Notifier
	log       *zap.Logger
	cfg       Config

	now func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithQRCodec(c *access.QRTokenCodec) Option { return func(s *Service) { s.qr = c } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(store repository.Store, replay *access.ReplayGuard, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:     store,
		validator: access.NewSubscriptionValidator(store),
		replay:    replay,
		log:       zap.NewNop(),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Request is one check-in attempt. QRToken, when set, is resolved to the identity.
type Request struct {
	IdentityID int64
	QRToken    string
	Method     model.AccessMethod
}

type Result struct {
	EntryID        string
	Credited       bool
	NewStreak      int
	RewardUnlocked bool
	RewardLabel    string
	NextReward     *model.RewardTier
}

// CheckIn runs the admission state machine. On any error nothing was written, except
// the grace-freeze marker that accompanies ErrNoActiveEntitlement.
func (s *Service) CheckIn(ctx context.Context, tenant *model.Tenant, req Request) (*Result, error) {
	switch {
	case req.QRToken != "":
		// a token is a QR admission whatever method the caller claims
		req.Method = model.MethodQR
	case req.Method == "":
		req.Method = model.MethodManual
	}

	ctx, span := tracer.Start(ctx, "checkin.CheckIn")
	defer span.End()
	span.SetAttributes(attribute.String("checkin.method", req.Method.String()))

	res, err := s.checkIn(ctx, tenant, req, s.now())
	reason := ReasonCode(err)
	metrics.CheckinsTotal.WithLabelValues(req.Method.String(), reason).Inc()
	span.SetAttributes(attribute.String("checkin.result", reason))
	if err != nil && reason == ReasonInternal {
		span.SetStatus(codes.Error, err.Error())
		s.log.Error("check-in persistence failure", zap.Error(err))
	}
	return res, err
}

func (s *Service) checkIn(ctx context.Context, tenant *model.Tenant, req Request, now time.Time) (*Result, error) {
	if tenant == nil || tenant.ID == 0 {
		return nil, ErrMissingTenantContext
	}

	caps := access.TenantCapabilities(tenant)
	if c, ok := req.Method.RequiredCapability(); ok && !caps.Enabled(c) {
		return nil, &CapabilityDisabledError{Capability: c}
	}

	identityID, err := s.resolveIdentity(tenant, req, now)
	if err != nil {
		return nil, err
	}

	ident, err := s.store.IdentityByID(ctx, tenant.ID, identityID)
	if err != nil {
		return nil, internal(err)
	}
	if ident == nil {
		return nil, ErrIdentityNotFound
	}

	if !ident.IsStaff() {
		if _, err := s.validator.Validate(ctx, tenant, ident.ID, now); err != nil {
			switch {
			case errors.Is(err, ErrNoActiveEntitlement):
				s.graceFreeze(ctx, caps, ident, now)
				return nil, err
			case errors.Is(err, ErrOutsideAllowedWindow):
				return nil, err
			default:
				return nil, internal(err)
			}
		}
	}

	cooldown := s.replay.Cooldowns().For(ident.Role, req.Method)
	if err := s.replay.Precheck(ctx, tenant.ID, ident.ID, cooldown, now); err != nil {
		if errors.Is(err, &ReplayBlockedError{}) {
			return nil, err
		}
		s.log.Warn("replay store unavailable", zap.Error(err))
	}

	var (
		res      *Result
		tr       streak.Result
		gamified = caps.Enabled(model.CapGamification)
	)
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		locked, err := tx.LockIdentity(ctx, tenant.ID, ident.ID)
		if err != nil {
			return internal(err)
		}
		if locked == nil {
			return ErrIdentityNotFound
		}

		last := locked.LastEntryAt
		if locked.IsStaff() {
			if last, err = tx.LastEntryAt(ctx, tenant.ID, locked.ID); err != nil {
				return internal(err)
			}
		}
		if err := s.replay.Check(last, now, cooldown); err != nil {
			return err
		}

		entry := model.EntryRecord{
			ID:         util.NewAt(now),
			TenantID:   tenant.ID,
			IdentityID: locked.ID,
			At:         now,
			Method:     req.Method,
			Class:      model.ClassRegular,
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return internal(err)
		}

		res = &Result{EntryID: entry.ID, NewStreak: locked.CurrentStreak}
		upd := model.IdentityUpdate{LastEntryAt: now}

		if !locked.IsStaff() && gamified {
			tr = streak.Transition(streak.State{
				CurrentStreak:  locked.CurrentStreak,
				LastCreditDate: locked.LastCreditDate,
				FreezeUntil:    locked.StreakFreezeUntil,
			}, now, streak.RulesFor(tenant, s.cfg.ReactivationGrace))

			res.NewStreak = tr.NewStreak
			res.Credited = tr.Credited
			if tr.Changed {
				upd.StreakChanged = true
				upd.CurrentStreak = tr.NewStreak
				upd.LastCreditDate = tr.NewLastCreditDate
				upd.ClearFreeze = tr.ClearFreeze
			}

			eval := reward.NewEvaluator(tenant.Rewards)
			if tr.Credited {
				if label, ok := eval.Unlocked(tr.NewStreak); ok {
					inserted, err := tx.InsertRewardUnlock(ctx, repository.RewardUnlock{
						TenantID:      tenant.ID,
						IdentityID:    locked.ID,
						ThresholdDays: tr.NewStreak,
						Label:         label,
						EntryID:       entry.ID,
						CreditDate:    *tr.NewLastCreditDate,
					})
					if err != nil {
						return internal(err)
					}
					res.RewardUnlocked = inserted
					if inserted {
						res.RewardLabel = label
					}
				}
			}
			if next, ok := eval.Next(res.NewStreak); ok {
				res.NextReward = &next
			}
		}

		if err := tx.UpdateIdentity(ctx, locked.ID, upd); err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if gamified && !ident.IsStaff() {
		metrics.StreakTransitionsTotal.WithLabelValues(transitionKind(tr)).Inc()
	}
	if err := s.replay.Remember(ctx, tenant.ID, ident.ID, now); err != nil {
		s.log.Warn("replay store write failed", zap.Error(err))
	}

	ev := model.Event{
		ID:         res.EntryID,
		Kind:       model.EventVisit,
		TenantID:   tenant.ID,
		IdentityID: ident.ID,
		At:         now,
		Method:     req.Method.String(),
		Streak:     res.NewStreak,
	}
	if res.RewardUnlocked {
		ev.Kind = model.EventReward
		ev.RewardLabel = res.RewardLabel
	}
	s.notifyAsync(ctx, ev)

	return res, nil
}

func (s *Service) resolveIdentity(tenant *model.Tenant, req Request, now time.Time) (int64, error) {
	if req.QRToken == "" {
		if req.IdentityID <= 0 {
			return 0, ErrIdentityNotFound
		}
		return req.IdentityID, nil
	}
	if s.qr == nil {
		return 0, ErrInvalidQRToken
	}
	return s.qr.Resolve(req.QRToken, tenant.ID, now)
}

// graceFreeze protects a streak while its owner has no valid entitlement, unless a
// freeze is already in force.
func (s *Service) graceFreeze(ctx context.Context, caps model.CapabilitySet, ident *model.Identity, now time.Time) {
	if !caps.Enabled(model.CapGamification) || ident.CurrentStreak <= 0 {
		return
	}
	if ident.StreakFreezeUntil != nil && !ident.StreakFreezeUntil.Before(now) {
		return
	}
	set, err := s.store.SetFreezeUntil(ctx, ident.ID, now.Add(s.cfg.GraceFreeze), now)
	if err != nil {
		s.log.Warn("grace freeze not applied", zap.Int64("identity_id", ident.ID), zap.Error(err))
		return
	}
	if set {
		s.log.Info("grace freeze applied",
			zap.Int64("identity_id", ident.ID),
			zap.Duration("grace", s.cfg.GraceFreeze),
		)
	}
}

func (s *Service) notifyAsync(ctx context.Context, ev model.Event) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, span := tracer.Start(ctx, "checkin.notify",
			trace.WithSpanKind(trace.SpanKindProducer),
			trace.WithAttributes(attribute.String("event.kind", string(ev.Kind))),
		)
		defer span.End()

		ctx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, ev); err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.log.Warn("notification failed",
				zap.String("kind", string(ev.Kind)),
				zap.String("entry_id", ev.ID),
				zap.Error(err),
			)
		}
	}()
}

func transitionKind(r streak.Result) string {
	switch {
	case r.Reset:
		return "reset"
	case r.Exception != streak.ExceptionNone:
		return "preserved"
	case r.Credited:
		return "credited"
	default:
		return "unchanged"
	}
}
