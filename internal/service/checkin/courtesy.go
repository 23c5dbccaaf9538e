package checkin

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/metrics"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type CourtesyRequest struct {
	IdentityID    int64
	ActorID       int64
	Justification string
}

// Courtesy admits an identity on a staff member's authority. It skips entitlement and
// replay checks, never touches the streak, and writes an audit event with the entry.
func (s *Service) Courtesy(ctx context.Context, tenant *model.Tenant, req CourtesyRequest) (*model.EntryRecord, error) {
	ctx, span := tracer.Start(ctx, "checkin.Courtesy")
	defer span.End()

	entry, err := s.courtesy(ctx, tenant, req, s.now())
	reason := ReasonCode(err)
	metrics.CheckinsTotal.WithLabelValues(string(model.ClassCourtesy), reason).Inc()
	span.SetAttributes(attribute.String("checkin.result", reason))
	if err != nil && reason == ReasonInternal {
		s.log.Error("courtesy persistence failure", zap.Error(err))
	}
	return entry, err
}

func (s *Service) courtesy(ctx context.Context, tenant *model.Tenant, req CourtesyRequest, now time.Time) (*model.EntryRecord, error) {
	if tenant == nil || tenant.ID == 0 {
		return nil, ErrMissingTenantContext
	}
	justification := strings.TrimSpace(req.Justification)
	if justification == "" {
		return nil, ErrJustificationMissing
	}

	actor, err := s.store.IdentityByID(ctx, tenant.ID, req.ActorID)
	if err != nil {
		return nil, internal(err)
	}
	if actor == nil || !actor.IsStaff() {
		return nil, ErrActorNotStaff
	}

	actorID := actor.ID
	entry := model.EntryRecord{
		ID:            util.NewAt(now),
		TenantID:      tenant.ID,
		IdentityID:    req.IdentityID,
		At:            now,
		Method:        model.MethodManual,
		Class:         model.ClassCourtesy,
		ActorID:       &actorID,
		Justification: &justification,
	}
	ev := model.Event{
		ID:            entry.ID,
		Kind:          model.EventCourtesy,
		TenantID:      tenant.ID,
		IdentityID:    req.IdentityID,
		At:            now,
		Method:        entry.Method.String(),
		ActorID:       actorID,
		Justification: justification,
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, internal(err)
	}

	err = s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		target, err := tx.LockIdentity(ctx, tenant.ID, req.IdentityID)
		if err != nil {
			return internal(err)
		}
		if target == nil {
			return ErrIdentityNotFound
		}
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return internal(err)
		}
		if err := tx.InsertOutbox(ctx, "entry", entry.ID, s.cfg.AuditTopic, payload); err != nil {
			return internal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("courtesy entry recorded",
		zap.Int64("tenant_id", tenant.ID),
		zap.Int64("identity_id", req.IdentityID),
		zap.Int64("actor_id", actorID),
	)
	s.notifyAsync(ctx, ev)
	return &entry, nil
}
