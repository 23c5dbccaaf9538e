package access

import (
	"context"
	"errors"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
)

var (
	ErrNoActiveEntitlement  = errors.New("no active entitlement")
	ErrOutsideAllowedWindow = errors.New("outside allowed time window")
)

// EntitlementFinder returns the latest active, unexpired entitlement, or nil.
type EntitlementFinder interface {
	LatestActiveEntitlement(ctx context.Context, tenantID, identityID int64, now time.Time) (*model.Entitlement, error)
}

// SubscriptionValidator confirms an identity may enter right now. It never writes.
type SubscriptionValidator struct {
	finder EntitlementFinder
}

func NewSubscriptionValidator(f EntitlementFinder) *SubscriptionValidator {
	return &SubscriptionValidator{finder: f}
}

// Validate returns the gating entitlement, ErrNoActiveEntitlement, ErrOutsideAllowedWindow,
// or a lookup error.
func (v *SubscriptionValidator) Validate(ctx context.Context, tenant *model.Tenant, identityID int64, now time.Time) (*model.Entitlement, error) {
	ent, err := v.finder.LatestActiveEntitlement(ctx, tenant.ID, identityID, now)
	if err != nil {
		return nil, err
	}
	if ent == nil || ent.Status != model.EntitlementActive || !ent.ExpiresAt.After(now) {
		return nil, ErrNoActiveEntitlement
	}
	if w := ent.Window(); w != nil {
		local := now.In(tenant.Location())
		if !w.Contains(local.Hour()*60 + local.Minute()) {
			return ent, ErrOutsideAllowedWindow
		}
	}
	return ent, nil
}
