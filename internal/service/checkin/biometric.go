package checkin

import (
	"context"
	"strings"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/model"
	"go.uber.org/zap"
)

// DoorDecision is what a biometric reader acts on. Every failure keeps the door shut.
type DoorDecision struct {
	OpenDoor bool
	Reason   string
	Result   *Result
}

// Biometric resolves a fingerprint template to an identity and runs a check-in through
// the biometric path.
func (s *Service) Biometric(ctx context.Context, tenant *model.Tenant, templateID string) DoorDecision {
	templateID = strings.TrimSpace(templateID)
	if tenant == nil || tenant.ID == 0 {
		return deny(ErrMissingTenantContext)
	}
	if !access.TenantCapabilities(tenant).Enabled(model.CapBiometricAccess) {
		return deny(&CapabilityDisabledError{Capability: model.CapBiometricAccess})
	}
	if templateID == "" {
		return deny(ErrIdentityNotFound)
	}

	ident, err := s.store.IdentityByBiometricTemplate(ctx, tenant.ID, templateID)
	if err != nil {
		s.log.Error("biometric lookup failed", zap.Error(err))
		return deny(internal(err))
	}
	if ident == nil {
		return deny(ErrIdentityNotFound)
	}

	res, err := s.CheckIn(ctx, tenant, Request{IdentityID: ident.ID, Method: model.MethodBiometric})
	if err != nil {
		return deny(err)
	}
	return DoorDecision{OpenDoor: true, Result: res}
}

func deny(err error) DoorDecision {
	return DoorDecision{OpenDoor: false, Reason: ReasonCode(err)}
}
