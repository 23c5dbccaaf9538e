package checkin

import (
	"errors"
	"fmt"
	"time"

	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/model"
)

var (
	ErrMissingTenantContext = errors.New("missing tenant context")
	ErrIdentityNotFound     = errors.New("identity not found")
	ErrNoActiveEntitlement  = access.ErrNoActiveEntitlement
	ErrOutsideAllowedWindow = access.ErrOutsideAllowedWindow
	ErrInvalidQRToken       = access.ErrInvalidQRToken
	ErrActorNotStaff        = errors.New("courtesy actor is not staff")
	ErrJustificationMissing = errors.New("courtesy justification is required")

	// ErrInternal marks a persistence failure. Nothing was written.
	ErrInternal = errors.New("internal persistence failure")
)

// ReplayBlockedError is returned when the identity entered within its cooldown.
type ReplayBlockedError = access.ReplayBlockedError

// CapabilityDisabledError names the capability the tenant does not have.
type CapabilityDisabledError struct {
	Capability model.Capability
}

func (e *CapabilityDisabledError) Error() string {
	return fmt.Sprintf("capability %s is disabled", e.Capability)
}

func (e *CapabilityDisabledError) Is(target error) bool {
	_, ok := target.(*CapabilityDisabledError)
	return ok
}

func internal(err error) error {
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// Reason codes shared by the HTTP layer, metrics and the biometric door response.
const (
	ReasonAdmitted             = "admitted"
	ReasonMissingTenantContext = "missing_tenant_context"
	ReasonCapabilityDisabled   = "capability_disabled"
	ReasonIdentityNotFound     = "identity_not_found"
	ReasonInvalidQRToken       = "invalid_qr_token"
	ReasonNoActiveEntitlement  = "no_active_entitlement"
	ReasonOutsideAllowedWindow = "outside_allowed_window"
	ReasonReplayBlocked        = "replay_blocked"
	ReasonActorNotStaff        = "actor_not_staff"
	ReasonJustification        = "justification_required"
	ReasonInternal             = "internal_error"
)

// ReasonCode maps an orchestrator error to its stable reason code.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ReasonAdmitted
	case errors.Is(err, ErrMissingTenantContext):
		return ReasonMissingTenantContext
	case errors.Is(err, &CapabilityDisabledError{}):
		return ReasonCapabilityDisabled
	case errors.Is(err, ErrIdentityNotFound):
		return ReasonIdentityNotFound
	case errors.Is(err, ErrInvalidQRToken):
		return ReasonInvalidQRToken
	case errors.Is(err, ErrNoActiveEntitlement):
		return ReasonNoActiveEntitlement
	case errors.Is(err, ErrOutsideAllowedWindow):
		return ReasonOutsideAllowedWindow
	case errors.Is(err, &ReplayBlockedError{}):
		return ReasonReplayBlocked
	case errors.Is(err, ErrActorNotStaff):
		return ReasonActorNotStaff
	case errors.Is(err, ErrJustificationMissing):
		return ReasonJustification
	default:
		return ReasonInternal
	}
}

// RetryAfter extracts the remaining cooldown of a replay denial.
func RetryAfter(err error) (time.Duration, bool) {
	var rb *ReplayBlockedError
	if errors.As(err, &rb) {
		return rb.Remaining, true
	}
	return 0, false
}
