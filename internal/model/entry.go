package model

import (
	"strings"
	"time"
)

type AccessMethod string

const (
	MethodManual    AccessMethod = "manual"
	MethodQR        AccessMethod = "qr"
	MethodBiometric AccessMethod = "biometric"
)

func (m AccessMethod) String() string { return string(m) }

// ParseAccessMethod normalizes input; empty => manual.
func ParseAccessMethod(s string) (AccessMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "manual":
		return MethodManual, true
	case "qr":
		return MethodQR, true
	case "biometric":
		return MethodBiometric, true
	default:
		return MethodManual, false
	}
}

// RequiredCapability is the capability that must be enabled for this method, if any.
func (m AccessMethod) RequiredCapability() (Capability, bool) {
	switch m {
	case MethodQR:
		return CapQRAccess, true
	case MethodBiometric:
		return CapBiometricAccess, true
	default:
		return "", false
	}
}

type AccessClass string

const (
	ClassRegular  AccessClass = "regular"
	ClassCourtesy AccessClass = "courtesy"
)

// EntryRecord is the append-only log of admissions. Rows are never updated.
type EntryRecord struct {
	ID            string       `db:"id"            json:"id"`
	TenantID      int64        `db:"tenant_id"     json:"tenant_id"`
	IdentityID    int64        `db:"identity_id"   json:"identity_id"`
	At            time.Time    `db:"entered_at"    json:"entered_at"`
	Method        AccessMethod `db:"method"        json:"method"`
	Class         AccessClass  `db:"class"         json:"class"`
	ActorID       *int64       `db:"actor_id"      json:"actor_id,omitempty"`
	Justification *string      `db:"justification" json:"justification,omitempty"`
}
