package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Capability string

const (
	CapPointOfSale     Capability = "pointOfSale"
	CapQRAccess        Capability = "qrAccess"
	CapGamification    Capability = "gamification"
	CapClassBooking    Capability = "classBooking"
	CapBiometricAccess Capability = "biometricAccess"
)

// AllCapabilities lists every key a resolved CapabilitySet carries.
var AllCapabilities = []Capability{
	CapPointOfSale,
	CapQRAccess,
	CapGamification,
	CapClassBooking,
	CapBiometricAccess,
}

func (c Capability) Valid() bool {
	for _, k := range AllCapabilities {
		if k == c {
			return true
		}
	}
	return false
}

// CapabilitySet is the effective, fully populated feature set of a tenant.
type CapabilitySet struct {
	PointOfSale     bool `json:"pointOfSale"`
	QRAccess        bool `json:"qrAccess"`
	Gamification    bool `json:"gamification"`
	ClassBooking    bool `json:"classBooking"`
	BiometricAccess bool `json:"biometricAccess"`
}

func (s CapabilitySet) Enabled(c Capability) bool {
	switch c {
	case CapPointOfSale:
		return s.PointOfSale
	case CapQRAccess:
		return s.QRAccess
	case CapGamification:
		return s.Gamification
	case CapClassBooking:
		return s.ClassBooking
	case CapBiometricAccess:
		return s.BiometricAccess
	default:
		return false
	}
}

// With returns a copy of s with capability c set to v. Unknown keys are a no-op.
func (s CapabilitySet) With(c Capability, v bool) CapabilitySet {
	switch c {
	case CapPointOfSale:
		s.PointOfSale = v
	case CapQRAccess:
		s.QRAccess = v
	case CapGamification:
		s.Gamification = v
	case CapClassBooking:
		s.ClassBooking = v
	case CapBiometricAccess:
		s.BiometricAccess = v
	}
	return s
}

// CapabilityOverrides is the tenant's stored override blob as it comes out of the
// database: arbitrary JSON, possibly holding unknown keys or non-boolean values.
type CapabilityOverrides map[string]any

// DecodeCapabilityOverrides never fails; a malformed blob yields no overrides.
func DecodeCapabilityOverrides(raw []byte) CapabilityOverrides {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

// ParseCapabilityOverrides is the strict write-time constructor: every key must be a
// known capability and every value a boolean.
func ParseCapabilityOverrides(raw map[string]any) (map[Capability]bool, error) {
	out := make(map[Capability]bool, len(raw))
	var bad []string
	for k, v := range raw {
		c := Capability(strings.TrimSpace(k))
		if !c.Valid() {
			bad = append(bad, fmt.Sprintf("unknown capability %q", k))
			continue
		}
		b, ok := v.(bool)
		if !ok {
			bad = append(bad, fmt.Sprintf("capability %q must be boolean", k))
			continue
		}
		out[c] = b
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return nil, fmt.Errorf("%w: %s", ErrInvalidSettings, strings.Join(bad, "; "))
	}
	return out, nil
}
