package model

import "strings"

// Tier is the tenant's subscription plan. Tiers are ordered: Basic < ProQR < PremiumBio.
type Tier int

const (
	TierBasic Tier = iota
	TierProQR
	TierPremiumBio
)

func (t Tier) String() string {
	switch t {
	case TierProQR:
		return "pro_qr"
	case TierPremiumBio:
		return "premium_bio"
	default:
		return "basic"
	}
}

// ParseTier normalizes input; unknown values map to (basic, false).
func ParseTier(s string) (Tier, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "basic":
		return TierBasic, true
	case "pro_qr", "proqr":
		return TierProQR, true
	case "premium_bio", "premiumbio":
		return TierPremiumBio, true
	default:
		return TierBasic, false
	}
}

// AtLeast reports whether t is the same as or above other.
func (t Tier) AtLeast(other Tier) bool { return t >= other }
