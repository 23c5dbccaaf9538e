package access

import "github.com/herwingx/nexogym-sub000/internal/model"

var tierDefaults = map[model.Tier]model.CapabilitySet{
	model.TierBasic: {
		PointOfSale: true,
	},
	model.TierProQR: {
		PointOfSale:  true,
		QRAccess:     true,
		Gamification: true,
		ClassBooking: true,
	},
	model.TierPremiumBio: {
		PointOfSale:     true,
		QRAccess:        true,
		Gamification:    true,
		ClassBooking:    true,
		BiometricAccess: true,
	},
}

// TierDefaults returns the fixed capability set of a tier. Unknown tiers get Basic.
func TierDefaults(t model.Tier) model.CapabilitySet {
	if set, ok := tierDefaults[t]; ok {
		return set
	}
	return tierDefaults[model.TierBasic]
}

// ResolveCapabilities overlays well-typed boolean overrides on the tier defaults.
// Unknown keys and non-boolean values are dropped; this never fails.
func ResolveCapabilities(tier model.Tier, overrides model.CapabilityOverrides) model.CapabilitySet {
	set := TierDefaults(tier)
	for k, v := range overrides {
		c := model.Capability(k)
		if !c.Valid() {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			continue
		}
		set = set.With(c, b)
	}
	return set
}

// TenantCapabilities resolves the effective capability set of a tenant.
func TenantCapabilities(t *model.Tenant) model.CapabilitySet {
	return ResolveCapabilities(t.Tier, t.Overrides)
}
