package model

import "time"

const TenantStatusActive = "active"

// Tenant is a facility operator. Settings blobs are decoded leniently on read.
type Tenant struct {
	ID                int64
	Name              string
	APIKey            string
	DeviceSecretHash  string
	Status            string // active|suspended
	Tier              Tier
	Overrides         CapabilityOverrides
	Rewards           RewardSchedule
	Calendar          ClosedCalendar
	Timezone          string
	LastReactivatedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (t *Tenant) Active() bool { return t != nil && t.Status == TenantStatusActive }

// Location returns the tenant's configured zone, falling back to UTC.
func (t *Tenant) Location() *time.Location {
	if t == nil || t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TenantSettings is the validated write-side shape of a tenant's configuration.
type TenantSettings struct {
	Overrides map[Capability]bool `json:"overrides"`
	Rewards   RewardSchedule      `json:"rewards"`
	Calendar  ClosedCalendar      `json:"calendar"`
	Timezone  string              `json:"timezone"`
}
