package model

import "time"

type EntitlementStatus string

const (
	EntitlementActive         EntitlementStatus = "active"
	EntitlementExpired        EntitlementStatus = "expired"
	EntitlementFrozen         EntitlementStatus = "frozen"
	EntitlementCanceled       EntitlementStatus = "canceled"
	EntitlementPendingPayment EntitlementStatus = "pending_payment"
)

func (s EntitlementStatus) Valid() bool {
	switch s {
	case EntitlementActive, EntitlementExpired, EntitlementFrozen, EntitlementCanceled, EntitlementPendingPayment:
		return true
	}
	return false
}

// Entitlement is a subscription granting entry until ExpiresAt.
type Entitlement struct {
	ID                  int64             `db:"id"`
	IdentityID          int64             `db:"identity_id"`
	TenantID            int64             `db:"tenant_id"`
	Status              EntitlementStatus `db:"status"`
	ExpiresAt           time.Time         `db:"expires_at"`
	WindowStartMin      *int              `db:"window_start_min"` // minutes after local midnight
	WindowEndMin        *int              `db:"window_end_min"`
	FrozenDaysRemaining *int              `db:"frozen_days_remaining"`
	CreatedAt           time.Time         `db:"created_at"`
}

// TimeWindow is an inclusive [Start, End] range of minutes of the local day.
// Start > End wraps past midnight.
type TimeWindow struct {
	Start int
	End   int
}

func (w TimeWindow) Contains(minute int) bool {
	if w.Start <= w.End {
		return minute >= w.Start && minute <= w.End
	}
	return minute >= w.Start || minute <= w.End
}

// Window returns the allowed time-of-day window, or nil when access is all day.
func (e *Entitlement) Window() *TimeWindow {
	if e.WindowStartMin == nil || e.WindowEndMin == nil {
		return nil
	}
	return &TimeWindow{Start: *e.WindowStartMin, End: *e.WindowEndMin}
}
