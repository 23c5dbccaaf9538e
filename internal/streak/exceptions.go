package streak

import (
	"time"

	"github.com/herwingx/nexogym-sub000/internal/model"
)

// DefaultReactivationGrace is how long after a tenant comes back from suspension its
// members' streaks are protected.
const DefaultReactivationGrace = 7 * day

// Exception names the rule that preserved a streak across a gap.
type Exception int

const (
	ExceptionNone Exception = iota
	ExceptionTenantReactivated
	ExceptionIdentityFrozen
	ExceptionGapDaysClosed
)

func (e Exception) String() string {
	switch e {
	case ExceptionTenantReactivated:
		return "tenant_reactivated"
	case ExceptionIdentityFrozen:
		return "identity_frozen"
	case ExceptionGapDaysClosed:
		return "gap_days_closed"
	default:
		return "none"
	}
}

// TenantRules is the tenant-side input to the exception rules.
type TenantRules struct {
	Calendar          model.ClosedCalendar
	LastReactivatedAt *time.Time
	ReactivationGrace time.Duration
	Location          *time.Location
}

// RulesFor builds TenantRules from a tenant row. grace <= 0 means DefaultReactivationGrace.
func RulesFor(t *model.Tenant, grace time.Duration) TenantRules {
	return TenantRules{
		Calendar:          t.Calendar,
		LastReactivatedAt: t.LastReactivatedAt,
		ReactivationGrace: grace,
		Location:          t.Location(),
	}
}

// EvaluateExceptions checks, in order, the three rules that keep a streak alive across a
// gap of more than one day between lastCredit and today (both civil dates from Day).
// The first rule that holds is returned.
func EvaluateExceptions(lastCredit, today, now time.Time, freezeUntil *time.Time, rules TenantRules) Exception {
	grace := rules.ReactivationGrace
	if grace <= 0 {
		grace = DefaultReactivationGrace
	}
	if r := rules.LastReactivatedAt; r != nil && !now.Before(*r) && now.Sub(*r) <= grace {
		return ExceptionTenantReactivated
	}
	if freezeUntil != nil && !now.After(*freezeUntil) {
		return ExceptionIdentityFrozen
	}
	if allGapDaysClosed(lastCredit, today, rules.Calendar) {
		return ExceptionGapDaysClosed
	}
	return ExceptionNone
}

// allGapDaysClosed is false when there are no days strictly between from and to.
func allGapDaysClosed(from, to time.Time, cal model.ClosedCalendar) bool {
	if cal.Empty() {
		return false
	}
	gap := 0
	for d := from.Add(day); d.Before(to); d = d.Add(day) {
		if !cal.IsClosed(d) {
			return false
		}
		gap++
	}
	return gap > 0
}
