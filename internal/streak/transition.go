package streak

import "time"

// State is the identity-side input to Transition.
type State struct {
	CurrentStreak  int
	LastCreditDate *time.Time // civil date from Day, nil if never credited
	FreezeUntil    *time.Time
}

// Result is the outcome of one transition.
type Result struct {
	NewStreak         int
	Credited          bool
	NewLastCreditDate *time.Time
	ClearFreeze       bool

	// Changed is false only when nothing about the streak needs writing.
	Changed bool
	// Reset is set when an existing streak was broken and restarted at 1.
	Reset     bool
	Exception Exception
}

// Transition computes the next streak state for an entry at now. It has no side effects.
func Transition(s State, now time.Time, rules TenantRules) Result {
	today := Day(now, rules.Location)

	if s.LastCreditDate == nil {
		return credit(1, today)
	}

	last := *s.LastCreditDate
	diff := DaysBetween(last, today)

	switch {
	case diff <= 0:
		// Same day, or a last credit date ahead of the clock: never double-count.
		return Result{NewStreak: s.CurrentStreak, NewLastCreditDate: s.LastCreditDate}
	case diff == 1:
		return credit(s.CurrentStreak+1, today)
	case s.CurrentStreak <= 0:
		// Nothing left to preserve; the sweep already zeroed this streak.
		return credit(1, today)
	}

	exc := EvaluateExceptions(last, today, now, s.FreezeUntil, rules)
	if exc != ExceptionNone {
		// A freeze in force is spent on this gap even when another rule is reported.
		frozen := s.FreezeUntil != nil && !now.After(*s.FreezeUntil)
		return Result{
			NewStreak:         s.CurrentStreak,
			NewLastCreditDate: &today,
			ClearFreeze:       frozen,
			Changed:           true,
			Exception:         exc,
		}
	}

	r := credit(1, today)
	r.Reset = true
	return r
}

// WouldReset reports whether an entry at now would break the identity's streak. This is
// the nightly sweep's decision and is defined through Transition so the two never drift.
func WouldReset(s State, now time.Time, rules TenantRules) bool {
	return Transition(s, now, rules).Reset
}

func credit(n int, today time.Time) Result {
	return Result{NewStreak: n, Credited: true, NewLastCreditDate: &today, Changed: true}
}
