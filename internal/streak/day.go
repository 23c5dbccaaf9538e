package streak

import "time"

const day = 24 * time.Hour

// Day returns the civil date of t in loc, expressed as midnight UTC. Civil dates in
// UTC have no DST transitions, so subtracting two of them always gives whole days.
func Day(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns to - from in whole civil days. Both must come from Day.
func DaysBetween(from, to time.Time) int {
	return int(to.Sub(from) / day)
}
