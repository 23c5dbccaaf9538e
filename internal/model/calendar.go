package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MonthDay is a recurring calendar date, e.g. 12-25 every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

func (md MonthDay) String() string { return fmt.Sprintf("%02d-%02d", int(md.Month), md.Day) }

// ParseMonthDay accepts "MM-DD". February 29 is valid (it only matches in leap years).
func ParseMonthDay(s string) (MonthDay, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || len(parts[0]) != 2 || len(parts[1]) != 2 {
		return MonthDay{}, fmt.Errorf("holiday %q: want MM-DD", s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil || m < 1 || m > 12 {
		return MonthDay{}, fmt.Errorf("holiday %q: bad month", s)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil || d < 1 {
		return MonthDay{}, fmt.Errorf("holiday %q: bad day", s)
	}
	// 2024 is a leap year, so Feb 29 passes and Feb 30 does not.
	if day := time.Date(2024, time.Month(m), d, 0, 0, 0, 0, time.UTC); day.Day() != d {
		return MonthDay{}, fmt.Errorf("holiday %q: day out of range", s)
	}
	return MonthDay{Month: time.Month(m), Day: d}, nil
}

// ClosedCalendar is the set of days a tenant's facility does not open.
type ClosedCalendar struct {
	weekdays map[time.Weekday]struct{}
	holidays map[MonthDay]struct{}
}

type calendarJSON struct {
	Weekdays []int    `json:"weekdays"`
	Holidays []string `json:"holidays"`
}

// NewClosedCalendar validates weekdays (0=Sunday … 6=Saturday) and MM-DD holidays.
func NewClosedCalendar(weekdays []int, holidays []string) (ClosedCalendar, error) {
	c := ClosedCalendar{
		weekdays: make(map[time.Weekday]struct{}, len(weekdays)),
		holidays: make(map[MonthDay]struct{}, len(holidays)),
	}
	for _, w := range weekdays {
		if w < 0 || w > 6 {
			return ClosedCalendar{}, fmt.Errorf("%w: weekday %d out of range 0-6", ErrInvalidSettings, w)
		}
		c.weekdays[time.Weekday(w)] = struct{}{}
	}
	for _, h := range holidays {
		md, err := ParseMonthDay(h)
		if err != nil {
			return ClosedCalendar{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		c.holidays[md] = struct{}{}
	}
	return c, nil
}

// DecodeClosedCalendar reads a stored blob, skipping entries that would not pass
// NewClosedCalendar. Stored settings are validated on write, so this only matters for
// rows written before validation existed.
func DecodeClosedCalendar(raw []byte) ClosedCalendar {
	c := ClosedCalendar{}
	if len(raw) == 0 {
		return c
	}
	var j calendarJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return c
	}
	for _, w := range j.Weekdays {
		if cc, err := NewClosedCalendar([]int{w}, nil); err == nil {
			c = c.merge(cc)
		}
	}
	for _, h := range j.Holidays {
		if cc, err := NewClosedCalendar(nil, []string{h}); err == nil {
			c = c.merge(cc)
		}
	}
	return c
}

func (c ClosedCalendar) merge(o ClosedCalendar) ClosedCalendar {
	if c.weekdays == nil {
		c.weekdays = map[time.Weekday]struct{}{}
	}
	if c.holidays == nil {
		c.holidays = map[MonthDay]struct{}{}
	}
	for w := range o.weekdays {
		c.weekdays[w] = struct{}{}
	}
	for h := range o.holidays {
		c.holidays[h] = struct{}{}
	}
	return c
}

// IsClosed reports whether the given civil day is a closed weekday or recurring holiday.
func (c ClosedCalendar) IsClosed(day time.Time) bool {
	if _, ok := c.weekdays[day.Weekday()]; ok {
		return true
	}
	_, ok := c.holidays[MonthDay{Month: day.Month(), Day: day.Day()}]
	return ok
}

func (c ClosedCalendar) Empty() bool { return len(c.weekdays) == 0 && len(c.holidays) == 0 }

func (c ClosedCalendar) MarshalJSON() ([]byte, error) {
	j := calendarJSON{Weekdays: []int{}, Holidays: []string{}}
	for w := range c.weekdays {
		j.Weekdays = append(j.Weekdays, int(w))
	}
	for h := range c.holidays {
		j.Holidays = append(j.Holidays, h.String())
	}
	sort.Ints(j.Weekdays)
	sort.Strings(j.Holidays)
	return json.Marshal(j)
}

// UnmarshalJSON is strict: an invalid entry fails the whole document.
func (c *ClosedCalendar) UnmarshalJSON(b []byte) error {
	var j calendarJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return fmt.Errorf("%w: closed calendar: %v", ErrInvalidSettings, err)
	}
	cc, err := NewClosedCalendar(j.Weekdays, j.Holidays)
	if err != nil {
		return err
	}
	*c = cc
	return nil
}
