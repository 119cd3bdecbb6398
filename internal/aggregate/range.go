// Package aggregate filters and reduces transaction snapshots into the
// figures shown on every MotoLucro view: summary cards, daily/monthly
// stats, the day-bucketed chart, the history list and its totals row.
//
// All functions are pure. They never mutate their input slices and never
// perform I/O; the caller hands in a snapshot and a reference "now" whose
// location defines the user's calendar days.
package aggregate

import (
	"fmt"
	"strings"
	"time"
)

const (
	All    Selector = "all"
	Week   Selector = "week"
	Month  Selector = "month"
	Custom Selector = "custom"
)

// Selector names a date-range preset.
type Selector string

// ParseSelector maps user input to a Selector. Empty input means All.
func ParseSelector(s string) (Selector, error) {
	switch sel := Selector(strings.ToLower(strings.TrimSpace(s))); sel {
	case "":
		return All, nil
	case All, Week, Month, Custom:
		return sel, nil
	default:
		return "", fmt.Errorf("unknown date filter %q", s)
	}
}

// Range is a selector plus the bounds used by Custom. A zero Start or End
// means the bound was not supplied.
type Range struct {
	Selector Selector
	Start    time.Time
	End      time.Time
}

// Interval is a concrete inclusive time interval. An unbounded interval
// contains every instant.
type Interval struct {
	Start   time.Time
	End     time.Time
	Bounded bool
}

// Unbounded is the identity filter interval.
var Unbounded = Interval{}

// Contains reports whether t falls inside the interval, bounds included.
func (iv Interval) Contains(t time.Time) bool {
	if !iv.Bounded {
		return true
	}
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// RangeResolver is the strategy for turning one selector into an interval.
type RangeResolver interface {
	Resolve(r Range, now time.Time) Interval
}

// WeekResolver covers the rolling 7×24h window ending now.
type WeekResolver struct{}

func (WeekResolver) Resolve(_ Range, now time.Time) Interval {
	return Interval{Start: now.Add(-7 * 24 * time.Hour), End: now, Bounded: true}
}

// MonthResolver covers the first day of the current month through the end
// of the current day.
type MonthResolver struct{}

func (MonthResolver) Resolve(_ Range, now time.Time) Interval {
	return Interval{Start: StartOfMonth(now), End: EndOfDay(now), Bounded: true}
}

// CustomResolver uses the caller bounds, extending End to the last
// millisecond of its day. A half-specified range is not active yet and
// resolves to Unbounded.
type CustomResolver struct{}

func (CustomResolver) Resolve(r Range, now time.Time) Interval {
	if r.Start.IsZero() || r.End.IsZero() {
		return Unbounded
	}
	return Interval{Start: r.Start, End: EndOfDay(r.End.In(now.Location())), Bounded: true}
}

// AllResolver applies no bound.
type AllResolver struct{}

func (AllResolver) Resolve(Range, time.Time) Interval {
	return Unbounded
}

var rangeResolvers = map[Selector]RangeResolver{
	All:    AllResolver{},
	Week:   WeekResolver{},
	Month:  MonthResolver{},
	Custom: CustomResolver{},
}

// Resolve produces the concrete interval for r relative to now. Unknown
// selectors resolve to Unbounded.
func Resolve(r Range, now time.Time) Interval {
	res, ok := rangeResolvers[r.Selector]
	if !ok {
		return Unbounded
	}
	return res.Resolve(r, now)
}

// Active reports whether the range filters anything at all.
func (r Range) Active() bool {
	switch r.Selector {
	case Week, Month:
		return true
	case Custom:
		return !r.Start.IsZero() && !r.End.IsZero()
	default:
		return false
	}
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfMonth returns midnight of the first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// EndOfMonth returns 23:59:59.999 of the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return EndOfDay(time.Date(y, m+1, 0, 0, 0, 0, 0, t.Location()))
}

// DaysBetween counts calendar days from start to end, so that a series
// over the span has DaysBetween(start, end)+1 entries. It is negative when
// end falls on an earlier day. Both dates are read in start's location.
func DaysBetween(start, end time.Time) int {
	sy, sm, sd := start.Date()
	ey, em, ed := end.In(start.Location()).Date()
	return civilDays(ey, em, ed) - civilDays(sy, sm, sd)
}

// civilDays numbers proleptic Gregorian dates, 1970-01-01 being 0. Integer
// arithmetic only, so any pair of dates time.Time can hold is exact.
func civilDays(y int, m time.Month, d int) int {
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (int(m) + 9) % 12 // March is 0
	doy := (153*mp+2)/5 + d - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}
