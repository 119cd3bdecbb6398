package aggregate

import (
	"fmt"
	"time"

	"motolucro/internal/core"
)

// MaxSeriesDays caps the number of buckets in one chart. Longer spans are
// cut down to their most recent MaxSeriesDays days.
const MaxSeriesDays = 3 * 366

// Short pt-BR weekday names, indexed by time.Weekday.
var weekdayShort = [...]string{"dom.", "seg.", "ter.", "qua.", "qui.", "sex.", "sáb."}

// WeekdayShort returns the pt-BR abbreviation used on chart axes.
func WeekdayShort(d time.Weekday) string {
	return weekdayShort[d]
}

// DayBucket holds one calendar day of chart data.
type DayBucket struct {
	Day       string     `json:"day"`
	DayOfWeek string     `json:"day_of_week"`
	Date      string     `json:"date"`
	Entradas  core.Money `json:"entradas"`
	Saidas    core.Money `json:"saidas"`
	Lucro     core.Money `json:"lucro"`
}

// Series is the chart payload for one range.
type Series struct {
	Days    []DayBucket `json:"days"`
	Totals  Totals      `json:"totals"`
	HasData bool        `json:"has_data"`
}

type dayKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time, loc *time.Location) dayKey {
	y, m, d := t.In(loc).Date()
	return dayKey{y, m, d}
}

// Buckets produces one entry per calendar day from start to end inclusive,
// in start's location. Transactions falling on days outside the span are
// ignored. An end before start yields no buckets.
func Buckets(list []core.Transaction, start, end time.Time) []DayBucket {
	loc := start.Location()
	n := DaysBetween(start, end) + 1
	if n <= 0 {
		return []DayBucket{}
	}

	type sums struct{ gains, expenses int64 }
	byDay := make(map[dayKey]sums, len(list))
	for _, tx := range list {
		k := keyOf(tx.Date, loc)
		s := byDay[k]
		switch tx.Type {
		case core.Gain:
			s.gains += tx.Value.Cents
		case core.Expense:
			s.expenses += tx.Value.Cents
		}
		byDay[k] = s
	}

	y, m, d := start.Date()
	out := make([]DayBucket, 0, n)
	for i := 0; i < n; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, loc)
		s := byDay[keyOf(day, loc)]
		out = append(out, DayBucket{
			Day:       fmt.Sprintf("%02d/%02d", day.Day(), int(day.Month())),
			DayOfWeek: WeekdayShort(day.Weekday()),
			Date:      day.Format(time.DateOnly),
			Entradas:  core.Money{Cents: s.gains},
			Saidas:    core.Money{Cents: s.expenses},
			Lucro:     core.Money{Cents: s.gains - s.expenses},
		})
	}
	return out
}

// SeriesSpan picks the calendar days a chart covers for r. The unfiltered
// view spans the first to the last transaction day of list, falling back to
// the current month when list is empty. No span exceeds MaxSeriesDays.
func SeriesSpan(r Range, list []core.Transaction, now time.Time) (time.Time, time.Time) {
	start, end := seriesSpan(r, list, now)
	if DaysBetween(start, end) >= MaxSeriesDays {
		y, m, d := end.Date()
		start = time.Date(y, m, d-(MaxSeriesDays-1), 0, 0, 0, 0, end.Location())
	}
	return start, end
}

func seriesSpan(r Range, list []core.Transaction, now time.Time) (time.Time, time.Time) {
	loc := now.Location()
	switch {
	case r.Selector == Custom && r.Active():
		return StartOfDay(r.Start.In(loc)), StartOfDay(r.End.In(loc))
	case r.Selector == Week:
		return StartOfDay(now.Add(-7 * 24 * time.Hour)), StartOfDay(now)
	case r.Selector == Month:
		return StartOfMonth(now), StartOfDay(EndOfMonth(now))
	}
	if len(list) == 0 {
		return StartOfMonth(now), StartOfDay(EndOfMonth(now))
	}
	first, last := list[0].Date, list[0].Date
	for _, tx := range list[1:] {
		if tx.Date.Before(first) {
			first = tx.Date
		}
		if tx.Date.After(last) {
			last = tx.Date
		}
	}
	return StartOfDay(first.In(loc)), StartOfDay(last.In(loc))
}

// BuildSeries filters list by r and buckets the result by day. The bucket
// nets always add up to Totals.Net. When the span was capped, transactions
// before its first day count in neither.
func BuildSeries(list []core.Transaction, r Range, now time.Time) Series {
	filtered := InInterval(list, Resolve(r, now))
	start, end := SeriesSpan(r, filtered, now)
	if DaysBetween(start, end) >= 0 {
		filtered = InInterval(filtered, Interval{Start: start, End: EndOfDay(end), Bounded: true})
	}
	days := Buckets(filtered, start, end)

	s := Series{Days: days, Totals: TotalsOf(filtered)}
	for _, b := range days {
		if b.Entradas.Cents != 0 || b.Saidas.Cents != 0 {
			s.HasData = true
			break
		}
	}
	return s
}
