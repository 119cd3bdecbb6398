package aggregate

import (
	"time"

	"github.com/shopspring/decimal"

	"motolucro/internal/core"
)

// PeriodSummary mirrors the dashboard cards.
type PeriodSummary struct {
	Today   Totals `json:"today"`
	Month   Totals `json:"month"`
	AllTime Totals `json:"all_time"`
}

// Summarize computes today, month-to-date and all-time totals relative to now.
func Summarize(list []core.Transaction, now time.Time) PeriodSummary {
	today := Interval{Start: StartOfDay(now), End: EndOfDay(now), Bounded: true}
	month := Resolve(Range{Selector: Month}, now)
	return PeriodSummary{
		Today:   TotalsOf(InInterval(list, today)),
		Month:   TotalsOf(InInterval(list, month)),
		AllTime: TotalsOf(list),
	}
}

// GoalProgress describes how far the user's net is from the goal.
type GoalProgress struct {
	Goal      core.Money `json:"goal"`
	Current   core.Money `json:"current"`
	Remaining core.Money `json:"remaining"`
	Percent   float64    `json:"percent"`
	Reached   bool       `json:"reached"`
}

// Progress clamps a negative net to zero and caps the percentage at 100.
// A zero goal reports 0%.
func Progress(net int64, goal core.Money) GoalProgress {
	current := net
	if current < 0 {
		current = 0
	}
	p := GoalProgress{Goal: goal, Current: core.Money{Cents: current}}
	if rem := goal.Cents - current; rem > 0 {
		p.Remaining.Cents = rem
	}
	if goal.Cents <= 0 {
		return p
	}

	hundred := decimal.NewFromInt(100)
	pct := decimal.NewFromInt(current).Mul(hundred).Div(decimal.NewFromInt(goal.Cents))
	if pct.GreaterThan(hundred) {
		pct = hundred
	}
	p.Percent = pct.Round(1).InexactFloat64()
	p.Reached = current >= goal.Cents
	return p
}
