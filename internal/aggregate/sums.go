package aggregate

import (
	"github.com/shopspring/decimal"

	"motolucro/internal/core"
)

// Totals is the gains/expenses/net triple shown on summary cards. Net may
// be negative.
type Totals struct {
	Gains    core.Money `json:"gains"`
	Expenses core.Money `json:"expenses"`
	Net      core.Money `json:"net"`
}

// SumByType adds the values of every transaction of type t, in cents.
// Stored values never exceed core.MaxAmountCents, so the sums here and in
// TotalsOf and CountAndSum are exact for lists shorter than
// math.MaxInt64/core.MaxAmountCents (about 92 million) transactions.
func SumByType(list []core.Transaction, t core.TxType) int64 {
	var sum int64
	for _, tx := range list {
		if tx.Type == t {
			sum += tx.Value.Cents
		}
	}
	return sum
}

// NetOf is gains minus expenses, in cents.
func NetOf(list []core.Transaction) int64 {
	return SumByType(list, core.Gain) - SumByType(list, core.Expense)
}

// TotalsOf computes all three figures in a single pass.
func TotalsOf(list []core.Transaction) Totals {
	var t Totals
	for _, tx := range list {
		switch tx.Type {
		case core.Gain:
			t.Gains.Cents += tx.Value.Cents
		case core.Expense:
			t.Expenses.Cents += tx.Value.Cents
		}
	}
	t.Net.Cents = t.Gains.Cents - t.Expenses.Cents
	return t
}

// CountAndSum returns the history totals row: the number of transactions
// and their signed sum (gains positive, expenses negative), in cents.
func CountAndSum(list []core.Transaction) (int, int64) {
	var total int64
	for _, tx := range list {
		total += tx.Signed()
	}
	return len(list), total
}

// AverageValue is the mean unsigned value of list in reais. The boolean is
// false for an empty list.
func AverageValue(list []core.Transaction) (decimal.Decimal, bool) {
	if len(list) == 0 {
		return decimal.Zero, false
	}
	var sum int64
	for _, tx := range list {
		sum += tx.Value.Cents
	}
	return decimal.New(sum, -2).Div(decimal.NewFromInt(int64(len(list)))), true
}

// Breakdown groups values by label (company for gains, category for
// expenses) preserving first-seen order.
type Breakdown struct {
	Label string     `json:"label"`
	Total core.Money `json:"total"`
	Count int        `json:"count"`
}

func BreakdownByLabel(list []core.Transaction, t core.TxType) []Breakdown {
	idx := make(map[string]int)
	var out []Breakdown
	for _, tx := range list {
		if tx.Type != t {
			continue
		}
		label := tx.Label()
		if label == "" {
			label = "Outros"
		}
		i, ok := idx[label]
		if !ok {
			i = len(out)
			idx[label] = i
			out = append(out, Breakdown{Label: label})
		}
		out[i].Total.Cents += tx.Value.Cents
		out[i].Count++
	}
	return out
}
