package aggregate

import (
	"fmt"
	"strings"
	"time"

	"motolucro/internal/core"
)

const (
	AnyType     TypeFilter = "all"
	GainsOnly   TypeFilter = "gain"
	ExpenseOnly TypeFilter = "expense"
)

// AnySubtype disables the category/company predicate.
const AnySubtype = "all"

// TypeFilter restricts a listing to one transaction type.
type TypeFilter string

func ParseTypeFilter(s string) (TypeFilter, error) {
	switch tf := TypeFilter(strings.ToLower(strings.TrimSpace(s))); tf {
	case "":
		return AnyType, nil
	case AnyType, GainsOnly, ExpenseOnly:
		return tf, nil
	default:
		return "", fmt.Errorf("unknown type filter %q", s)
	}
}

// Matches reports whether a transaction of type t passes the filter.
func (f TypeFilter) Matches(t core.TxType) bool {
	switch f {
	case GainsOnly:
		return t == core.Gain
	case ExpenseOnly:
		return t == core.Expense
	default:
		return true
	}
}

// Criteria is a fully resolved filter.
type Criteria struct {
	Interval Interval
	Type     TypeFilter
	Subtype  string
}

// Match applies every predicate of c to one transaction.
func (c Criteria) Match(tx core.Transaction) bool {
	if !c.Interval.Contains(tx.Date) {
		return false
	}
	if !c.Type.Matches(tx.Type) {
		return false
	}
	return matchSubtype(c.Type, c.Subtype, tx)
}

// Filter returns the transactions matching c in their original order.
// The input slice is never modified.
func Filter(list []core.Transaction, c Criteria) []core.Transaction {
	out := make([]core.Transaction, 0, len(list))
	for _, tx := range list {
		if c.Match(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// InInterval is Filter with only the date predicate.
func InInterval(list []core.Transaction, iv Interval) []core.Transaction {
	return Filter(list, Criteria{Interval: iv, Type: AnyType})
}

// OfType is Filter with only the type predicate.
func OfType(list []core.Transaction, t core.TxType) []core.Transaction {
	return Filter(list, Criteria{Interval: Unbounded, Type: TypeFilter(t)})
}

// matchSubtype does a case-insensitive substring match of term against the
// company of gains or the category of expenses. With no type filter either
// label may match.
func matchSubtype(tf TypeFilter, term string, tx core.Transaction) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || term == AnySubtype {
		return true
	}
	switch tf {
	case GainsOnly:
		return strings.Contains(strings.ToLower(tx.Company), term)
	case ExpenseOnly:
		return strings.Contains(strings.ToLower(tx.Category), term)
	default:
		return strings.Contains(strings.ToLower(tx.Category), term) ||
			strings.Contains(strings.ToLower(tx.Company), term)
	}
}

// FilterState is the user-facing selector state of a history view.
// Changing the type filter always resets the subtype, so a category chosen
// for expenses never lingers once gains are selected.
type FilterState struct {
	Range   Range
	Type    TypeFilter
	Subtype string
}

// NewFilterState returns the state a freshly opened view starts with.
func NewFilterState() FilterState {
	return FilterState{Range: Range{Selector: All}, Type: AnyType, Subtype: AnySubtype}
}

// SetType switches the type filter and resets the subtype to AnySubtype.
func (s *FilterState) SetType(t TypeFilter) {
	s.Type = t
	s.Subtype = AnySubtype
}

func (s *FilterState) SetSubtype(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		term = AnySubtype
	}
	s.Subtype = term
}

func (s *FilterState) SetRange(r Range) {
	s.Range = r
}

// Criteria resolves the state against now.
func (s FilterState) Criteria(now time.Time) Criteria {
	tf := s.Type
	if tf == "" {
		tf = AnyType
	}
	return Criteria{Interval: Resolve(s.Range, now), Type: tf, Subtype: s.Subtype}
}

// Apply filters list with the resolved state.
func (s FilterState) Apply(list []core.Transaction, now time.Time) []core.Transaction {
	return Filter(list, s.Criteria(now))
}
