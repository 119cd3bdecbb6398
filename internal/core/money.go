// Package core holds the MotoLucro domain types and money handling.
//
// Amounts are kept as integer cents. Decimal text comes from users typing
// Brazilian-formatted values ("12,50") as well as JSON numbers ("12.5").
package core

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

type Money struct {
	Cents int64
}

// MaxAmountCents (R$ 1 bilhão) is the largest amount a single transaction
// or goal may carry. At this ceiling int64 sums stay exact for more than
// 92 million transactions.
const MaxAmountCents int64 = 100_000_000_000

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// ParseDecimalToCents converts a decimal string to cents with half-up
// rounding on the third decimal place.
//
// Both dot (12.34) and comma (12,34) separators are accepted. When a comma
// is present, dots are read as thousands separators ("1.234,56").
// Negative, zero and values above MaxAmountCents are rejected.
//
// Examples:
//
//	ParseDecimalToCents("12.34")    -> 1234, nil
//	ParseDecimalToCents("12,34")    -> 1234, nil
//	ParseDecimalToCents("1.234,56") -> 123456, nil
//	ParseDecimalToCents("12,345")   -> 1235, nil (rounds up)
func ParseDecimalToCents(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	if strings.Contains(s, ",") {
		// pt-BR: dots group thousands, the comma is the decimal mark
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if iv > MaxAmountCents/100 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	cents := iv*100 + fracCents
	if cents <= 0 || cents > MaxAmountCents {
		return 0, ErrInvalidAmount
	}
	return cents, nil
}

// Validate accepts amounts in (0, MaxAmountCents].
func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the amount in reais.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount with two decimals and a dot separator.
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON writes the amount as a JSON number in reais (12.50).
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts a JSON number (12.5) or a string ("12,50").
// Numbers keep their sign since nets and signed totals round-trip through
// it; strings are user input and must be positive. Callers run Validate
// (or ValidateGoal) on input amounts.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("%w: null", ErrInvalidAmount)
	}
	if len(data) > 0 && data[0] == '"' {
		raw, err := strconv.Unquote(string(data))
		if err != nil {
			return ErrInvalidAmount
		}
		if strings.TrimSpace(raw) == "0" {
			m.Cents = 0
			return nil
		}
		cents, err := ParseDecimalToCents(raw)
		if err != nil {
			return err
		}
		m.Cents = cents
		return nil
	}
	d, err := decimal.NewFromString(string(data))
	if err != nil {
		return ErrInvalidAmount
	}
	c := d.Shift(2).Round(0)
	if c.LessThan(minCents) || c.GreaterThan(maxCents) {
		return fmt.Errorf("%w: out of range", ErrInvalidAmount)
	}
	m.Cents = c.IntPart()
	return nil
}

// FromDecimal converts a reais amount to Money, rounding half away from
// zero. Amounts outside the int64 range saturate.
func FromDecimal(d decimal.Decimal) Money {
	c := d.Shift(2).Round(0)
	switch {
	case c.LessThan(minCents):
		return Money{Cents: math.MinInt64}
	case c.GreaterThan(maxCents):
		return Money{Cents: math.MaxInt64}
	}
	return Money{Cents: c.IntPart()}
}

// FormatBRL formats cents as Brazilian reais ("R$ 1.234,56").
func FormatBRL(cents int64) string {
	neg := cents < 0
	if neg {
		cents = -cents
	}
	digits := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	s := "R$ " + b.String() + "," + fmt.Sprintf("%02d", cents%100)
	if neg {
		return "-" + s
	}
	return s
}
