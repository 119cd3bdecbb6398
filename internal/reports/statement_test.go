package reports

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"motolucro/internal/core"
)

func TestRender(t *testing.T) {
	day := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		n    int
	}{
		{"empty", 0},
		{"one page", 5},
		{"page breaks", 60},
		{"truncated", MaxRows + 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := make([]core.Transaction, tt.n)
			for i := range list {
				typ := core.Gain
				if i%3 == 0 {
					typ = core.Expense
				}
				list[i] = core.Transaction{
					ID:       fmt.Sprintf("3f2c9a1e-%04d", i),
					Type:     typ,
					Value:    core.Money{Cents: int64(1000 + i)},
					Category: "Manutenção",
					Company:  "iFood",
					Date:     day.AddDate(0, 0, -i),
				}
			}

			var buf bytes.Buffer
			err := Render(&buf, Statement{
				Owner:        "a1b2c3d4-e5f6-7890",
				Period:       "01/01/2024 a 31/01/2024",
				Transactions: list,
				GeneratedAt:  day,
			})
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
				t.Errorf("output does not start with a PDF header")
			}
		})
	}
}

func TestTextHelpers(t *testing.T) {
	if got := trimTo("  Gasolina  ", 20); got != "Gasolina" {
		t.Errorf("trimTo short = %q", got)
	}
	if got := trimTo("Manutenção preventiva", 10); got != "Manutençã…" {
		t.Errorf("trimTo long = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
	if got := maskID("abcdefghijkl"); got != "abcd…ijkl" {
		t.Errorf("maskID = %q", got)
	}
	if got := maskID("short"); got != "short" {
		t.Errorf("maskID short = %q", got)
	}
}
