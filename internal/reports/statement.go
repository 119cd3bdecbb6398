// Package reports renders the PDF statement of a filtered transaction list.
package reports

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"

	"motolucro/internal/aggregate"
	"motolucro/internal/core"
)

// MaxRows caps the statement table; the totals always cover every row.
const MaxRows = 300

// Statement is what gets printed.
type Statement struct {
	Owner        string
	Period       string
	Transactions []core.Transaction
	GeneratedAt  time.Time
	Location     *time.Location
}

var colW = []float64{24, 24, 82, 32, 20}

// Render writes st as an A4 PDF to w.
func Render(w io.Writer, st Statement) error {
	loc := st.Location
	if loc == nil {
		loc = time.UTC
	}
	if st.GeneratedAt.IsZero() {
		st.GeneratedAt = time.Now()
	}
	totals := aggregate.TotalsOf(st.Transactions)
	count, signed := aggregate.CountAndSum(st.Transactions)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.SetAutoPageBreak(false, 14)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr("MotoLucro · Extrato"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, tr("Período: "+st.Period))
	pdf.Ln(5)
	pdf.Cell(0, 6, tr("Usuário: "+maskID(st.Owner)))
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	sumW := []float64{61, 61, 60}
	pdf.CellFormat(sumW[0], 10, "Entradas", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, tr("Saídas"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Lucro", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, core.FormatBRL(totals.Gains.Cents), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, core.FormatBRL(totals.Expenses.Cents), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, core.FormatBRL(totals.Net.Cents), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	tableHeader(pdf, tr)
	for i, tx := range st.Transactions {
		if i >= MaxRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, tr(fmt.Sprintf("… mais %d lançamentos não listados", len(st.Transactions)-MaxRows)), "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > 265 {
			pdf.AddPage()
			tableHeader(pdf, tr)
		}
		pdf.CellFormat(colW[0], 8, typeLabel(tx.Type), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 8, tx.Date.In(loc).Format("02/01/2006"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[2], 8, tr(trimTo(tx.Label(), 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 8, core.FormatBRL(tx.Signed()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 8, shortID(tx.ID), "1", 1, "C", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(colW[0]+colW[1]+colW[2], 8, tr(fmt.Sprintf("%d lançamentos", count)), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[3], 8, core.FormatBRL(signed), "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[4], 8, "", "1", 1, "C", true, 0, "")

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, tr("Gerado em "+st.GeneratedAt.In(loc).Format("02/01/2006 15:04")), "", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render statement: %w", err)
	}
	return nil
}

func tableHeader(pdf *gofpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)
	pdf.SetTextColor(20, 20, 20)
	pdf.CellFormat(colW[0], 8, "TIPO", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[1], 8, "DATA", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[2], 8, tr("DESCRIÇÃO"), "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[3], 8, "VALOR", "1", 0, "R", true, 0, "")
	pdf.CellFormat(colW[4], 8, "ID", "1", 1, "C", true, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(30, 30, 30)
}

func typeLabel(t core.TxType) string {
	if t == core.Gain {
		return "ENTRADA"
	}
	return "GASTO"
}

func shortID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func maskID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) <= 8 {
		return id
	}
	return id[:4] + "…" + id[len(id)-4:]
}

// trimTo cuts s to max runes, marking the cut with an ellipsis.
func trimTo(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max-1]) + "…"
}
