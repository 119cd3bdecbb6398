// Package sheets defines the append-only journal that mirrors transaction
// changes into a spreadsheet.
package sheets

import (
	"context"
	"time"

	"motolucro/internal/core"
)

// Columns of the journal, A through I.
var Header = []any{"timestamp", "action", "id", "user_id", "type", "value", "category", "company", "date"}

// Entry is one journal line.
type Entry struct {
	Timestamp   time.Time
	Action      string
	Transaction core.Transaction
}

// JournalWriter appends entries to the journal.
type JournalWriter interface {
	Append(ctx context.Context, e Entry) error
}

// Row renders e in column order. Times are shown in loc; the value is a
// number in reais so the sheet can sum it.
func Row(e Entry, loc *time.Location) []any {
	if loc == nil {
		loc = time.UTC
	}
	tx := e.Transaction
	return []any{
		e.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
		e.Action,
		tx.ID,
		tx.UserID,
		string(tx.Type),
		tx.Value.Decimal().InexactFloat64(),
		tx.Category,
		tx.Company,
		tx.Date.In(loc).Format("2006-01-02"),
	}
}
