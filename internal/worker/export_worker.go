// Package worker mirrors transaction events into the spreadsheet journal.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"motolucro/internal/amqp"
	applog "motolucro/internal/log"
	"motolucro/internal/sheets"
	"motolucro/internal/storage"
)

// Consumer delivers transaction events to a handler until ctx ends.
type Consumer interface {
	ConsumeTransactionEvents(ctx context.Context, prefetch int, handler amqp.Handler) error
}

type ExportWorker struct {
	journal  sheets.JournalWriter
	logger   *applog.Logger
	prefetch int

	processed atomic.Int64
	failed    atomic.Int64
}

func NewExportWorker(journal sheets.JournalWriter, prefetch int, logger *applog.Logger) *ExportWorker {
	if prefetch < 1 {
		prefetch = 1
	}
	return &ExportWorker{
		journal:  journal,
		prefetch: prefetch,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandleEvent appends one journal row for ev.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev amqp.TransactionEvent) error {
	entry := sheets.Entry{
		Timestamp:   ev.Timestamp,
		Action:      string(ev.Action),
		Transaction: ev.Transaction,
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	if err := w.journal.Append(ctx, entry); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("append journal entry: %w", err)
	}
	w.processed.Add(1)

	w.logger.InfoContext(ctx, "Exported transaction event",
		applog.FieldAction, ev.Action,
		applog.FieldTransactionID, ev.Transaction.ID,
		applog.FieldUserID, ev.Transaction.UserID)
	return nil
}

// Run consumes events until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Export worker started", "prefetch", w.prefetch)
	err := consumer.ConsumeTransactionEvents(ctx, w.prefetch, w.HandleEvent)
	w.logger.InfoContext(ctx, "Export worker stopped",
		"processed", w.processed.Load(),
		"failed", w.failed.Load())
	return err
}

// Backfill writes a "snapshot" row for every stored transaction. It is
// used to seed an empty journal.
func (w *ExportWorker) Backfill(ctx context.Context, store storage.Store) (int, error) {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	now := time.Now().UTC()
	n := 0
	for _, u := range users {
		list, err := store.List(ctx, u.ID)
		if err != nil {
			return n, fmt.Errorf("list transactions of %s: %w", u.ID, err)
		}
		// oldest first so the journal reads chronologically
		for i := len(list) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				return n, err
			}
			if err := w.journal.Append(ctx, sheets.Entry{Timestamp: now, Action: "snapshot", Transaction: list[i]}); err != nil {
				return n, fmt.Errorf("append snapshot of %s: %w", list[i].ID, err)
			}
			n++
		}
	}
	w.logger.InfoContext(ctx, "Journal backfill complete", applog.FieldCount, n)
	return n, nil
}

type Stats struct {
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}

func (w *ExportWorker) Stats() Stats {
	return Stats{Processed: w.processed.Load(), Failed: w.failed.Load()}
}
