package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"motolucro/internal/amqp"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/sheets"
	sheetsmem "motolucro/internal/sheets/memory"
	"motolucro/internal/storage/memory"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

type failingJournal struct{}

func (failingJournal) Append(context.Context, sheets.Entry) error { return errors.New("quota exceeded") }

type fakeConsumer struct {
	events []amqp.TransactionEvent
	errs   []error
}

func (f *fakeConsumer) ConsumeTransactionEvents(ctx context.Context, prefetch int, handler amqp.Handler) error {
	for _, ev := range f.events {
		f.errs = append(f.errs, handler(ctx, ev))
	}
	return context.Canceled
}

func TestHandleEvent(t *testing.T) {
	journal := sheetsmem.New()
	w := NewExportWorker(journal, 5, quietLogger())

	ts := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	ev := amqp.TransactionEvent{Action: amqp.ActionUpdated, Transaction: core.Transaction{ID: "t1"}, Timestamp: ts}
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}

	got := journal.Entries()
	if len(got) != 1 || got[0].Action != "updated" || !got[0].Timestamp.Equal(ts) {
		t.Fatalf("entries = %+v", got)
	}
	if s := w.Stats(); s.Processed != 1 || s.Failed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestHandleEventFailure(t *testing.T) {
	w := NewExportWorker(failingJournal{}, 1, quietLogger())
	err := w.HandleEvent(context.Background(), amqp.TransactionEvent{Action: amqp.ActionCreated, Transaction: core.Transaction{ID: "t1"}})
	if err == nil {
		t.Fatal("expected an error so the message is requeued")
	}
	if s := w.Stats(); s.Failed != 1 {
		t.Errorf("Failed = %d, want 1", s.Failed)
	}
}

func TestRun(t *testing.T) {
	journal := sheetsmem.New()
	w := NewExportWorker(journal, 0, quietLogger())
	consumer := &fakeConsumer{events: []amqp.TransactionEvent{
		{Action: amqp.ActionCreated, Transaction: core.Transaction{ID: "a"}},
		{Action: amqp.ActionDeleted, Transaction: core.Transaction{ID: "a"}},
	}}

	if err := w.Run(context.Background(), consumer); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v", err)
	}
	if n := len(journal.Entries()); n != 2 {
		t.Errorf("journal has %d entries, want 2", n)
	}
	if journal.Entries()[0].Timestamp.IsZero() {
		t.Error("missing timestamps should be filled in")
	}
}

func TestBackfill(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	if _, err := store.UpsertProfile(ctx, core.User{ID: "u1", GoalAmount: core.DefaultGoal}); err != nil {
		t.Fatal(err)
	}
	for i, d := range []int{1, 3, 2} {
		_, err := store.Create(ctx, core.Transaction{
			ID: string(rune('a' + i)), UserID: "u1", Type: core.Gain, Value: core.Money{Cents: 100},
			Date: time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	journal := sheetsmem.New()
	n, err := NewExportWorker(journal, 1, quietLogger()).Backfill(ctx, store)
	if err != nil || n != 3 {
		t.Fatalf("Backfill() = %d, %v", n, err)
	}
	entries := journal.Entries()
	if entries[0].Transaction.ID != "a" || entries[1].Transaction.ID != "c" || entries[2].Transaction.ID != "b" {
		t.Errorf("backfill order = %s,%s,%s, want a,c,b", entries[0].Transaction.ID, entries[1].Transaction.ID, entries[2].Transaction.ID)
	}
	if entries[0].Action != "snapshot" {
		t.Errorf("action = %q", entries[0].Action)
	}
}
