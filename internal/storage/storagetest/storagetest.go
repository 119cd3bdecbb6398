// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"motolucro/internal/core"
	"motolucro/internal/storage"
)

// Run exercises s through the storage.Store contract. s must be empty.
func Run(t *testing.T, s storage.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("transactions", func(t *testing.T) { testTransactions(ctx, t, s) })
	t.Run("users", func(t *testing.T) { testUsers(ctx, t, s) })
}

func testTransactions(ctx context.Context, t *testing.T, s storage.Store) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	fixtures := []core.Transaction{
		{ID: "tx-1", UserID: "u1", Type: core.Gain, Value: core.Money{Cents: 10000}, Company: "Uber Moto", Date: base},
		{ID: "tx-2", UserID: "u1", Type: core.Expense, Value: core.Money{Cents: 3000}, Category: "Combustível", Date: base.Add(time.Hour)},
		{ID: "tx-3", UserID: "u1", Type: core.Gain, Value: core.Money{Cents: 5000}, Company: "iFood", Date: base.Add(24 * time.Hour)},
		{ID: "tx-4", UserID: "u2", Type: core.Gain, Value: core.Money{Cents: 700}, Company: "Loggi", Date: base},
	}
	for _, tx := range fixtures {
		got, err := s.Create(ctx, tx)
		if err != nil {
			t.Fatalf("Create(%s): %v", tx.ID, err)
		}
		if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
			t.Fatalf("Create(%s) did not stamp timestamps: %+v", tx.ID, got)
		}
	}

	list, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	wantOrder := []string{"tx-3", "tx-2", "tx-1"}
	if len(list) != len(wantOrder) {
		t.Fatalf("List returned %d transactions, want %d", len(list), len(wantOrder))
	}
	for i, id := range wantOrder {
		if list[i].ID != id {
			t.Errorf("List[%d] = %s, want %s", i, list[i].ID, id)
		}
	}
	if !list[2].Date.Equal(base) || list[2].Value.Cents != 10000 || list[2].Company != "Uber Moto" {
		t.Errorf("round trip mismatch: %+v", list[2])
	}

	val := core.Money{Cents: 3500}
	cat := "Manutenção"
	updated, err := s.Update(ctx, "tx-2", core.TransactionPatch{Value: &val, Category: &cat})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Value.Cents != 3500 || updated.Category != "Manutenção" || updated.Type != core.Expense {
		t.Errorf("Update result = %+v", updated)
	}
	got, err := s.Get(ctx, "tx-2")
	if err != nil || got.Value.Cents != 3500 {
		t.Errorf("Get after update = %+v, %v", got, err)
	}

	if err := s.Delete(ctx, "tx-2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "tx-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get deleted = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "tx-2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := s.Update(ctx, "missing", core.TransactionPatch{Value: &val}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update missing = %v, want ErrNotFound", err)
	}

	empty, err := s.List(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("List(nobody) = %v, %v", empty, err)
	}
}

func testUsers(ctx context.Context, t *testing.T, s storage.Store) {
	if _, err := s.GetUser(ctx, "u1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetUser before insert = %v, want ErrNotFound", err)
	}

	u, err := s.UpsertProfile(ctx, core.User{ID: "u1", Email: "ana@example.com", GoalAmount: core.DefaultGoal})
	if err != nil {
		t.Fatalf("UpsertProfile insert: %v", err)
	}
	if u.GoalAmount != core.DefaultGoal {
		t.Errorf("GoalAmount = %v, want default", u.GoalAmount)
	}

	if _, err := s.SetGoal(ctx, "u1", core.Money{Cents: 50000}); err != nil {
		t.Fatalf("SetGoal: %v", err)
	}
	u, err = s.UpsertProfile(ctx, core.User{ID: "u1", Email: "ana@example.com", Name: "Ana", Phone: "11999990000"})
	if err != nil {
		t.Fatalf("UpsertProfile update: %v", err)
	}
	if u.Name != "Ana" || u.Phone != "11999990000" || u.GoalAmount.Cents != 50000 {
		t.Errorf("profile update = %+v", u)
	}

	if _, err := s.UpsertProfile(ctx, core.User{ID: "u2", Email: "bruno@example.com", GoalAmount: core.DefaultGoal}); err != nil {
		t.Fatalf("UpsertProfile u2: %v", err)
	}
	u, err = s.SetSuspended(ctx, "u2", true)
	if err != nil || !u.IsSuspended {
		t.Fatalf("SetSuspended = %+v, %v", u, err)
	}
	if _, err := s.SetSuspended(ctx, "ghost", true); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetSuspended missing = %v, want ErrNotFound", err)
	}
	if _, err := s.SetGoal(ctx, "ghost", core.Money{}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetGoal missing = %v, want ErrNotFound", err)
	}

	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("ListUsers returned %d users, want 2", len(users))
	}
	byID := map[string]core.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	if !byID["u2"].IsSuspended || byID["u1"].IsSuspended {
		t.Errorf("suspension flags = %+v", byID)
	}
}
