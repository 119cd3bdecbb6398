package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"motolucro/internal/aggregate"
	"motolucro/internal/amqp"
	"motolucro/internal/cache"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/storage"
	"motolucro/internal/storage/memory"
)

func quietLogger() *applog.Logger {
	return applog.New(applog.Config{Output: io.Discard})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) actions() []amqp.Action {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.Action, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Action
	}
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) Notify(action string, tx core.Transaction) {
	n.mu.Lock()
	n.calls = append(n.calls, action+":"+tx.UserID)
	n.mu.Unlock()
}

// countingStore counts List calls and can fail them for one user.
type countingStore struct {
	*memory.Store
	mu       sync.Mutex
	lists    int
	failUser string
}

func (s *countingStore) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	s.lists++
	s.mu.Unlock()
	if userID == s.failUser {
		return nil, errors.New("disk on fire")
	}
	return s.Store.List(ctx, userID)
}

// stallingStore reads the list, then holds the first List call until
// release is closed.
type stallingStore struct {
	*memory.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (s *stallingStore) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	list, err := s.Store.List(ctx, userID)
	s.once.Do(func() {
		close(s.entered)
		<-s.release
	})
	return list, err
}

type fixture struct {
	store     *countingStore
	txs       *TransactionService
	users     *UserService
	admin     *AdminService
	publisher *recordingPublisher
	notifier  *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := &countingStore{Store: memory.New()}
	pub := &recordingPublisher{}
	notif := &recordingNotifier{}
	logger := quietLogger()

	txs := NewTransactionService(store, cache.NewLRUCache[[]core.Transaction](100, time.Minute), logger).
		WithPublisher(pub).
		WithNotifier(notif)
	ids := 0
	txs.newID = func() string { ids++; return "tx-" + string(rune('0'+ids)) }
	users := NewUserService(store, cache.NewLRUCache[core.User](100, time.Minute), logger)

	return &fixture{
		store:     store,
		txs:       txs,
		users:     users,
		admin:     NewAdminService(users, txs, logger),
		publisher: pub,
		notifier:  notif,
	}
}

func jan(d int) time.Time { return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC) }

func TestTransactionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.txs.Create(ctx, "u1", NewTransaction{
		Value: core.Money{Cents: 5000}, Type: core.Gain, Company: "  iFood ", Date: jan(2),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID != "tx-1" || created.Company != "iFood" || created.CreatedAt.IsZero() {
		t.Errorf("created = %+v", created)
	}

	value := core.Money{Cents: 7000}
	updated, err := f.txs.Update(ctx, "u1", created.ID, core.TransactionPatch{Value: &value})
	if err != nil || updated.Value.Cents != 7000 {
		t.Fatalf("Update() = %+v, %v", updated, err)
	}

	if err := f.txs.Delete(ctx, "u1", created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := f.txs.Get(ctx, "u1", created.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() after delete error = %v", err)
	}

	want := []amqp.Action{amqp.ActionCreated, amqp.ActionUpdated, amqp.ActionDeleted}
	got := f.publisher.actions()
	if len(got) != len(want) {
		t.Fatalf("published %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}
	if len(f.notifier.calls) != 3 || f.notifier.calls[0] != "created:u1" {
		t.Errorf("notifications = %v", f.notifier.calls)
	}
}

func TestCreateDefaultsDateAndValidates(t *testing.T) {
	f := newFixture(t)
	now := jan(15)
	f.txs.now = func() time.Time { return now }

	tx, err := f.txs.Create(context.Background(), "u1", NewTransaction{Value: core.Money{Cents: 100}, Type: core.Expense, Category: "Gasolina"})
	if err != nil {
		t.Fatal(err)
	}
	if !tx.Date.Equal(now) {
		t.Errorf("Date = %v, want %v", tx.Date, now)
	}

	tests := []struct {
		name string
		in   NewTransaction
		want error
	}{
		{"zero value", NewTransaction{Type: core.Gain}, core.ErrInvalidAmount},
		{"bad type", NewTransaction{Value: core.Money{Cents: 1}, Type: "refund"}, core.ErrInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.txs.Create(context.Background(), "u1", tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(f.publisher.actions()); n != 1 {
		t.Errorf("published %d events, want 1", n)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	if _, err := f.txs.Create(context.Background(), "u1", NewTransaction{Value: core.Money{Cents: 100}, Type: core.Gain, Date: jan(1)}); err != nil {
		t.Fatalf("Create() error = %v, want nil despite publish failure", err)
	}
}

func TestOwnershipIsEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tx, err := f.txs.Create(ctx, "owner", NewTransaction{Value: core.Money{Cents: 100}, Type: core.Gain, Date: jan(1)})
	if err != nil {
		t.Fatal(err)
	}

	value := core.Money{Cents: 1}
	if _, err := f.txs.Update(ctx, "intruder", tx.ID, core.TransactionPatch{Value: &value}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update() by another user error = %v", err)
	}
	if err := f.txs.Delete(ctx, "intruder", tx.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete() by another user error = %v", err)
	}
	if _, err := f.txs.Get(ctx, "owner", tx.ID); err != nil {
		t.Errorf("owner lost the transaction: %v", err)
	}
}

func TestSnapshotCacheInvalidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.txs.Snapshot(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if f.store.lists != 1 {
		t.Fatalf("store.List called %d times, want 1", f.store.lists)
	}

	if _, err := f.txs.Create(ctx, "u1", NewTransaction{Value: core.Money{Cents: 100}, Type: core.Gain, Date: jan(1)}); err != nil {
		t.Fatal(err)
	}
	list, err := f.txs.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || f.store.lists != 2 {
		t.Errorf("after write: len = %d, lists = %d", len(list), f.store.lists)
	}
}

func TestSnapshotLoadedBeforeWriteIsNotCached(t *testing.T) {
	store := &stallingStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	txs := NewTransactionService(store, cache.NewLRUCache[[]core.Transaction](100, time.Minute), quietLogger())
	ctx := context.Background()

	done := make(chan []core.Transaction)
	go func() {
		list, err := txs.Snapshot(ctx, "u1")
		if err != nil {
			t.Error(err)
		}
		done <- list
	}()
	<-store.entered

	if _, err := txs.Create(ctx, "u1", NewTransaction{Value: core.Money{Cents: 100}, Type: core.Gain, Date: jan(1)}); err != nil {
		t.Fatal(err)
	}
	close(store.release)
	if stale := <-done; len(stale) != 0 {
		t.Fatalf("in-flight snapshot = %d transactions, want 0", len(stale))
	}

	list, err := txs.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("Snapshot() after write = %d transactions, want 1", len(list))
	}
}

func TestEnsureUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.EnsureUser(ctx, "u1", "ana@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.GoalAmount != core.DefaultGoal || u.Email != "ana@example.com" {
		t.Errorf("new user = %+v", u)
	}

	if _, err := f.users.SetGoal(ctx, "u1", core.Money{Cents: 50000}); err != nil {
		t.Fatal(err)
	}
	u, err = f.users.EnsureUser(ctx, "u1", "ana@novo.com")
	if err != nil {
		t.Fatal(err)
	}
	if u.GoalAmount.Cents != 50000 || u.Email != "ana@novo.com" {
		t.Errorf("existing user = %+v, want goal kept and email updated", u)
	}

	if _, err := f.users.EnsureUser(ctx, " ", ""); !errors.Is(err, core.ErrMissingUser) {
		t.Errorf("blank id error = %v", err)
	}
}

func TestProfileAndGoal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.users.UpdateProfile(ctx, "u1", "ana@example.com", core.Profile{Name: " Ana ", Phone: "11 99999-0000"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "Ana" || u.GoalAmount != core.DefaultGoal {
		t.Errorf("profile = %+v", u)
	}

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := f.users.UpdateProfile(ctx, "u1", "", core.Profile{Name: string(long)}); !errors.Is(err, core.ErrInvalidProfile) {
		t.Errorf("long name error = %v", err)
	}
	if _, err := f.users.SetGoal(ctx, "u1", core.Money{Cents: -1}); !errors.Is(err, core.ErrInvalidGoal) {
		t.Errorf("negative goal error = %v", err)
	}
	if _, err := f.users.SetGoal(ctx, "ghost", core.Money{Cents: 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown user goal error = %v", err)
	}
}

func TestAuthorizeSuspended(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.users.EnsureUser(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}

	u, err := f.admin.ToggleSuspension(ctx, "u1")
	if err != nil || !u.IsSuspended {
		t.Fatalf("ToggleSuspension() = %+v, %v", u, err)
	}
	if _, err := f.users.Authorize(ctx, "u1", ""); !errors.Is(err, ErrSuspended) {
		t.Errorf("Authorize() error = %v, want ErrSuspended", err)
	}

	if _, err := f.admin.ToggleSuspension(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.users.Authorize(ctx, "u1", ""); err != nil {
		t.Errorf("Authorize() after reactivation error = %v", err)
	}
	if _, err := f.admin.ToggleSuspension(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ToggleSuspension(ghost) error = %v", err)
	}
}

func TestSuspensionReachesOtherInstancesAfterCacheExpiry(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	logger := quietLogger()
	here := NewUserService(store, cache.NewLRUCache[core.User](100, time.Minute), logger)
	otherCache := cache.NewLRUCache[core.User](100, time.Minute)
	other := NewUserService(store, otherCache, logger)

	if _, err := other.Authorize(ctx, "u1", ""); err != nil {
		t.Fatal(err)
	}
	admin := NewAdminService(here, NewTransactionService(store, nil, logger), logger)
	if _, err := admin.ToggleSuspension(ctx, "u1"); err != nil {
		t.Fatal(err)
	}
	if _, err := here.Authorize(ctx, "u1", ""); !errors.Is(err, ErrSuspended) {
		t.Errorf("same instance: Authorize() error = %v, want ErrSuspended", err)
	}
	if _, err := other.Authorize(ctx, "u1", ""); err != nil {
		t.Errorf("other instance before expiry: Authorize() error = %v", err)
	}

	otherCache.Delete("u1")
	if _, err := other.Authorize(ctx, "u1", ""); !errors.Is(err, ErrSuspended) {
		t.Errorf("other instance after expiry: Authorize() error = %v, want ErrSuspended", err)
	}
}

func TestAdminListUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := jan(20)
	f.admin.now = func() time.Time { return now }

	for _, u := range []core.User{
		{ID: "ana", Name: "Ana Souza", Email: "ana@example.com"},
		{ID: "bruno", Name: "Bruno", Email: "bruno@example.com"},
		{ID: "carla", Name: "Carla", Email: "carla@example.com"},
	} {
		if _, err := f.store.UpsertProfile(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.store.SetSuspended(ctx, "bruno", true); err != nil {
		t.Fatal(err)
	}
	for _, in := range []NewTransaction{
		{Value: core.Money{Cents: 10000}, Type: core.Gain, Date: jan(18)},
		{Value: core.Money{Cents: 2500}, Type: core.Expense, Date: jan(19)},
	} {
		if _, err := f.txs.Create(ctx, "ana", in); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := f.txs.Create(ctx, "carla", NewTransaction{Value: core.Money{Cents: 4000}, Type: core.Gain, Date: jan(19)}); err != nil {
		t.Fatal(err)
	}
	f.store.failUser = "carla"

	listing, err := f.admin.ListUsers(ctx, "", aggregate.AnyStatus, time.UTC)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(listing.Users) != 3 {
		t.Fatalf("users = %d, want 3", len(listing.Users))
	}
	ov := listing.Overview
	if ov.TotalUsers != 3 || ov.ActiveUsers != 2 || ov.SuspendedUsers != 1 {
		t.Errorf("overview = %+v", ov)
	}
	// carla failed to load and contributes nothing
	if ov.TotalRevenue.Cents != 10000 {
		t.Errorf("TotalRevenue = %d, want 10000", ov.TotalRevenue.Cents)
	}
	for _, row := range listing.Users {
		switch row.ID {
		case "ana":
			if row.Stats.Count != 2 || row.Stats.Net.Cents != 7500 || row.Stats.ActiveDays != 2 {
				t.Errorf("ana stats = %+v", row.Stats)
			}
		case "carla":
			if row.Stats != (aggregate.UserStats{}) {
				t.Errorf("carla stats = %+v, want zero", row.Stats)
			}
		}
	}

	filtered, err := f.admin.ListUsers(ctx, "SOUZA", aggregate.ActiveStatus, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered.Users) != 1 || filtered.Users[0].ID != "ana" || filtered.Overview.TotalUsers != 3 {
		t.Errorf("filtered = %+v", filtered)
	}
}
