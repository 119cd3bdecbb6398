// Package sqlite is the embedded SQLite storage backend. Timestamps are
// stored as Unix milliseconds in UTC.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"motolucro/internal/core"
	"motolucro/internal/storage"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func Open(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const txColumns = `id, user_id, value_cents, type, category, company, date, created_at, updated_at`

func (r *Repository) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM transactions
		 WHERE user_id = ?
		 ORDER BY date DESC, created_at DESC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id string) (core.Transaction, error) {
	return getTransaction(ctx, r.db, id)
}

func (r *Repository) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := r.now().UTC()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.UserID, tx.Value.Cents, string(tx.Type), tx.Category, tx.Company,
		tx.Date.UnixMilli(), tx.CreatedAt.UnixMilli(), tx.UpdatedAt.UnixMilli())
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"type", tx.Type,
		"value_cents", tx.Value.Cents)

	return roundTrip(tx), nil
}

func (r *Repository) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}

	dbtx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("begin update: %w", err)
	}
	defer dbtx.Rollback()

	tx, err := getTransaction(ctx, dbtx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	tx = patch.Apply(tx)
	tx.UpdatedAt = r.now().UTC()

	_, err = dbtx.ExecContext(ctx,
		`UPDATE transactions SET value_cents = ?, category = ?, company = ?, updated_at = ? WHERE id = ?`,
		tx.Value.Cents, tx.Category, tx.Company, tx.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := dbtx.Commit(); err != nil {
		return core.Transaction{}, fmt.Errorf("commit update: %w", err)
	}
	return roundTrip(tx), nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectRow(res, "transaction", id)
}

const userColumns = `id, email, name, phone, goal_cents, is_suspended, created_at, updated_at`

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *Repository) UpsertProfile(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		return core.User{}, core.ErrMissingUser
	}
	now := r.now().UTC().UnixMilli()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   email = excluded.email,
		   name = excluded.name,
		   phone = excluded.phone,
		   updated_at = excluded.updated_at`,
		u.ID, u.Email, u.Name, u.Phone, u.GoalAmount.Cents, u.IsSuspended, now, now)
	if err != nil {
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return r.GetUser(ctx, u.ID)
}

func (r *Repository) SetGoal(ctx context.Context, userID string, goal core.Money) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET goal_cents = ?, updated_at = ? WHERE id = ?`,
		goal.Cents, r.now().UTC().UnixMilli(), userID)
	if err != nil {
		return core.User{}, fmt.Errorf("set goal: %w", err)
	}
	if err := expectRow(res, "user", userID); err != nil {
		return core.User{}, err
	}
	return r.GetUser(ctx, userID)
}

func (r *Repository) SetSuspended(ctx context.Context, userID string, suspended bool) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_suspended = ?, updated_at = ? WHERE id = ?`,
		suspended, r.now().UTC().UnixMilli(), userID)
	if err != nil {
		return core.User{}, fmt.Errorf("set suspended: %w", err)
	}
	if err := expectRow(res, "user", userID); err != nil {
		return core.User{}, err
	}
	return r.GetUser(ctx, userID)
}

func (r *Repository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := make([]core.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTransaction(ctx context.Context, q queryer, id string) (core.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func scanTransaction(s scanner) (core.Transaction, error) {
	var (
		tx                     core.Transaction
		typ                    string
		date, created, updated int64
	)
	if err := s.Scan(&tx.ID, &tx.UserID, &tx.Value.Cents, &typ, &tx.Category, &tx.Company, &date, &created, &updated); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TxType(typ)
	tx.Date = time.UnixMilli(date).UTC()
	tx.CreatedAt = time.UnixMilli(created).UTC()
	tx.UpdatedAt = time.UnixMilli(updated).UTC()
	return tx, nil
}

func scanUser(s scanner) (core.User, error) {
	var (
		u                core.User
		created, updated int64
	)
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.GoalAmount.Cents, &u.IsSuspended, &created, &updated); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	u.UpdatedAt = time.UnixMilli(updated).UTC()
	return u, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// roundTrip truncates timestamps to the stored precision so callers see
// what a later read returns.
func roundTrip(tx core.Transaction) core.Transaction {
	tx.Date = time.UnixMilli(tx.Date.UnixMilli()).UTC()
	tx.CreatedAt = time.UnixMilli(tx.CreatedAt.UnixMilli()).UTC()
	tx.UpdatedAt = time.UnixMilli(tx.UpdatedAt.UnixMilli()).UTC()
	return tx
}
