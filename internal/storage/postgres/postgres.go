// Package postgres is the PostgreSQL storage backend built on a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"motolucro/internal/core"
	"motolucro/internal/storage"
)

//go:embed schema.sql
var schema string

type Repo struct {
	Pool *pgxpool.Pool
}

// Open connects to dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Repo{Pool: pool}, nil
}

func (r *Repo) Close() error {
	r.Pool.Close()
	return nil
}

func (r *Repo) Ping(ctx context.Context) error {
	return r.Pool.Ping(ctx)
}

const txColumns = `id, user_id, value_cents, type, category, company, date, created_at, updated_at`

func (r *Repo) List(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT `+txColumns+`
		 FROM transactions
		 WHERE user_id = $1
		 ORDER BY date DESC, created_at DESC, id ASC`,
		userID,
	)
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

func (r *Repo) Get(ctx context.Context, id string) (core.Transaction, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *Repo) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO transactions (id, user_id, value_cents, type, category, company, date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 RETURNING `+txColumns,
		tx.ID, tx.UserID, tx.Value.Cents, string(tx.Type), tx.Category, tx.Company, tx.Date, tx.CreatedAt,
	)
	created, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return created, nil
}

func (r *Repo) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}
	current, err := r.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	next := patch.Apply(current)

	row := r.Pool.QueryRow(ctx,
		`UPDATE transactions
		 SET value_cents = $2, category = $3, company = $4, updated_at = now()
		 WHERE id = $1
		 RETURNING `+txColumns,
		id, next.Value.Cents, next.Category, next.Company,
	)
	updated, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	return updated, nil
}

func (r *Repo) Delete(ctx context.Context, id string) error {
	tag, err := r.Pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectRow(tag, "transaction", id)
}

const userColumns = `id, email, name, phone, goal_cents, is_suspended, created_at, updated_at`

func (r *Repo) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return r.userRow(row, id)
}

func (r *Repo) UpsertProfile(ctx context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		return core.User{}, core.ErrMissingUser
	}
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO users (id, email, name, phone, goal_cents, is_suspended)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO UPDATE SET
		   email = EXCLUDED.email,
		   name = EXCLUDED.name,
		   phone = EXCLUDED.phone,
		   updated_at = now()
		 RETURNING `+userColumns,
		u.ID, u.Email, u.Name, u.Phone, u.GoalAmount.Cents, u.IsSuspended,
	)
	return r.userRow(row, u.ID)
}

func (r *Repo) SetGoal(ctx context.Context, userID string, goal core.Money) (core.User, error) {
	row := r.Pool.QueryRow(ctx,
		`UPDATE users SET goal_cents = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		userID, goal.Cents,
	)
	return r.userRow(row, userID)
}

func (r *Repo) SetSuspended(ctx context.Context, userID string, suspended bool) (core.User, error) {
	row := r.Pool.QueryRow(ctx,
		`UPDATE users SET is_suspended = $2, updated_at = now() WHERE id = $1 RETURNING `+userColumns,
		userID, suspended,
	)
	return r.userRow(row, userID)
}

func (r *Repo) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.Pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id ASC`)
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

func (r *Repo) userRow(row pgx.Row, id string) (core.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("user %s: %w", id, err)
	}
	return u, nil
}

func scanTransaction(row pgx.Row) (core.Transaction, error) {
	var (
		tx  core.Transaction
		typ string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Value.Cents, &typ, &tx.Category, &tx.Company, &tx.Date, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TxType(typ)
	tx.Date = tx.Date.UTC()
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return tx, nil
}

func scanUser(row pgx.Row) (core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &u.GoalAmount.Cents, &u.IsSuspended, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func expectRow(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}
