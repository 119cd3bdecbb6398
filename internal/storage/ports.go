// Package storage defines the persistence contract shared by every backend.
package storage

import (
	"context"
	"errors"

	"motolucro/internal/core"
)

// ErrNotFound is returned when a transaction or user does not exist.
var ErrNotFound = errors.New("not found")

// Ports for persistence adapters.
type (
	// TransactionStore persists transactions. List returns a user's
	// transactions newest first (by date, then creation time).
	TransactionStore interface {
		List(ctx context.Context, userID string) ([]core.Transaction, error)
		Get(ctx context.Context, id string) (core.Transaction, error)
		Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error)
		Delete(ctx context.Context, id string) error
	}

	// UserStore persists profiles, goals and the suspension flag.
	UserStore interface {
		GetUser(ctx context.Context, id string) (core.User, error)
		// UpsertProfile inserts u or updates email, name and phone of an
		// existing user. The goal of an existing user is left untouched.
		UpsertProfile(ctx context.Context, u core.User) (core.User, error)
		SetGoal(ctx context.Context, userID string, goal core.Money) (core.User, error)
		// ListUsers returns every user, newest first.
		ListUsers(ctx context.Context) ([]core.User, error)
		SetSuspended(ctx context.Context, userID string, suspended bool) (core.User, error)
	}

	// Store is what a backend provides.
	Store interface {
		TransactionStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)
