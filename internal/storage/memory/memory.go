// Package memory is an in-process storage backend for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"motolucro/internal/core"
	"motolucro/internal/storage"
)

type Store struct {
	mu    sync.RWMutex
	txs   map[string]core.Transaction
	users map[string]core.User
	now   func() time.Time
}

func New() *Store {
	return &Store{
		txs:   make(map[string]core.Transaction),
		users: make(map[string]core.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) List(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return tx, nil
}

func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.ID]; exists {
		return core.Transaction{}, fmt.Errorf("transaction %s already exists", tx.ID)
	}
	now := s.now()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = now
	}
	tx.UpdatedAt = now
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) Update(_ context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	tx = patch.Apply(tx)
	tx.UpdatedAt = s.now()
	s.txs[id] = tx
	return tx, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	return u, nil
}

func (s *Store) UpsertProfile(_ context.Context, u core.User) (core.User, error) {
	if u.ID == "" {
		return core.User{}, core.ErrMissingUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	existing, ok := s.users[u.ID]
	if !ok {
		u.CreatedAt = now
		u.UpdatedAt = now
		s.users[u.ID] = u
		return u, nil
	}
	existing.Email = u.Email
	existing.Name = u.Name
	existing.Phone = u.Phone
	existing.UpdatedAt = now
	s.users[u.ID] = existing
	return existing, nil
}

func (s *Store) SetGoal(_ context.Context, userID string, goal core.Money) (core.User, error) {
	return s.updateUser(userID, func(u *core.User) { u.GoalAmount = goal })
}

func (s *Store) SetSuspended(_ context.Context, userID string, suspended bool) (core.User, error) {
	return s.updateUser(userID, func(u *core.User) { u.IsSuspended = suspended })
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) updateUser(id string, mutate func(*core.User)) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
	}
	mutate(&u)
	u.UpdatedAt = s.now()
	s.users[id] = u
	return u, nil
}

func sortNewestFirst(list []core.Transaction) {
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.After(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
