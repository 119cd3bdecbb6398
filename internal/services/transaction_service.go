// Package services orchestrates the store, the caches and the outbound
// notifications behind the HTTP handlers.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"motolucro/internal/amqp"
	"motolucro/internal/cache"
	"motolucro/internal/core"
	applog "motolucro/internal/log"
	"motolucro/internal/storage"
)

const publishTimeout = 5 * time.Second

// EventPublisher sends change events to the export pipeline.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev amqp.TransactionEvent) error
}

// Notifier pushes change notifications to connected dashboards.
type Notifier interface {
	Notify(action string, tx core.Transaction)
}

// NewTransaction is the user input of a create.
type NewTransaction struct {
	Value    core.Money  `json:"value"`
	Type     core.TxType `json:"type"`
	Category string      `json:"category"`
	Company  string      `json:"company"`
	Date     time.Time   `json:"date"`
}

type TransactionService struct {
	store     storage.TransactionStore
	snapshots cache.Cache[[]core.Transaction]

	// gens counts writes per user. A snapshot loaded before a write is not
	// cached after it.
	mu   sync.Mutex
	gens map[string]uint64

	publisher EventPublisher
	notifier  Notifier
	logger    *applog.Logger
	newID     func() string
	now       func() time.Time
}

func NewTransactionService(store storage.TransactionStore, snapshots cache.Cache[[]core.Transaction], logger *applog.Logger) *TransactionService {
	return &TransactionService{
		store:     store,
		snapshots: snapshots,
		gens:      make(map[string]uint64),
		logger:    logger.WithComponent(applog.ComponentTransactions),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// WithPublisher enables change events. A nil publisher disables them.
func (s *TransactionService) WithPublisher(p EventPublisher) *TransactionService {
	s.publisher = p
	return s
}

func (s *TransactionService) WithNotifier(n Notifier) *TransactionService {
	s.notifier = n
	return s
}

// Snapshot returns every transaction of userID, newest first. The slice is
// shared with the cache and must not be modified.
func (s *TransactionService) Snapshot(ctx context.Context, userID string) ([]core.Transaction, error) {
	if s.snapshots != nil {
		if list, ok := s.snapshots.Get(userID); ok {
			return list, nil
		}
	}
	gen := s.generation(userID)
	list, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	s.fill(userID, gen, list)
	return list, nil
}

func (s *TransactionService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[userID]
}

// fill caches list unless userID was written since gen was read.
func (s *TransactionService) fill(userID string, gen uint64, list []core.Transaction) {
	if s.snapshots == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gens[userID] == gen {
		s.snapshots.Set(userID, list)
	}
}

func (s *TransactionService) invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[userID]++
	if s.snapshots != nil {
		s.snapshots.Delete(userID)
	}
}

// Create stores a new transaction for userID. A zero date means now.
func (s *TransactionService) Create(ctx context.Context, userID string, in NewTransaction) (core.Transaction, error) {
	tx := core.Transaction{
		ID:       s.newID(),
		UserID:   userID,
		Value:    in.Value,
		Type:     in.Type,
		Category: strings.TrimSpace(in.Category),
		Company:  strings.TrimSpace(in.Company),
		Date:     in.Date,
	}
	if tx.Date.IsZero() {
		tx.Date = s.now()
	}
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}

	saved, err := s.store.Create(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	s.changed(ctx, amqp.ActionCreated, saved)

	s.logger.InfoContext(ctx, "Transaction created",
		applog.NewFields().
			WithUser(userID).
			WithTransaction(saved.ID, string(saved.Type), saved.Value.Cents).
			WithOperation(applog.OpCreate).
			ToSlice()...)
	return saved, nil
}

// Get returns the transaction only when it belongs to userID; otherwise it
// reports storage.ErrNotFound.
func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	tx, err := s.store.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.UserID != userID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return tx, nil
}

func (s *TransactionService) Update(ctx context.Context, userID, id string, patch core.TransactionPatch) (core.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return core.Transaction{}, err
	}
	updated, err := s.store.Update(ctx, id, patch)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	s.changed(ctx, amqp.ActionUpdated, updated)

	s.logger.InfoContext(ctx, "Transaction updated",
		applog.FieldUserID, userID,
		applog.FieldTransactionID, id,
		applog.FieldOperation, applog.OpUpdate)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	tx, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.changed(ctx, amqp.ActionDeleted, tx)

	s.logger.InfoContext(ctx, "Transaction deleted",
		applog.FieldUserID, userID,
		applog.FieldTransactionID, id,
		applog.FieldOperation, applog.OpDelete)
	return nil
}

// changed invalidates the owner's snapshot and fans the change out. Publish
// failures are logged; the write already succeeded.
func (s *TransactionService) changed(ctx context.Context, action amqp.Action, tx core.Transaction) {
	s.invalidate(tx.UserID)
	if s.notifier != nil {
		s.notifier.Notify(string(action), tx)
	}
	if s.publisher == nil {
		return
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishTransactionEvent(pctx, amqp.NewTransactionEvent(action, tx)); err != nil {
		s.logger.LogError(ctx, "Failed to publish transaction event", err, applog.OpPublish, applog.ErrorTypeNetwork,
			applog.NewFields().WithTransaction(tx.ID, string(tx.Type), tx.Value.Cents).WithUser(tx.UserID))
	}
}
