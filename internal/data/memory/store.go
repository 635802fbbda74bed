// Package memory is an in-process implementation of the ledger store. It
// provides the same guarantees as the PostgreSQL store: per-account exclusive
// locks acquired in ascending id order, writes staged until commit and applied
// under one write lock, and unique username/account-number reservations held
// until the owning transaction ends.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
)

var (
	errTxClosed    = errors.New("transaction already finished")
	errNotLocked   = errors.New("account must be locked before update")
	errInvalidKind = errors.New("unknown record kind")
)

// Store keeps committed state in maps guarded by mu
type Store struct {
	mu         sync.RWMutex
	accounts   map[uuid.UUID]*account.Account
	byUsername map[string]uuid.UUID
	byNumber   map[string]uuid.UUID
	records    map[uuid.UUID][]*ledger.Record
	recordIDs  map[uuid.UUID]struct{}
	commands   map[uuid.UUID]struct{}
	messages   []*outbox.Message
	nextMsgID  int64

	// Uniques claimed by open transactions
	reservedUsernames map[string]struct{}
	reservedNumbers   map[string]struct{}

	slotsMu sync.Mutex
	slots   map[uuid.UUID]chan struct{}

	clockMu  sync.Mutex
	seq      int64
	lastTime time.Time

	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		accounts:          make(map[uuid.UUID]*account.Account),
		byUsername:        make(map[string]uuid.UUID),
		byNumber:          make(map[string]uuid.UUID),
		records:           make(map[uuid.UUID][]*ledger.Record),
		recordIDs:         make(map[uuid.UUID]struct{}),
		commands:          make(map[uuid.UUID]struct{}),
		reservedUsernames: make(map[string]struct{}),
		reservedNumbers:   make(map[string]struct{}),
		slots:             make(map[uuid.UUID]chan struct{}),
		logger:            logger,
	}
}

// Accounts returns a repository over committed state. Mutating calls run in
// their own implicit transaction.
func (s *Store) Accounts() account.Repository { return &accountView{s: s} }

// Records returns the committed transaction log
func (s *Store) Records() ledger.Repository { return &recordView{s: s} }

// Outbox returns the committed outbox for the poller
func (s *Store) Outbox() outbox.Repository { return &outboxView{s: s} }

// WithTransaction runs fn against a fresh transaction. Staged writes become
// visible atomically when fn returns nil; any error or panic discards them.
func (s *Store) WithTransaction(ctx context.Context, fn store.TxFunc) error {
	tx := newTx(s)
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err := ctx.Err(); err != nil {
		tx.rollback()
		return shared.StorageError{Op: "begin", Err: err, Retryable: true}
	}

	if err := fn(ctx, tx); err != nil {
		tx.rollback()
		return err
	}

	tx.commit()
	return nil
}

// WithSnapshot runs fn against a copy of committed accounts and records
// taken under one read lock. Writes made through the snapshot are discarded.
func (s *Store) WithSnapshot(ctx context.Context, fn store.TxFunc) error {
	if err := ctx.Err(); err != nil {
		return shared.StorageError{Op: "begin", Err: err, Retryable: true}
	}
	return fn(ctx, s.snapshot())
}

func (s *Store) snapshot() *snapshotTx {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frozen := NewStore(s.logger)
	for id, acc := range s.accounts {
		frozen.accounts[id] = copyAccount(acc)
	}
	for username, id := range s.byUsername {
		frozen.byUsername[username] = id
	}
	for number, id := range s.byNumber {
		frozen.byNumber[number] = id
	}
	for id, records := range s.records {
		frozen.records[id] = append([]*ledger.Record(nil), records...)
	}
	for id := range s.recordIDs {
		frozen.recordIDs[id] = struct{}{}
	}
	for id := range s.commands {
		frozen.commands[id] = struct{}{}
	}
	return &snapshotTx{s: frozen}
}

// snapshotTx reads a frozen copy of the store
type snapshotTx struct {
	s *Store
}

func (t *snapshotTx) Accounts() account.Repository { return &accountView{s: t.s} }
func (t *snapshotTx) Records() ledger.Repository   { return &recordView{s: t.s} }
func (t *snapshotTx) Outbox() outbox.Repository    { return &outboxView{s: t.s} }

// acquire blocks until the account slot is free or ctx is done
func (s *Store) acquire(ctx context.Context, id uuid.UUID) error {
	s.slotsMu.Lock()
	slot, ok := s.slots[id]
	if !ok {
		slot = make(chan struct{}, 1)
		s.slots[id] = slot
	}
	s.slotsMu.Unlock()

	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return shared.StorageError{Op: "lock account", Err: ctx.Err(), Retryable: true}
	}
}

func (s *Store) release(id uuid.UUID) {
	s.slotsMu.Lock()
	slot := s.slots[id]
	s.slotsMu.Unlock()
	<-slot
}

// stamp assigns a strictly increasing sequence and a non-decreasing timestamp
func (s *Store) stamp(r *ledger.Record) {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()

	now := time.Now().UTC()
	if now.Before(s.lastTime) {
		now = s.lastTime
	}
	s.lastTime = now
	s.seq++
	r.Sequence = s.seq
	r.CreatedAt = now
}

func copyAccount(a *account.Account) *account.Account {
	c := *a
	return &c
}

func copyRecord(r *ledger.Record) *ledger.Record {
	c := *r
	return &c
}
