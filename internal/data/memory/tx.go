package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
)

// memTx stages every write until commit
type memTx struct {
	s        *Store
	held     map[uuid.UUID]struct{}
	staged   map[uuid.UUID]*account.Account
	created  []uuid.UUID
	records  []*ledger.Record
	messages []*outbox.Message

	usernames []string
	numbers   []string
	done      bool
}

func newTx(s *Store) *memTx {
	return &memTx{
		s:      s,
		held:   make(map[uuid.UUID]struct{}),
		staged: make(map[uuid.UUID]*account.Account),
	}
}

func (t *memTx) Accounts() account.Repository { return (*txAccounts)(t) }
func (t *memTx) Records() ledger.Repository   { return (*txRecords)(t) }
func (t *memTx) Outbox() outbox.Repository    { return (*txOutbox)(t) }

func (t *memTx) check() error {
	if t.done {
		return shared.StorageError{Op: "use transaction", Err: errTxClosed}
	}
	return nil
}

// current returns the tx-local view of an account
func (t *memTx) current(id uuid.UUID) (*account.Account, bool) {
	if acc, ok := t.staged[id]; ok {
		return acc, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	acc, ok := t.s.accounts[id]
	return acc, ok
}

func (t *memTx) commit() {
	s := t.s
	s.mu.Lock()
	for _, id := range t.created {
		acc := t.staged[id]
		s.byUsername[acc.Username] = id
		s.byNumber[acc.AccountNumber] = id
	}
	for id, acc := range t.staged {
		s.accounts[id] = copyAccount(acc)
	}
	for _, r := range t.records {
		s.records[r.AccountID] = append(s.records[r.AccountID], r)
		s.recordIDs[r.ID] = struct{}{}
		if r.CommandID != uuid.Nil {
			s.commands[r.CommandID] = struct{}{}
		}
	}
	for _, m := range t.messages {
		s.nextMsgID++
		m.ID = s.nextMsgID
		s.messages = append(s.messages, m)
	}
	t.dropReservations()
	s.mu.Unlock()

	t.finish()
}

func (t *memTx) rollback() {
	if t.done {
		return
	}
	t.s.mu.Lock()
	t.dropReservations()
	t.s.mu.Unlock()

	t.finish()
}

// dropReservations requires s.mu held
func (t *memTx) dropReservations() {
	for _, u := range t.usernames {
		delete(t.s.reservedUsernames, u)
	}
	for _, n := range t.numbers {
		delete(t.s.reservedNumbers, n)
	}
}

func (t *memTx) finish() {
	for id := range t.held {
		t.s.release(id)
	}
	t.held = nil
	t.done = true
}

// txAccounts is the account repository bound to a transaction
type txAccounts memTx

func (r *txAccounts) tx() *memTx { return (*memTx)(r) }

func (r *txAccounts) Create(ctx context.Context, acc *account.Account) error {
	t := r.tx()
	if err := t.check(); err != nil {
		return err
	}

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[acc.Username]; taken {
		return account.ErrConflict{Field: account.FieldUsername, Value: acc.Username}
	}
	if _, taken := s.reservedUsernames[acc.Username]; taken {
		return account.ErrConflict{Field: account.FieldUsername, Value: acc.Username}
	}
	if _, taken := s.byNumber[acc.AccountNumber]; taken {
		return account.ErrConflict{Field: account.FieldAccountNumber, Value: acc.AccountNumber}
	}
	if _, taken := s.reservedNumbers[acc.AccountNumber]; taken {
		return account.ErrConflict{Field: account.FieldAccountNumber, Value: acc.AccountNumber}
	}

	s.reservedUsernames[acc.Username] = struct{}{}
	s.reservedNumbers[acc.AccountNumber] = struct{}{}
	t.usernames = append(t.usernames, acc.Username)
	t.numbers = append(t.numbers, acc.AccountNumber)

	t.staged[acc.ID] = copyAccount(acc)
	t.created = append(t.created, acc.ID)
	return nil
}

func (r *txAccounts) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	acc, ok := r.tx().current(id)
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	return copyAccount(acc), nil
}

func (r *txAccounts) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	t := r.tx()
	for _, id := range t.created {
		if acc := t.staged[id]; acc.Username == username {
			return copyAccount(acc), nil
		}
	}
	return (&accountView{s: t.s}).GetByUsername(ctx, username)
}

func (r *txAccounts) GetByAccountNumber(ctx context.Context, accountNumber string) (*account.Account, error) {
	t := r.tx()
	for _, id := range t.created {
		if acc := t.staged[id]; acc.AccountNumber == accountNumber {
			return copyAccount(acc), nil
		}
	}
	acc, err := (&accountView{s: t.s}).GetByAccountNumber(ctx, accountNumber)
	if err != nil {
		return nil, err
	}
	if staged, ok := t.staged[acc.ID]; ok {
		return copyAccount(staged), nil
	}
	return acc, nil
}

func (r *txAccounts) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	acc, ok := r.tx().current(id)
	if !ok {
		return 0, account.ErrAccountNotFound{AccountID: id}
	}
	return acc.Balance, nil
}

// LockForUpdate acquires the account slots in ascending id order; they are
// released when the transaction commits or rolls back
func (r *txAccounts) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*account.Account, error) {
	t := r.tx()
	if err := t.check(); err != nil {
		return nil, err
	}

	ordered := account.LockOrder(ids...)
	locked := make([]*account.Account, 0, len(ordered))
	for _, id := range ordered {
		if _, held := t.held[id]; !held {
			if err := t.s.acquire(ctx, id); err != nil {
				return nil, err
			}
			t.held[id] = struct{}{}
		}
		acc, ok := t.current(id)
		if !ok {
			return nil, account.ErrAccountNotFound{AccountID: id}
		}
		locked = append(locked, copyAccount(acc))
	}
	return locked, nil
}

// Update applies the optimistic version check against the tx-local view
func (r *txAccounts) Update(ctx context.Context, acc *account.Account) error {
	t := r.tx()
	if err := t.check(); err != nil {
		return err
	}

	current, ok := t.current(acc.ID)
	if !ok {
		return account.ErrAccountNotFound{AccountID: acc.ID}
	}
	_, held := t.held[acc.ID]
	_, isNew := t.staged[acc.ID]
	if !held && !isNew {
		return shared.StorageError{Op: "update account", Err: errNotLocked}
	}
	if current.Version != acc.Version-1 {
		return account.ErrConcurrentModification{AccountID: acc.ID}
	}
	if acc.Balance < 0 {
		return account.ErrInsufficientFunds
	}

	t.staged[acc.ID] = copyAccount(acc)
	return nil
}

// txRecords appends to the transaction-local log
type txRecords memTx

func (r *txRecords) tx() *memTx { return (*memTx)(r) }

func (r *txRecords) Append(ctx context.Context, record *ledger.Record) error {
	t := r.tx()
	if err := t.check(); err != nil {
		return err
	}
	if record.Amount <= 0 {
		return account.ErrInvalidAmount
	}
	if !record.Kind.Valid() {
		return shared.StorageError{Op: "append record", Err: errInvalidKind}
	}
	if _, ok := t.current(record.AccountID); !ok {
		return account.ErrAccountNotFound{AccountID: record.AccountID}
	}

	t.s.mu.RLock()
	_, dup := t.s.recordIDs[record.ID]
	_, applied := t.s.commands[record.CommandID]
	t.s.mu.RUnlock()
	if record.CommandID != uuid.Nil && applied {
		return ledger.ErrCommandApplied{CommandID: record.CommandID}
	}
	for _, staged := range t.records {
		if staged.ID == record.ID {
			dup = true
		}
	}
	if dup {
		return ledger.ErrDuplicateRecord{RecordID: record.ID}
	}

	t.s.stamp(record)
	t.records = append(t.records, copyRecord(record))
	return nil
}

func (r *txRecords) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*ledger.Record, error) {
	t := r.tx()
	all, err := (&recordView{s: t.s}).ListByAccount(ctx, accountID, -1)
	if err != nil {
		return nil, err
	}
	for _, rec := range t.records {
		if rec.AccountID == accountID {
			all = append(all, copyRecord(rec))
		}
	}
	return newestFirst(all, limit), nil
}

func (r *txRecords) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	t := r.tx()
	sum, err := (&recordView{s: t.s}).SumByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	for _, rec := range t.records {
		if rec.AccountID == accountID {
			sum += rec.SignedAmount()
		}
	}
	return sum, nil
}

func (r *txRecords) HasCommand(ctx context.Context, commandID uuid.UUID) (bool, error) {
	t := r.tx()
	for _, rec := range t.records {
		if rec.CommandID == commandID {
			return true, nil
		}
	}
	return (&recordView{s: t.s}).HasCommand(ctx, commandID)
}

// txOutbox stages outbox messages
type txOutbox memTx

func (r *txOutbox) Create(ctx context.Context, message *outbox.Message) error {
	t := (*memTx)(r)
	if err := t.check(); err != nil {
		return err
	}
	c := *message
	t.messages = append(t.messages, &c)
	return nil
}

func (r *txOutbox) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	return (&outboxView{s: r.s}).GetPending(ctx, limit)
}

func (r *txOutbox) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	return (&outboxView{s: r.s}).UpdateStatus(ctx, id, status)
}

func (r *txOutbox) IncrementAttempts(ctx context.Context, id int64) error {
	return (&outboxView{s: r.s}).IncrementAttempts(ctx, id)
}

// newestFirst orders by descending sequence and applies limit (negative means all)
func newestFirst(records []*ledger.Record, limit int) []*ledger.Record {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Sequence > records[j].Sequence
	})
	if limit >= 0 && len(records) > limit {
		records = records[:limit]
	}
	return records
}
