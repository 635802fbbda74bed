package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
)

// accountView reads committed accounts
type accountView struct {
	s *Store
}

func (v *accountView) Create(ctx context.Context, acc *account.Account) error {
	return v.s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Create(ctx, acc)
	})
}

func (v *accountView) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	acc, ok := v.s.accounts[id]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountID: id}
	}
	return copyAccount(acc), nil
}

func (v *accountView) GetByUsername(ctx context.Context, username string) (*account.Account, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	id, ok := v.s.byUsername[username]
	if !ok {
		return nil, account.ErrAccountNotFound{Username: username}
	}
	return copyAccount(v.s.accounts[id]), nil
}

func (v *accountView) GetByAccountNumber(ctx context.Context, accountNumber string) (*account.Account, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	id, ok := v.s.byNumber[accountNumber]
	if !ok {
		return nil, account.ErrAccountNotFound{AccountNumber: accountNumber}
	}
	return copyAccount(v.s.accounts[id]), nil
}

func (v *accountView) GetBalance(ctx context.Context, id uuid.UUID) (int64, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	acc, ok := v.s.accounts[id]
	if !ok {
		return 0, account.ErrAccountNotFound{AccountID: id}
	}
	return acc.Balance, nil
}

// LockForUpdate outside a transaction returns a snapshot; the locks are
// released as soon as the implicit transaction ends
func (v *accountView) LockForUpdate(ctx context.Context, ids ...uuid.UUID) ([]*account.Account, error) {
	var locked []*account.Account
	err := v.s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		locked, err = tx.Accounts().LockForUpdate(ctx, ids...)
		return err
	})
	return locked, err
}

func (v *accountView) Update(ctx context.Context, acc *account.Account) error {
	return v.s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Accounts().LockForUpdate(ctx, acc.ID); err != nil {
			return err
		}
		return tx.Accounts().Update(ctx, acc)
	})
}

// recordView reads the committed transaction log
type recordView struct {
	s *Store
}

func (v *recordView) Append(ctx context.Context, record *ledger.Record) error {
	return v.s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Records().Append(ctx, record)
	})
}

func (v *recordView) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*ledger.Record, error) {
	v.s.mu.RLock()
	committed := v.s.records[accountID]
	out := make([]*ledger.Record, 0, len(committed))
	for _, r := range committed {
		out = append(out, copyRecord(r))
	}
	v.s.mu.RUnlock()

	return newestFirst(out, limit), nil
}

func (v *recordView) SumByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var sum int64
	for _, r := range v.s.records[accountID] {
		sum += r.SignedAmount()
	}
	return sum, nil
}

func (v *recordView) HasCommand(ctx context.Context, commandID uuid.UUID) (bool, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	_, ok := v.s.commands[commandID]
	return ok, nil
}

// outboxView serves the poller from committed messages
type outboxView struct {
	s *Store
}

func (v *outboxView) Create(ctx context.Context, message *outbox.Message) error {
	return v.s.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Outbox().Create(ctx, message)
	})
}

func (v *outboxView) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	var pending []*outbox.Message
	for _, m := range v.s.messages {
		if len(pending) == limit {
			break
		}
		if m.Status == shared.OutboxStatusPending {
			c := *m
			pending = append(pending, &c)
		}
	}
	return pending, nil
}

func (v *outboxView) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	m, err := v.find(id)
	if err != nil {
		return err
	}
	if status == shared.OutboxStatusProcessed {
		m.MarkAsProcessed()
	} else {
		m.Status = status
	}
	return nil
}

func (v *outboxView) IncrementAttempts(ctx context.Context, id int64) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	m, err := v.find(id)
	if err != nil {
		return err
	}
	m.IncrementAttempts()
	return nil
}

// find requires s.mu held
func (v *outboxView) find(id int64) (*outbox.Message, error) {
	for _, m := range v.s.messages {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, outbox.ErrMessageNotFound{ID: id}
}
