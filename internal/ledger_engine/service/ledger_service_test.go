package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/data/memory"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/outbox"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/kaybank-ledger/internal/domain/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// outboxJournal appends each record and queues it for publication
type outboxJournal struct{}

func (outboxJournal) Journal(ctx context.Context, tx store.Tx, records ...*ledger.Record) error {
	for _, r := range records {
		if err := tx.Records().Append(ctx, r); err != nil {
			return err
		}
		msg, err := outbox.NewMessage(r)
		if err != nil {
			return err
		}
		if err := tx.Outbox().Create(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func testOptions() LedgerOptions {
	return LedgerOptions{MaxRetries: 5, HistoryDefaultLimit: 50, HistoryMaxLimit: 500}
}

func newTestLedger(st store.Store) *LedgerService {
	return NewLedgerService(st, outboxJournal{}, nil, testOptions(), newTestLogger())
}

func openAccount(t *testing.T, st store.Store, username, number string) *account.Account {
	t.Helper()
	acc := account.NewAccount("Test User", username, "hash", number)
	err := st.WithTransaction(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Accounts().Create(ctx, acc)
	})
	require.NoError(t, err)
	return acc
}

func assertReconciled(t *testing.T, svc *LedgerService, ids ...uuid.UUID) {
	t.Helper()
	for _, id := range ids {
		rec, err := svc.Reconcile(context.Background(), id)
		require.NoError(t, err)
		assert.True(t, rec.Consistent, "balance %d != record sum %d", rec.Balance, rec.RecordSum)
		assert.GreaterOrEqual(t, rec.Balance, int64(0))
	}
}

func TestLedgerService_Scenario(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)

	jane := openAccount(t, st, "janedoe", "10000001")
	target := openAccount(t, st, "johnroe", "10000002")

	balance, err := svc.Deposit(ctx, jane.ID, 5000)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	balance, err = svc.Deposit(ctx, jane.ID, 1500)
	require.NoError(t, err)
	assert.Equal(t, int64(6500), balance)

	history, err := svc.HistoryOf(ctx, jane.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, shared.TransactionKindDeposit, history[0].Kind)
	assert.Equal(t, int64(1500), history[0].Amount)

	_, err = svc.Withdraw(ctx, jane.ID, 10000)
	assert.ErrorIs(t, err, account.ErrInsufficientFunds)
	balance, err = svc.BalanceOf(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6500), balance)
	history, err = svc.HistoryOf(ctx, jane.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2)

	_, err = svc.Transfer(ctx, jane.ID, "99999999", 100)
	assert.ErrorIs(t, err, account.ErrAccountNotFound{AccountNumber: "99999999"})
	balance, err = svc.BalanceOf(ctx, jane.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(6500), balance)

	receipt, err := svc.Transfer(ctx, jane.ID, target.AccountNumber, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(4500), receipt.SourceBalance)
	assert.Equal(t, target.AccountNumber, receipt.TargetAccountNumber)
	assert.Equal(t, "Test User", receipt.TargetFullName)

	targetBalance, err := svc.BalanceOf(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), targetBalance)

	outs, err := svc.HistoryOf(ctx, jane.ID, 1)
	require.NoError(t, err)
	require.Len(t, outs, 1)
	ins, err := svc.HistoryOf(ctx, target.ID, 0)
	require.NoError(t, err)
	require.Len(t, ins, 1)

	out, in := outs[0], ins[0]
	assert.Equal(t, shared.TransactionKindTransferOut, out.Kind)
	assert.Equal(t, shared.TransactionKindTransferIn, in.Kind)
	assert.Equal(t, out.Amount, in.Amount)
	assert.Equal(t, receipt.TransferID, out.TransferID)
	assert.Equal(t, out.TransferID, in.TransferID)
	assert.Equal(t, target.AccountNumber, out.Counterparty)
	assert.Equal(t, jane.AccountNumber, in.Counterparty)

	assertReconciled(t, svc, jane.ID, target.ID)

	pending, err := st.Outbox().GetPending(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestLedgerService_RejectsBeforeStorage(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)
	acc := openAccount(t, st, "janedoe", "10000001")

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{
			name: "zero deposit",
			call: func() error { _, err := svc.Deposit(ctx, acc.ID, 0); return err },
			want: account.ErrInvalidAmount,
		},
		{
			name: "negative withdrawal",
			call: func() error { _, err := svc.Withdraw(ctx, acc.ID, -5); return err },
			want: account.ErrInvalidAmount,
		},
		{
			name: "negative transfer",
			call: func() error { _, err := svc.Transfer(ctx, acc.ID, "10000002", -1); return err },
			want: account.ErrInvalidAmount,
		},
		{
			name: "missing target",
			call: func() error { _, err := svc.Transfer(ctx, acc.ID, "", 10); return err },
			want: shared.ValidationError{Field: "target_account_number"},
		},
		{
			name: "self transfer",
			call: func() error { _, err := svc.Transfer(ctx, acc.ID, acc.AccountNumber, 10); return err },
			want: shared.ErrInvalidOperation,
		},
		{
			name: "unknown account",
			call: func() error { _, err := svc.Deposit(ctx, uuid.New(), 10); return err },
			want: account.ErrAccountNotFound{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), tt.want)
		})
	}

	history, err := svc.HistoryOf(ctx, acc.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLedgerService_HistoryLimits(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := NewLedgerService(st, outboxJournal{}, nil, LedgerOptions{MaxRetries: 1, HistoryDefaultLimit: 2, HistoryMaxLimit: 3}, newTestLogger())
	acc := openAccount(t, st, "janedoe", "10000001")

	for i := 1; i <= 5; i++ {
		_, err := svc.Deposit(ctx, acc.ID, int64(i))
		require.NoError(t, err)
	}

	history, err := svc.HistoryOf(ctx, acc.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(5), history[0].Amount)
	assert.Equal(t, int64(4), history[1].Amount)
	assert.Greater(t, history[0].Sequence, history[1].Sequence)

	history, err = svc.HistoryOf(ctx, acc.ID, 100)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	_, err = svc.HistoryOf(ctx, uuid.New(), 10)
	assert.ErrorIs(t, err, account.ErrAccountNotFound{})
}

func TestLedgerService_ConcurrentDepositsCommute(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)
	acc := openAccount(t, st, "janedoe", "10000001")

	var wg sync.WaitGroup
	for _, amount := range []int64{700, 1300} {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := svc.Deposit(ctx, acc.ID, amount)
			assert.NoError(t, err)
		}(amount)
	}
	wg.Wait()

	balance, err := svc.BalanceOf(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balance)

	history, err := svc.HistoryOf(ctx, acc.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, r := range history {
		assert.Equal(t, shared.TransactionKindDeposit, r.Kind)
	}
}

func TestLedgerService_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)
	acc := openAccount(t, st, "janedoe", "10000001")
	_, err := svc.Deposit(ctx, acc.ID, 1000)
	require.NoError(t, err)

	var succeeded, rejected atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(ctx, acc.ID, 100)
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, account.ErrInsufficientFunds):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(10), succeeded.Load())
	assert.Equal(t, int32(10), rejected.Load())

	balance, err := svc.BalanceOf(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
	assertReconciled(t, svc, acc.ID)
}

func TestLedgerService_OpposingTransfersDoNotDeadlock(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)
	a := openAccount(t, st, "alice", "10000001")
	b := openAccount(t, st, "bobby", "10000002")
	_, err := svc.Deposit(ctx, a.ID, 5000)
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, b.ID, 5000)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, a.ID, b.AccountNumber, 70)
			if err != nil {
				assert.ErrorIs(t, err, account.ErrInsufficientFunds)
			}
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, b.ID, a.AccountNumber, 30)
			if err != nil {
				assert.ErrorIs(t, err, account.ErrInsufficientFunds)
			}
		}()
	}
	wg.Wait()

	balA, err := svc.BalanceOf(ctx, a.ID)
	require.NoError(t, err)
	balB, err := svc.BalanceOf(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balA+balB)
	assertReconciled(t, svc, a.ID, b.ID)
}

// faultyStore fails the Nth account update inside every transaction
type faultyStore struct {
	*memory.Store
	failOnUpdate int
}

func (s *faultyStore) WithTransaction(ctx context.Context, fn store.TxFunc) error {
	return s.Store.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, failOnUpdate: s.failOnUpdate})
	})
}

type faultyTx struct {
	store.Tx
	failOnUpdate int
	updates      int
}

func (t *faultyTx) Accounts() account.Repository {
	return &faultyAccounts{Repository: t.Tx.Accounts(), tx: t}
}

type faultyAccounts struct {
	account.Repository
	tx *faultyTx
}

func (r *faultyAccounts) Update(ctx context.Context, acc *account.Account) error {
	r.tx.updates++
	if r.tx.updates == r.tx.failOnUpdate {
		return errors.New("connection reset")
	}
	return r.Repository.Update(ctx, acc)
}

func TestLedgerService_TransferInterruptedMidway(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore(newTestLogger())
	healthy := newTestLedger(base)
	src := openAccount(t, base, "alice", "10000001")
	dst := openAccount(t, base, "bobby", "10000002")
	_, err := healthy.Deposit(ctx, src.ID, 3000)
	require.NoError(t, err)

	// The source is debited by the first update; the credit never happens
	svc := newTestLedger(&faultyStore{Store: base, failOnUpdate: 2})
	_, err = svc.Transfer(ctx, src.ID, dst.AccountNumber, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.StorageError{})
	assert.False(t, shared.IsRetryable(err))

	srcBalance, err := healthy.BalanceOf(ctx, src.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), srcBalance)
	dstBalance, err := healthy.BalanceOf(ctx, dst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), dstBalance)

	srcHistory, err := healthy.HistoryOf(ctx, src.ID, 0)
	require.NoError(t, err)
	assert.Len(t, srcHistory, 1)
	dstHistory, err := healthy.HistoryOf(ctx, dst.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, dstHistory)

	assertReconciled(t, healthy, src.ID, dst.ID)
}

// contendedStore reports a version conflict for the first failures attempts
type contendedStore struct {
	*memory.Store
	failures int
	calls    int
}

func (s *contendedStore) WithTransaction(ctx context.Context, fn store.TxFunc) error {
	s.calls++
	if s.calls <= s.failures {
		return account.ErrConcurrentModification{AccountID: uuid.New()}
	}
	return s.Store.WithTransaction(ctx, fn)
}

func TestLedgerService_RetriesContention(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds within retry budget", func(t *testing.T) {
		st := &contendedStore{Store: memory.NewStore(newTestLogger()), failures: 2}
		acc := openAccount(t, st.Store, "janedoe", "10000001")
		svc := newTestLedger(st)

		balance, err := svc.Deposit(ctx, acc.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(100), balance)
		assert.Equal(t, 3, st.calls)
	})

	t.Run("surfaces retryable storage error when exhausted", func(t *testing.T) {
		st := &contendedStore{Store: memory.NewStore(newTestLogger()), failures: 10}
		acc := openAccount(t, st.Store, "janedoe", "10000001")
		svc := newTestLedger(st)

		_, err := svc.Deposit(ctx, acc.ID, 100)
		require.Error(t, err)
		assert.True(t, shared.IsRetryable(err))
		assert.Equal(t, 5, st.calls)

		balance, err := svc.BalanceOf(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance)
	})
}

func TestLedgerService_RejectsBalanceOverflow(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)
	rich := openAccount(t, st, "janedoe", "10000001")
	poor := openAccount(t, st, "johnroe", "10000002")

	const half = int64(1) << 62
	balance, err := svc.Deposit(ctx, rich.ID, half)
	require.NoError(t, err)
	assert.Equal(t, half, balance)

	_, err = svc.Deposit(ctx, rich.ID, half)
	assert.ErrorIs(t, err, account.ErrBalanceOverflow)
	assert.ErrorIs(t, err, account.ErrInvalidAmount)
	assert.NotErrorIs(t, err, account.ErrInsufficientFunds)

	_, err = svc.Deposit(ctx, poor.ID, half)
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, poor.ID, rich.AccountNumber, half)
	assert.ErrorIs(t, err, account.ErrBalanceOverflow)

	richBalance, err := svc.BalanceOf(ctx, rich.ID)
	require.NoError(t, err)
	assert.Equal(t, half, richBalance)
	poorBalance, err := svc.BalanceOf(ctx, poor.ID)
	require.NoError(t, err)
	assert.Equal(t, half, poorBalance)

	history, err := svc.HistoryOf(ctx, rich.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
	assertReconciled(t, svc, rich.ID, poor.ID)
}

// stubGuard fails commands it has been told about
type stubGuard struct {
	applied map[uuid.UUID]bool
	calls   atomic.Int32
}

func (g *stubGuard) CheckIdempotency(ctx context.Context, tx store.Tx) error {
	g.calls.Add(1)
	id := shared.CommandIDFromContext(ctx)
	if g.applied[id] {
		return ledger.ErrCommandApplied{CommandID: id}
	}
	return nil
}

func TestLedgerService_ConsultsCommandGuard(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	replayed := uuid.New()
	guard := &stubGuard{applied: map[uuid.UUID]bool{replayed: true}}
	svc := NewLedgerService(st, outboxJournal{}, guard, testOptions(), newTestLogger())
	a := openAccount(t, st, "alice", "10000001")
	b := openAccount(t, st, "bobby", "10000002")

	_, err := svc.Deposit(ctx, a.ID, 1000)
	require.NoError(t, err)

	replayCtx := shared.WithCommandID(ctx, replayed)
	_, err = svc.Deposit(replayCtx, a.ID, 500)
	assert.ErrorIs(t, err, ledger.ErrCommandApplied{CommandID: replayed})
	_, err = svc.Withdraw(replayCtx, a.ID, 500)
	assert.ErrorIs(t, err, ledger.ErrCommandApplied{})
	_, err = svc.Transfer(replayCtx, a.ID, b.AccountNumber, 500)
	assert.ErrorIs(t, err, ledger.ErrCommandApplied{})
	assert.False(t, shared.IsRetryable(err))
	assert.Equal(t, int32(4), guard.calls.Load())

	balance, err := svc.BalanceOf(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), balance)
	history, err := svc.HistoryOf(ctx, a.ID, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLedgerService_ReconcileDoesNotBlockMovements(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore(newTestLogger())
	svc := newTestLedger(st)
	acc := openAccount(t, st, "janedoe", "10000001")
	_, err := svc.Deposit(ctx, acc.ID, 1000)
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- st.WithTransaction(ctx, func(ctx context.Context, tx store.Tx) error {
			if _, err := tx.Accounts().LockForUpdate(ctx, acc.ID); err != nil {
				return err
			}
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	reconcileCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	rec, err := svc.Reconcile(reconcileCtx, acc.ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent)
	assert.Equal(t, int64(1000), rec.Balance)

	close(release)
	require.NoError(t, <-done)

	_, err = svc.Reconcile(ctx, uuid.New())
	assert.ErrorIs(t, err, account.ErrAccountNotFound{})
}
