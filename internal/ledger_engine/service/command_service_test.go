package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/kaybank-ledger/internal/domain/account"
	"github.com/kaybank-ledger/internal/domain/ledger"
	"github.com/kaybank-ledger/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLedgerEngine mocks the LedgerEngine interface
type MockLedgerEngine struct {
	mock.Mock
}

func (m *MockLedgerEngine) Deposit(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, accountID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerEngine) Withdraw(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	args := m.Called(ctx, accountID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerEngine) Transfer(ctx context.Context, sourceID uuid.UUID, targetAccountNumber string, amount int64) (*TransferReceipt, error) {
	args := m.Called(ctx, sourceID, targetAccountNumber, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransferReceipt), args.Error(1)
}

func (m *MockLedgerEngine) BalanceOf(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerEngine) HistoryOf(ctx context.Context, accountID uuid.UUID, limit int) ([]*ledger.Record, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Record), args.Error(1)
}

func (m *MockLedgerEngine) Reconcile(ctx context.Context, accountID uuid.UUID) (*Reconciliation, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Reconciliation), args.Error(1)
}

func TestCommandService_ProcessCommand(t *testing.T) {
	accountID := uuid.New()
	storageErr := shared.StorageError{Op: "deposit", Err: errors.New("connection refused")}

	tests := []struct {
		name        string
		command     shared.LedgerCommand
		setupMocks  func(m *MockLedgerEngine)
		expectedErr error
	}{
		{
			name:    "deposit applied",
			command: shared.LedgerCommand{AccountID: accountID, Type: shared.CommandTypeDeposit, Amount: "15.50"},
			setupMocks: func(m *MockLedgerEngine) {
				m.On("Deposit", mock.Anything, accountID, int64(1550)).Return(int64(1550), nil).Once()
			},
		},
		{
			name:    "withdrawal rejected for insufficient funds",
			command: shared.LedgerCommand{AccountID: accountID, Type: shared.CommandTypeWithdrawal, Amount: "100"},
			setupMocks: func(m *MockLedgerEngine) {
				m.On("Withdraw", mock.Anything, accountID, int64(10000)).Return(int64(0), account.ErrInsufficientFunds).Once()
			},
		},
		{
			name: "transfer to unknown account is acknowledged",
			command: shared.LedgerCommand{
				AccountID: accountID, Type: shared.CommandTypeTransfer, Amount: "1", TargetAccountNumber: "12345678",
			},
			setupMocks: func(m *MockLedgerEngine) {
				m.On("Transfer", mock.Anything, accountID, "12345678", int64(100)).
					Return(nil, account.ErrAccountNotFound{AccountNumber: "12345678"}).Once()
			},
		},
		{
			name:    "storage failure is returned for redelivery",
			command: shared.LedgerCommand{AccountID: accountID, Type: shared.CommandTypeDeposit, Amount: "2"},
			setupMocks: func(m *MockLedgerEngine) {
				m.On("Deposit", mock.Anything, accountID, int64(200)).Return(int64(0), storageErr).Once()
			},
			expectedErr: storageErr,
		},
		{
			name:    "redelivered command is acknowledged",
			command: shared.LedgerCommand{AccountID: accountID, Type: shared.CommandTypeDeposit, Amount: "15.00"},
			setupMocks: func(m *MockLedgerEngine) {
				m.On("Deposit", mock.MatchedBy(func(ctx context.Context) bool {
					return shared.CommandIDFromContext(ctx) != uuid.Nil
				}), accountID, int64(1500)).Return(int64(0), ledger.ErrCommandApplied{CommandID: uuid.New()}).Once()
			},
		},
		{
			name:       "invalid shape never reaches the engine",
			command:    shared.LedgerCommand{AccountID: accountID, Type: "REFUND", Amount: "2"},
			setupMocks: func(m *MockLedgerEngine) {},
		},
		{
			name:       "malformed amount never reaches the engine",
			command:    shared.LedgerCommand{AccountID: accountID, Type: shared.CommandTypeDeposit, Amount: "1.234"},
			setupMocks: func(m *MockLedgerEngine) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &MockLedgerEngine{}
			tt.setupMocks(engine)
			svc := NewCommandService(engine, newTestLogger())

			cmd := tt.command
			cmd.CommandID = uuid.New()
			cmd.CorrelationID = "corr-1"
			err := svc.ProcessCommand(context.Background(), &cmd)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			engine.AssertExpectations(t)
		})
	}
}

func TestCommandService_PropagatesCorrelationID(t *testing.T) {
	accountID := uuid.New()
	engine := &MockLedgerEngine{}
	engine.On("Deposit", mock.MatchedBy(func(ctx context.Context) bool {
		return shared.CorrelationIDFromContext(ctx) == "corr-42"
	}), accountID, int64(100)).Return(int64(100), nil).Once()

	svc := NewCommandService(engine, newTestLogger())
	err := svc.ProcessCommand(context.Background(), &shared.LedgerCommand{
		CommandID:     uuid.New(),
		AccountID:     accountID,
		Type:          shared.CommandTypeDeposit,
		Amount:        "1.00",
		CorrelationID: "corr-42",
	})

	assert.NoError(t, err)
	engine.AssertExpectations(t)
}
