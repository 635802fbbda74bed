package shared

// TransactionKind defines the kinds of committed ledger records
type TransactionKind string

const (
	TransactionKindDeposit     TransactionKind = "Deposit"
	TransactionKindWithdrawal  TransactionKind = "Withdrawal"
	TransactionKindTransferOut TransactionKind = "TransferOut"
	TransactionKindTransferIn  TransactionKind = "TransferIn"
)

// IsCredit reports whether records of this kind increase the balance
func (k TransactionKind) IsCredit() bool {
	return k == TransactionKindDeposit || k == TransactionKindTransferIn
}

// Valid reports whether k is one of the known record kinds
func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindTransferOut, TransactionKindTransferIn:
		return true
	}
	return false
}

// CommandType defines operations accepted on the ledger command topic
type CommandType string

const (
	CommandTypeDeposit    CommandType = "DEPOSIT"
	CommandTypeWithdrawal CommandType = "WITHDRAWAL"
	CommandTypeTransfer   CommandType = "TRANSFER"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
