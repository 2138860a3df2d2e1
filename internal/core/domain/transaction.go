package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypePayment    TransactionType = "PAYMENT"
	TransactionTypeExchange   TransactionType = "CURRENCY_EXCHANGE"
	TransactionTypePayroll    TransactionType = "PAYROLL_DISBURSEMENT"
	TransactionTypeRefund     TransactionType = "REFUND"
)

// TransactionStatus represents the lifecycle state of a transaction.
// The only legal transitions are PENDING -> COMPLETED and PENDING -> FAILED.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Failure reason codes recorded on FAILED transactions.
const (
	ReasonInvalidParty = "INVALID_PARTY"
	ReasonLedgerError  = "LEDGER_ERROR"
)

// Transaction is one logical money movement. Identity and amount are
// immutable once created; corrections are new transactions (REFUND),
// never edits of a completed one.
type Transaction struct {
	ID               uuid.UUID         `json:"id"`
	SenderOwnerID    *uuid.UUID        `json:"sender_owner_id,omitempty"`   // nil for pure deposits
	ReceiverOwnerID  *uuid.UUID        `json:"receiver_owner_id,omitempty"` // nil for pure withdrawals
	SenderWalletID   *uuid.UUID        `json:"sender_wallet_id,omitempty"`
	ReceiverWalletID *uuid.UUID        `json:"receiver_wallet_id,omitempty"`
	Amount           decimal.Decimal   `json:"amount"`
	Currency         string            `json:"currency"`
	Type             TransactionType   `json:"transaction_type"`
	Status           TransactionStatus `json:"status"`
	RiskScore        *float64          `json:"risk_score,omitempty"`
	RiskReasons      []string          `json:"risk_reasons,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"` // provider name, external refs, fees
	CreatedAt        time.Time         `json:"created_at"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted || t.Status == TransactionStatusFailed
}

// IsInternal reports whether both legs of the movement live in the ledger.
func (t *Transaction) IsInternal() bool {
	return t.SenderWalletID != nil && t.ReceiverWalletID != nil
}

// MetaValue reads a metadata key, tolerating a nil map.
func (t *Transaction) MetaValue(key string) string {
	if t.Metadata == nil {
		return ""
	}
	return t.Metadata[key]
}
