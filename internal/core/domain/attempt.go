package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttemptStatus tracks one external-rail money movement.
type AttemptStatus string

const (
	AttemptStatusInitiated       AttemptStatus = "INITIATED"
	AttemptStatusPendingApproval AttemptStatus = "PENDING_APPROVAL"
	AttemptStatusSuccessful      AttemptStatus = "SUCCESSFUL"
	AttemptStatusFailed          AttemptStatus = "FAILED"
)

// AttemptDirection records which way money moves relative to the ledger.
// Inbound attempts (deposits) debit nothing at initiation; outbound
// attempts (payouts) are debited up-front and need a compensating credit
// if the rail later reports failure.
type AttemptDirection string

const (
	AttemptInbound  AttemptDirection = "INBOUND"
	AttemptOutbound AttemptDirection = "OUTBOUND"
)

// PaymentAttempt is the idempotency anchor for asynchronous provider
// confirmations. TxRef is generated by us, unique across the system, and
// echoed back by the provider in webhooks.
type PaymentAttempt struct {
	ID          uuid.UUID        `json:"id"`
	TxRef       string           `json:"tx_ref"`
	OwnerID     uuid.UUID        `json:"owner_id"`
	Provider    string           `json:"provider"`
	ProviderRef *string          `json:"provider_ref,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	Method      string           `json:"method"` // bank_transfer, card, virtual_account, ...
	Direction   AttemptDirection `json:"direction"`
	Status      AttemptStatus    `json:"status"`
	// Debited records that the owner's wallet has actually been charged
	// for this attempt, set in the same atomic unit as the debit itself.
	// A failure confirmation compensates only when it is set; an attempt
	// that never took money must never mint a refund.
	Debited     bool             `json:"debited"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsTerminal returns true once a confirmation has been applied; repeat
// notifications for a terminal attempt are silent no-ops.
func (a *PaymentAttempt) IsTerminal() bool {
	return a.Status == AttemptStatusSuccessful || a.Status == AttemptStatusFailed
}
