package ports

import (
	"context"
	"time"

	"quantumpay-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerService is the wallet-internal balance primitive. AdjustBalance
// serializes concurrent adjustments to the same wallet and never lets a
// balance go negative.
type LedgerService interface {
	// AdjustBalance applies a signed amount to a wallet and returns the
	// new balance. Fails with PAY_001 if the result would be negative.
	AdjustBalance(ctx context.Context, walletID uuid.UUID, signedAmount decimal.Decimal) (decimal.Decimal, error)
	// GetOrCreateWallet is idempotent and safe under concurrent first-use.
	GetOrCreateWallet(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error)
	ListWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
}

// SettlementService runs the transaction state machine for internal
// wallet-to-wallet movements.
type SettlementService interface {
	// CreateTransfer records a PENDING transfer between two owners.
	CreateTransfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	// Settle drives a pending transaction to COMPLETED or FAILED. Calling
	// it on a terminal transaction returns the existing record unchanged.
	Settle(ctx context.Context, transactionID uuid.UUID) (*domain.Transaction, error)
}

// TransferRequest holds validated input for an internal transfer.
type TransferRequest struct {
	SenderOwnerID   uuid.UUID
	ReceiverOwnerID uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Type            domain.TransactionType // defaults to TRANSFER
	Metadata        map[string]string
}

// BillPaymentService routes bill payments over the external rails.
type BillPaymentService interface {
	ValidateCustomer(ctx context.Context, req BillValidationRequest) (*CustomerValidation, error)
	PayBill(ctx context.Context, req BillPaymentRequest) (*domain.Transaction, error)
	ListItems(ctx context.Context, country string) ([]BillItem, error)
}

// BillValidationRequest identifies a customer on a biller's side.
type BillValidationRequest struct {
	OwnerID     uuid.UUID
	ItemCode    string
	CustomerRef string
}

// CustomerValidation is the biller's answer to a validation call.
type CustomerValidation struct {
	Valid        bool   `json:"valid"`
	CustomerName string `json:"customer_name,omitempty"`
	Provider     string `json:"provider"`
}

// BillPaymentRequest holds validated input for a routed bill payment.
type BillPaymentRequest struct {
	OwnerID     uuid.UUID
	ItemCode    string
	CustomerRef string
	Amount      decimal.Decimal
	Currency    string
}

// BillItem is one payable item in a biller catalog, fee left to the
// adapter actually selected at execution time.
type BillItem struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Country  string `json:"country"`
}

// DepositService initiates external-rail funding of a wallet. The credit
// itself lands later through the reconciliation intake.
type DepositService interface {
	InitiateDeposit(ctx context.Context, req DepositRequest) (*DepositInstructions, error)
}

// DepositRequest holds validated input for a deposit initiation.
type DepositRequest struct {
	OwnerID  uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Method   string
}

// DepositInstructions tells the caller how to complete funding.
type DepositInstructions struct {
	TxRef         string            `json:"tx_ref"`
	Provider      string            `json:"provider"`
	Method        string            `json:"method"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	AccountDetail map[string]string `json:"account_detail,omitempty"` // virtual account number etc.
}

// FXService issues time-boxed quotes and executes them atomically.
type FXService interface {
	GetQuote(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Quote, error)
	ExecuteQuote(ctx context.Context, quoteID string, ownerID uuid.UUID) (*domain.Transaction, error)
}

// ReconciliationService applies asynchronous provider confirmations.
type ReconciliationService interface {
	// HandleProviderWebhook is idempotent per tx_ref. Unknown or
	// already-terminal references are logged and dropped.
	HandleProviderWebhook(ctx context.Context, event ProviderEvent) error
}

// ProviderEvent is the normalized shape of a provider confirmation.
// Adapters translate provider-specific payloads into this.
type ProviderEvent struct {
	Provider    string
	TxRef       string
	ProviderRef string
	Succeeded   bool
	Amount      decimal.Decimal
	Currency    string
	FailureNote string
}

// TokenService validates identity tokens minted by the external auth
// service. The core trusts the embedded owner identity.
type TokenService interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed identity claims.
type TokenClaims struct {
	OwnerID   uuid.UUID
	ExpiresAt time.Time
}

// QuoteCache stores single-use quotes with absolute expiry. Consume must
// atomically fetch-and-delete so a quote id can never execute twice.
type QuoteCache interface {
	Put(ctx context.Context, quote *domain.Quote, ttl time.Duration) error
	Consume(ctx context.Context, quoteID string) (*domain.Quote, error) // nil, nil when absent
}

// IdempotencyCache is the fast-path replay guard for webhook intake.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached payload or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
