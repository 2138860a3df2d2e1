package ports

import (
	"context"
	"time"

	"quantumpay-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for
// pessimistic row locking.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, currency string) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, currency string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal) error
}

// TransactionRepository defines persistence operations for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Transaction, error)
	MarkCompleted(ctx context.Context, tx pgx.Tx, id uuid.UUID, score *float64, reasons []string, completedAt time.Time) error
	MarkFailed(ctx context.Context, tx pgx.Tx, id uuid.UUID, score *float64, reasons []string) error
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

// TransactionListParams holds filter + pagination for listing transactions.
type TransactionListParams struct {
	OwnerID  uuid.UUID
	Status   *domain.TransactionStatus
	Type     *domain.TransactionType
	From     *int64 // Unix timestamp
	To       *int64 // Unix timestamp
	Page     int
	PageSize int
}

// SenderHistoryRepository computes the rolling behavioral aggregates the
// risk engine scores against. Snapshots are recomputed per attempt and
// never cached across attempts.
type SenderHistoryRepository interface {
	SenderSnapshot(ctx context.Context, senderID uuid.UUID, receiverID *uuid.UUID, at time.Time) (*domain.SenderSnapshot, error)
}

// AttemptRepository defines persistence for external payment attempts.
type AttemptRepository interface {
	Create(ctx context.Context, attempt *domain.PaymentAttempt) error
	GetByTxRef(ctx context.Context, txRef string) (*domain.PaymentAttempt, error)
	GetByTxRefForUpdate(ctx context.Context, tx pgx.Tx, txRef string) (*domain.PaymentAttempt, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AttemptStatus, providerRef *string) error
	// MarkDebited flags that the attempt's debit has been applied. Called
	// inside the same transaction that moves the money.
	MarkDebited(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
