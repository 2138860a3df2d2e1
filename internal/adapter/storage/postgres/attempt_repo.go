package postgres

import (
	"context"
	"errors"
	"fmt"

	"quantumpay-core/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AttemptRepo implements ports.AttemptRepository.
type AttemptRepo struct {
	pool Pool
}

// NewAttemptRepo creates a new AttemptRepo.
func NewAttemptRepo(pool Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

const attemptColumns = `id, tx_ref, owner_id, provider, provider_ref, amount, currency, method, direction, status, debited, created_at, updated_at`

// Create inserts a new payment attempt.
func (r *AttemptRepo) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	query := `INSERT INTO payment_attempts (id, tx_ref, owner_id, provider, provider_ref, amount, currency, method, direction, status, debited, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.TxRef, a.OwnerID, a.Provider, a.ProviderRef,
		a.Amount, a.Currency, a.Method, a.Direction, a.Status, a.Debited,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// GetByTxRef fetches an attempt by its external reference (non-locking).
func (r *AttemptRepo) GetByTxRef(ctx context.Context, txRef string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE tx_ref = $1`
	return scanAttempt(r.pool.QueryRow(ctx, query, txRef))
}

// GetByTxRefForUpdate fetches an attempt by reference with pessimistic
// locking. This MUST be called within a transaction; it is the
// serialization point for concurrent webhook replays.
func (r *AttemptRepo) GetByTxRefForUpdate(ctx context.Context, tx pgx.Tx, txRef string) (*domain.PaymentAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM payment_attempts WHERE tx_ref = $1 FOR UPDATE`
	return scanAttempt(tx.QueryRow(ctx, query, txRef))
}

// UpdateStatus moves an attempt through its lifecycle, optionally
// recording the provider's own reference.
func (r *AttemptRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.AttemptStatus, providerRef *string) error {
	query := `UPDATE payment_attempts SET status = $1, provider_ref = COALESCE($2, provider_ref), updated_at = NOW() WHERE id = $3`

	tag, err := tx.Exec(ctx, query, status, providerRef, id)
	if err != nil {
		return fmt.Errorf("update attempt status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attempt not found: %s", id)
	}
	return nil
}

// MarkDebited flags the attempt as charged. It runs inside the same
// transaction as the balance debit so the flag and the money move
// together or not at all.
func (r *AttemptRepo) MarkDebited(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE payment_attempts SET debited = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark attempt debited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attempt not found: %s", id)
	}
	return nil
}

// scanAttempt is a helper to scan a single row into a PaymentAttempt.
func scanAttempt(row pgx.Row) (*domain.PaymentAttempt, error) {
	a := &domain.PaymentAttempt{}
	err := row.Scan(
		&a.ID, &a.TxRef, &a.OwnerID, &a.Provider, &a.ProviderRef,
		&a.Amount, &a.Currency, &a.Method, &a.Direction, &a.Status, &a.Debited,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan attempt: %w", err)
	}
	return a, nil
}
