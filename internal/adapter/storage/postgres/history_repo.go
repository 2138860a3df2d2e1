package postgres

import (
	"context"
	"fmt"
	"time"

	"quantumpay-core/internal/core/domain"
	"quantumpay-core/internal/risk"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SenderHistoryRepo implements ports.SenderHistoryRepository and the risk
// trainer's sample source on top of the transactions table.
type SenderHistoryRepo struct {
	pool Pool
}

// NewSenderHistoryRepo creates a new SenderHistoryRepo.
func NewSenderHistoryRepo(pool Pool) *SenderHistoryRepo {
	return &SenderHistoryRepo{pool: pool}
}

// SenderSnapshot computes the sender's behavioral aggregates as of `at`.
// It is recomputed per settlement attempt, never cached.
func (r *SenderHistoryRepo) SenderSnapshot(ctx context.Context, senderID uuid.UUID, receiverID *uuid.UUID, at time.Time) (*domain.SenderSnapshot, error) {
	query := `SELECT
		COALESCE(AVG(amount) FILTER (WHERE status = 'COMPLETED'), 0) AS avg_amount,
		COUNT(*) FILTER (WHERE status = 'COMPLETED') AS completed_sends,
		COUNT(*) FILTER (WHERE created_at >= $2 - interval '1 hour') AS sends_last_hour,
		COUNT(*) FILTER (WHERE status = 'COMPLETED' AND receiver_owner_id = $3) AS paid_receiver,
		COUNT(*) FILTER (WHERE status = 'FAILED') AS failed_sends,
		COUNT(*) AS total_sends
		FROM transactions
		WHERE sender_owner_id = $1 AND created_at < $2`

	var (
		avgAmount           decimal.Decimal
		completed, lastHour int64
		paidReceiver        int64
		failed, total       int64
	)
	err := r.pool.QueryRow(ctx, query, senderID, at, receiverID).Scan(
		&avgAmount, &completed, &lastHour, &paidReceiver, &failed, &total,
	)
	if err != nil {
		return nil, fmt.Errorf("sender aggregates: %w", err)
	}

	ageQuery := `SELECT COALESCE(EXTRACT(EPOCH FROM $2 - MIN(created_at)) / 86400, 0)
		FROM wallets WHERE owner_id = $1`
	var ageDays float64
	if err := r.pool.QueryRow(ctx, ageQuery, senderID, at).Scan(&ageDays); err != nil {
		return nil, fmt.Errorf("account age: %w", err)
	}

	snapshot := &domain.SenderSnapshot{
		AvgSendAmount:     avgAmount.InexactFloat64(),
		CompletedSends:    completed,
		SendsLastHour:     lastHour,
		PaidReceiverCount: paidReceiver,
		AccountAgeDays:    ageDays,
		HourOfDay:         at.Hour(),
	}
	if total > 0 {
		snapshot.FailedRatio = float64(failed) / float64(total)
	}
	return snapshot, nil
}

// RecentTransferVectors feeds baseline re-estimation with feature
// vectors of recently completed transfers. One aggregate query runs per
// sample; the trainer runs off the request path so the cost is tolerable.
func (r *SenderHistoryRepo) RecentTransferVectors(ctx context.Context, since time.Time, limit int) ([][]float64, error) {
	query := `SELECT sender_owner_id, receiver_owner_id, amount, created_at
		FROM transactions
		WHERE status = 'COMPLETED' AND transaction_type = 'TRANSFER'
		AND sender_owner_id IS NOT NULL AND created_at >= $1
		ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transfers: %w", err)
	}
	defer rows.Close()

	type sample struct {
		sender    uuid.UUID
		receiver  *uuid.UUID
		amount    decimal.Decimal
		createdAt time.Time
	}
	var samples []sample
	for rows.Next() {
		var s sample
		if err := rows.Scan(&s.sender, &s.receiver, &s.amount, &s.createdAt); err != nil {
			return nil, fmt.Errorf("scan transfer sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer samples: %w", err)
	}

	vectors := make([][]float64, 0, len(samples))
	for _, s := range samples {
		snapshot, err := r.SenderSnapshot(ctx, s.sender, s.receiver, s.createdAt)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, risk.Vector(s.amount.InexactFloat64(), snapshot))
	}
	return vectors, nil
}
