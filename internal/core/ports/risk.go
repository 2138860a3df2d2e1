package ports

import (
	"context"

	"quantumpay-core/internal/core/domain"
)

// Scorer is the swappable fraud-scoring function. Model refreshes swap
// the active scorer atomically; the gating algorithm never changes.
type Scorer interface {
	Score(ctx context.Context, tx *domain.Transaction, snapshot *domain.SenderSnapshot) domain.RiskAssessment
}

// RiskEngine evaluates a pending transaction before any ledger mutation.
// A missing sender record forces maximum risk with FATAL_SENDER_NOT_FOUND.
type RiskEngine interface {
	Evaluate(ctx context.Context, tx *domain.Transaction) (domain.RiskAssessment, error)
}
